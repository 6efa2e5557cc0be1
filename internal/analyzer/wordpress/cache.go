package wordpress

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/serplens/engine/internal/analyzer/metrics"
	"github.com/serplens/engine/internal/common/configtypes"
	"github.com/serplens/engine/internal/common/redis"
	"github.com/serplens/engine/pkg/types"
)

// FetchCache stores completed fetch results in Redis with compression.
// Every failure degrades to a cache miss; the fetcher then goes to the
// origin, so a broken cache slows requests down but never fails them.
type FetchCache struct {
	client      *redis.Client
	keys        *redis.KeyGenerator
	ttl         time.Duration
	compression string
	metrics     *metrics.MetricsCollector
	logger      *zap.Logger
}

// NewFetchCache creates a fetch cache over an established Redis client.
func NewFetchCache(config configtypes.WPCacheConfig, client *redis.Client, collector *metrics.MetricsCollector, logger *zap.Logger) *FetchCache {
	return &FetchCache{
		client:      client,
		keys:        redis.NewKeyGenerator(),
		ttl:         time.Duration(config.TTL),
		compression: config.Compression,
		metrics:     collector,
		logger:      logger,
	}
}

// Key returns the cache key for one fetch shape.
func (c *FetchCache) Key(host, resource string, page, perPage, maxPages int) string {
	return c.keys.FetchCacheKey(host, resource, page, perPage, maxPages)
}

// Get returns the cached result for key, or found=false on miss or any
// cache-side failure. Corrupt entries are deleted so the next fetch
// repopulates them.
func (c *FetchCache) Get(ctx context.Context, key string) (*types.WordPressAPIData, bool) {
	encoded, found, err := c.client.GetBytes(ctx, key)
	if err != nil {
		c.logger.Warn("fetch cache read failed, falling back to origin",
			zap.String("key", key),
			zap.Error(err))
		return nil, false
	}
	if !found {
		return nil, false
	}

	payload, algorithm, err := Decompress(encoded)
	if err != nil {
		c.metrics.RecordDecompressionError(markerAlgorithm(encoded))
		c.logger.Warn("fetch cache entry corrupt, deleting",
			zap.String("key", key),
			zap.Error(err))
		c.delete(ctx, key)
		return nil, false
	}

	var result types.WordPressAPIData
	if err := json.Unmarshal(payload, &result); err != nil {
		c.logger.Warn("fetch cache entry unreadable, deleting",
			zap.String("key", key),
			zap.Error(err))
		c.delete(ctx, key)
		return nil, false
	}

	c.logger.Debug("fetch cache hit",
		zap.String("key", key),
		zap.String("algorithm", algorithm),
		zap.Int("items", len(result.Items)))
	return &result, true
}

// Set stores a fetch result under key. Failures are logged, never returned.
func (c *FetchCache) Set(ctx context.Context, key string, result *types.WordPressAPIData) {
	payload, err := json.Marshal(result)
	if err != nil {
		c.logger.Warn("failed to marshal fetch result for cache",
			zap.String("key", key),
			zap.Error(err))
		return
	}

	encoded, algorithm, err := Compress(payload, c.compression)
	if err != nil {
		c.logger.Warn("failed to compress fetch result, storing uncompressed",
			zap.String("key", key),
			zap.Error(err))
		encoded, algorithm = withMarker(markerNone, payload), types.CompressionNone
	}

	if algorithm != types.CompressionNone {
		c.metrics.RecordCompressionRatio(algorithm, float64(len(encoded))/float64(len(payload)))
		c.metrics.RecordBytesSaved(algorithm, int64(len(payload)-len(encoded)))
	}

	if err := c.client.SetBytes(ctx, key, encoded, c.ttl); err != nil {
		c.logger.Warn("fetch cache write failed",
			zap.String("key", key),
			zap.Error(err))
		return
	}

	c.logger.Debug("fetch result cached",
		zap.String("key", key),
		zap.String("algorithm", algorithm),
		zap.Int("bytes", len(encoded)),
		zap.Duration("ttl", c.ttl))
}

// InvalidateSite removes every cached fetch for a host and returns the
// number of entries dropped.
func (c *FetchCache) InvalidateSite(ctx context.Context, host string) (int, error) {
	pattern := c.keys.SitePattern(host)
	keys, err := c.client.Keys(ctx, pattern)
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	if err := c.client.Del(ctx, keys...); err != nil {
		return 0, err
	}
	return len(keys), nil
}

func (c *FetchCache) delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, key); err != nil {
		c.logger.Warn("failed to delete fetch cache entry",
			zap.String("key", key),
			zap.Error(err))
	}
}

// markerAlgorithm maps a payload's marker byte to an algorithm label for
// metrics, without attempting decompression.
func markerAlgorithm(encoded []byte) string {
	if len(encoded) == 0 {
		return types.CompressionNone
	}
	switch encoded[0] {
	case markerSnappy:
		return types.CompressionSnappy
	case markerLZ4:
		return types.CompressionLZ4
	default:
		return types.CompressionNone
	}
}
