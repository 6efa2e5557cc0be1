package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"github.com/serplens/engine/internal/common/configtypes"
)

const (
	defaultBufferSize    = 1000
	defaultBatchSize     = 500
	defaultFlushInterval = 5 * time.Second
	defaultDialTimeout   = 5 * time.Second
	insertTimeout        = 10 * time.Second
)

// insertColumns must match the column order appended in clickhouseSender.Send.
const insertColumns = "created_at, request_id, instance_id, event_type, field, " +
	"client_ip, user_agent, character_count, pixel_width, max_pixels, " +
	"is_truncated, is_optimal, is_too_short, recommended_max_chars, serve_time, " +
	"batch_id, batch_index, wp_host, wp_resource, wp_posts, wp_pages, " +
	"wp_cache_hit, wp_fetch_time, error_type, error_message"

// batchSender persists one flushed batch of events.
type batchSender interface {
	Send(ctx context.Context, batch []*AnalysisEvent) error
	Close() error
}

// clickhouseSender writes event batches through the native protocol.
type clickhouseSender struct {
	conn  driver.Conn
	query string
}

func (s *clickhouseSender) Send(ctx context.Context, events []*AnalysisEvent) error {
	batch, err := s.conn.PrepareBatch(ctx, s.query)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for _, e := range events {
		var wp WordPressFetchEvent
		if e.WordPress != nil {
			wp = *e.WordPress
		}
		if err := batch.Append(
			e.CreatedAt,
			e.RequestID,
			e.InstanceID,
			e.EventType,
			e.Field,
			e.ClientIP,
			e.UserAgent,
			int32(e.CharacterCount),
			int32(e.PixelWidth),
			e.MaxPixels,
			e.IsTruncated,
			e.IsOptimal,
			e.IsTooShort,
			int32(e.RecommendedMaxChars),
			e.ServeTime,
			e.BatchID,
			int32(e.BatchIndex),
			wp.Host,
			wp.Resource,
			int32(wp.Posts),
			int32(wp.Pages),
			wp.CacheHit,
			wp.FetchTime,
			e.ErrorType,
			e.ErrorMessage,
		); err != nil {
			return fmt.Errorf("failed to append event: %w", err)
		}
	}

	return batch.Send()
}

func (s *clickhouseSender) Close() error {
	return s.conn.Close()
}

// ClickHouseEmitter buffers events in memory and flushes them to ClickHouse
// in batches, either when the batch fills or on a flush interval. Emit never
// blocks; events are dropped with a warning when the buffer is full.
type ClickHouseEmitter struct {
	sender        batchSender
	events        chan *AnalysisEvent
	done          chan struct{}
	wg            sync.WaitGroup
	closeOnce     sync.Once
	closeErr      error
	batchSize     int
	flushInterval time.Duration
	logger        *zap.Logger
}

// NewClickHouseEmitter connects to ClickHouse and starts the background
// flush loop. The connection is verified with a ping before use.
func NewClickHouseEmitter(config configtypes.EventClickHouseConfig, logger *zap.Logger) (*ClickHouseEmitter, error) {
	dialTimeout := time.Duration(config.DialTimeout)
	if dialTimeout <= 0 {
		dialTimeout = defaultDialTimeout
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: config.Addr,
		Auth: clickhouse.Auth{
			Database: config.Database,
			Username: config.Username,
			Password: config.Password,
		},
		DialTimeout: dialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open clickhouse connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}

	sender := &clickhouseSender{
		conn:  conn,
		query: fmt.Sprintf("INSERT INTO %s (%s)", config.Table, insertColumns),
	}

	emitter := newClickHouseEmitter(sender, config.BatchSize, time.Duration(config.FlushInterval), logger)
	logger.Info("ClickHouse event emitter initialized",
		zap.Strings("addr", config.Addr),
		zap.String("database", config.Database),
		zap.String("table", config.Table))
	return emitter, nil
}

// newClickHouseEmitter wires the flush loop around a sender; split out so
// tests can substitute the sender.
func newClickHouseEmitter(sender batchSender, batchSize int, flushInterval time.Duration, logger *zap.Logger) *ClickHouseEmitter {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if flushInterval <= 0 {
		flushInterval = defaultFlushInterval
	}

	e := &ClickHouseEmitter{
		sender:        sender,
		events:        make(chan *AnalysisEvent, defaultBufferSize),
		done:          make(chan struct{}),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		logger:        logger,
	}

	e.wg.Add(1)
	go e.run()
	return e
}

// Emit queues the event for the next flush.
// Fire-and-forget: a full buffer drops the event with a warning.
func (e *ClickHouseEmitter) Emit(event *AnalysisEvent) {
	select {
	case e.events <- event:
	default:
		e.logger.Warn("event buffer full, dropping event",
			zap.String("request_id", event.RequestID))
	}
}

// run accumulates events and flushes on batch size or interval.
func (e *ClickHouseEmitter) run() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.flushInterval)
	defer ticker.Stop()

	batch := make([]*AnalysisEvent, 0, e.batchSize)
	for {
		select {
		case event := <-e.events:
			batch = append(batch, event)
			if len(batch) >= e.batchSize {
				e.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				e.flush(batch)
				batch = batch[:0]
			}
		case <-e.done:
			// Drain buffered events so shutdown does not lose them
			for {
				select {
				case event := <-e.events:
					batch = append(batch, event)
				default:
					if len(batch) > 0 {
						e.flush(batch)
					}
					return
				}
			}
		}
	}
}

// flush writes one batch; failures are logged, never propagated to callers.
func (e *ClickHouseEmitter) flush(batch []*AnalysisEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), insertTimeout)
	defer cancel()

	if err := e.sender.Send(ctx, batch); err != nil {
		e.logger.Warn("failed to flush events to clickhouse",
			zap.Int("events", len(batch)),
			zap.Error(err))
	}
}

// Close stops the flush loop, drains the buffer and closes the connection.
func (e *ClickHouseEmitter) Close() error {
	e.closeOnce.Do(func() {
		close(e.done)
		e.wg.Wait()
		e.closeErr = e.sender.Close()
	})
	return e.closeErr
}
