package config

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/serplens/engine/internal/common/configtypes"
	"github.com/serplens/engine/internal/common/yamlutil"
	"github.com/serplens/engine/pkg/types"
)

// Type aliases for convenience
type (
	AnalyzerConfig  = configtypes.AnalyzerConfig
	ServerConfig    = configtypes.ServerConfig
	MeasurerConfig  = configtypes.MeasurerConfig
	BatchConfig     = configtypes.BatchConfig
	WordPressConfig = configtypes.WordPressConfig
	RedisConfig     = configtypes.RedisConfig
	LogConfig       = configtypes.LogConfig
	MetricsConfig   = configtypes.MetricsConfig
)

// Compile-time interface satisfaction check
var _ configtypes.ConfigProvider = (*AnalyzerConfigManager)(nil)

// Built-in profile defaults. These reproduce the Google SERP display
// assumptions and apply only when a profile is absent from the config file;
// the analyzer itself never sees them as anything but injected parameters.
var (
	defaultTitleProfile = types.DisplayProfile{
		FontFamily: "Arial",
		FontSize:   18,
		MaxPixels:  600,
	}
	defaultDescriptionProfile = types.DisplayProfile{
		FontFamily: "Arial",
		FontSize:   14,
		MaxPixels:  920,
		MinPixels:  430,
	}
)

// AnalyzerConfigManager handles configuration loading
type AnalyzerConfigManager struct {
	config     *AnalyzerConfig
	configPath string
	logger     *zap.Logger
}

func NewAnalyzerConfigManager(configPath string, logger *zap.Logger) (*AnalyzerConfigManager, error) {
	cm := &AnalyzerConfigManager{
		configPath: configPath,
		logger:     logger,
	}

	if err := cm.LoadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load initial config: %w", err)
	}

	return cm, nil
}

// LoadConfig loads configuration from the config file
func (cm *AnalyzerConfigManager) LoadConfig() error {
	data, err := os.ReadFile(cm.configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var config AnalyzerConfig
	if err := yamlutil.UnmarshalStrict(data, &config); err != nil {
		return fmt.Errorf("invalid YAML in %s: %w", cm.configPath, err)
	}

	cm.config = &config
	cm.applyDefaults()

	if err := cm.validate(); err != nil {
		return fmt.Errorf("invalid configuration in %s: %w", cm.configPath, err)
	}

	cm.emitConfigWarnings()

	return nil
}

// GetConfig returns the current analyzer service configuration
func (cm *AnalyzerConfigManager) GetConfig() *AnalyzerConfig {
	return cm.config
}

// GetProfiles returns the resolved display profiles
func (cm *AnalyzerConfigManager) GetProfiles() *types.ProfileSet {
	return &cm.config.Profiles
}

// SetConfig sets the configuration (for testing)
func (cm *AnalyzerConfigManager) SetConfig(cfg *AnalyzerConfig) {
	cm.config = cfg
}

// applyDefaults applies default values to configuration
func (cm *AnalyzerConfigManager) applyDefaults() {
	cfg := cm.config

	if cfg.Server.Listen == "" {
		cfg.Server.Listen = ":8090"
	}
	if cfg.Server.Timeout == 0 {
		cfg.Server.Timeout = types.Duration(30 * time.Second)
	}
	if cfg.Server.MaxBodySize == 0 {
		cfg.Server.MaxBodySize = 1 << 20 // 1 MiB
	}

	// Missing profiles get the built-in SERP defaults
	if cfg.Profiles.Title == (types.DisplayProfile{}) {
		cfg.Profiles.Title = defaultTitleProfile
	}
	if cfg.Profiles.Description == (types.DisplayProfile{}) {
		cfg.Profiles.Description = defaultDescriptionProfile
	}

	if cfg.Measurer.Backend == "" {
		cfg.Measurer.Backend = configtypes.MeasurerBackendCanvas
	}

	if cfg.Batch.MaxItems == 0 {
		cfg.Batch.MaxItems = 100
	}
	if cfg.Batch.Concurrency == 0 {
		cfg.Batch.Concurrency = 8
	}

	if wp := cfg.WordPress; wp != nil {
		if wp.Timeout == 0 {
			wp.Timeout = types.Duration(20 * time.Second)
		}
		if wp.UserAgent == "" {
			wp.UserAgent = "SerpLens-Analyzer/1.0"
		}
		if wp.PerPage == 0 {
			wp.PerPage = 100
		}
		if wp.MaxPages == 0 {
			wp.MaxPages = 10
		}
		if wp.MaxRedirects == 0 {
			wp.MaxRedirects = 3
		}
		if wp.Cache.Enabled && wp.Cache.TTL == 0 {
			wp.Cache.TTL = types.Duration(15 * time.Minute)
		}
		if wp.Cache.Compression == "" {
			wp.Cache.Compression = types.CompressionSnappy
		}
	}

	// Apply log configuration defaults
	// If both outputs are disabled (zero values), enable console by default
	if !cfg.Log.Console.Enabled && !cfg.Log.File.Enabled {
		cfg.Log.Console.Enabled = true
	}
	if cfg.Log.Console.Format == "" {
		cfg.Log.Console.Format = configtypes.LogFormatConsole
	}
	if cfg.Log.File.Format == "" {
		cfg.Log.File.Format = configtypes.LogFormatText
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = "serplens"
	}
}

// validate checks the loaded configuration for consistency
func (cm *AnalyzerConfigManager) validate() error {
	cfg := cm.config

	if err := configtypes.ValidateListenAddress(cfg.Server.Listen); err != nil {
		return fmt.Errorf("server.listen: %w", err)
	}
	if cfg.Server.Timeout <= 0 {
		return fmt.Errorf("server.timeout must be positive")
	}

	if err := cfg.Profiles.Validate(); err != nil {
		return fmt.Errorf("profiles: %w", err)
	}

	switch cfg.Measurer.Backend {
	case configtypes.MeasurerBackendCanvas, configtypes.MeasurerBackendChrome:
	default:
		return fmt.Errorf("measurer.backend must be %q or %q, got %q",
			configtypes.MeasurerBackendCanvas, configtypes.MeasurerBackendChrome, cfg.Measurer.Backend)
	}

	if cfg.Batch.MaxItems < 1 {
		return fmt.Errorf("batch.max_items must be at least 1")
	}
	if cfg.Batch.Concurrency < 1 {
		return fmt.Errorf("batch.concurrency must be at least 1")
	}

	if cfg.Metrics.Enabled {
		if err := configtypes.ValidateListenAddress(cfg.Metrics.Listen); err != nil {
			return fmt.Errorf("metrics.listen: %w", err)
		}
	}

	if wp := cfg.WordPress; wp != nil && wp.Enabled {
		if wp.PerPage < 1 || wp.PerPage > 100 {
			return fmt.Errorf("wordpress.per_page must be between 1 and 100, got %d", wp.PerPage)
		}
		if wp.MaxPages < 1 {
			return fmt.Errorf("wordpress.max_pages must be at least 1")
		}
		switch wp.Cache.Compression {
		case types.CompressionNone, types.CompressionSnappy, types.CompressionLZ4:
		default:
			return fmt.Errorf("wordpress.cache.compression must be one of none, snappy, lz4, got %q", wp.Cache.Compression)
		}
		if wp.Cache.Enabled && cfg.Redis == nil {
			return fmt.Errorf("wordpress.cache.enabled requires a redis section")
		}
	}

	if ev := cfg.EventLogging; ev != nil {
		if ev.File.Enabled && ev.File.Path == "" {
			return fmt.Errorf("event_logging.file.path is required when file logging is enabled")
		}
		if ev.ClickHouse.Enabled {
			if len(ev.ClickHouse.Addr) == 0 {
				return fmt.Errorf("event_logging.clickhouse.addr is required when the clickhouse sink is enabled")
			}
			if ev.ClickHouse.Database == "" || ev.ClickHouse.Table == "" {
				return fmt.Errorf("event_logging.clickhouse.database and table are required when the clickhouse sink is enabled")
			}
		}
	}

	return nil
}

// emitConfigWarnings emits runtime warnings for configuration (non-validation concerns)
func (cm *AnalyzerConfigManager) emitConfigWarnings() {
	cfg := cm.config

	if wp := cfg.WordPress; wp != nil && wp.Enabled {
		if wp.Cache.Enabled && wp.Cache.TTL == 0 {
			cm.logger.Warn("wordpress.cache.enabled=true but ttl=0 (no caching - all requests fetch from origin)")
		}
		if len(wp.AllowedHosts) == 0 {
			cm.logger.Warn("wordpress.allowed_hosts is empty - any public host may be fetched")
		}
	}

	if cfg.Batch.Concurrency > cfg.Batch.MaxItems {
		cm.logger.Warn("batch.concurrency exceeds batch.max_items",
			zap.Int("concurrency", cfg.Batch.Concurrency),
			zap.Int("max_items", cfg.Batch.MaxItems))
	}
}
