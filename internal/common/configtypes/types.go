package configtypes

import (
	"github.com/serplens/engine/pkg/types"
)

// Log level constants
const (
	LogLevelDebug  = "debug"
	LogLevelInfo   = "info"
	LogLevelWarn   = "warn"
	LogLevelError  = "error"
	LogLevelDPanic = "dpanic"
	LogLevelPanic  = "panic"
	LogLevelFatal  = "fatal"
)

// Log format constants
const (
	LogFormatJSON    = "json"
	LogFormatConsole = "console"
	LogFormatText    = "text"
)

// Measurer backend constants
const (
	MeasurerBackendCanvas = "canvas"
	MeasurerBackendChrome = "chrome"
)

// AnalyzerConfig represents the analyzer service main configuration
type AnalyzerConfig struct {
	ServiceID    string              `yaml:"service_id,omitempty"`
	Server       ServerConfig        `yaml:"server"`
	Profiles     types.ProfileSet    `yaml:"profiles"`
	Measurer     MeasurerConfig      `yaml:"measurer"`
	Batch        BatchConfig         `yaml:"batch"`
	WordPress    *WordPressConfig    `yaml:"wordpress,omitempty"`
	Redis        *RedisConfig        `yaml:"redis,omitempty"`
	Log          LogConfig           `yaml:"log"`
	Metrics      MetricsConfig       `yaml:"metrics"`
	EventLogging *EventLoggingConfig `yaml:"event_logging,omitempty"`
	Internal     InternalConfig      `yaml:"internal"`
}

// InternalConfig holds the shared key guarding operational endpoints.
// An empty AuthKey leaves them open.
type InternalConfig struct {
	AuthKey string `yaml:"auth_key"`
}

type ServerConfig struct {
	Listen      string         `yaml:"listen"`
	Timeout     types.Duration `yaml:"timeout"`
	MaxBodySize int            `yaml:"max_body_size,omitempty"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// MeasurerConfig selects and configures the glyph metrics backend.
// Fonts maps family names to font file paths; families not listed fall back
// to the embedded default face.
type MeasurerConfig struct {
	Backend string            `yaml:"backend"`
	Fonts   map[string]string `yaml:"fonts,omitempty"`
	Chrome  *ChromeConfig     `yaml:"chrome,omitempty"`
}

// ChromeConfig configures the headless-Chrome measurement backend
type ChromeConfig struct {
	ExecPath       string         `yaml:"exec_path,omitempty"`
	NoSandbox      bool           `yaml:"no_sandbox,omitempty"`
	StartupTimeout types.Duration `yaml:"startup_timeout,omitempty"`
	MeasureTimeout types.Duration `yaml:"measure_timeout,omitempty"`
}

// BatchConfig bounds batch analysis requests
type BatchConfig struct {
	MaxItems    int `yaml:"max_items"`
	Concurrency int `yaml:"concurrency"`
}

// WordPressConfig configures the paginated content fetcher
type WordPressConfig struct {
	Enabled        bool           `yaml:"enabled"`
	Timeout        types.Duration `yaml:"timeout"`
	UserAgent      string         `yaml:"user_agent"`
	PerPage        int            `yaml:"per_page"`
	MaxPages       int            `yaml:"max_pages"`
	MaxRedirects   int            `yaml:"max_redirects"`
	AllowedHosts   []string       `yaml:"allowed_hosts,omitempty"`
	SSRFProtection *bool          `yaml:"ssrf_protection,omitempty"` // Block requests to private IPs (default: true)
	Cache          WPCacheConfig  `yaml:"cache"`
}

// WPCacheConfig configures the redis-backed fetch cache
type WPCacheConfig struct {
	Enabled     bool           `yaml:"enabled"`
	TTL         types.Duration `yaml:"ttl"`
	Compression string         `yaml:"compression,omitempty"` // Compression algorithm: none, snappy, lz4
}

type LogConfig struct {
	Level   string           `yaml:"level"`
	Console ConsoleLogConfig `yaml:"console"`
	File    FileLogConfig    `yaml:"file"`
}

type ConsoleLogConfig struct {
	Enabled bool   `yaml:"enabled"`
	Format  string `yaml:"format"`
	Level   string `yaml:"level,omitempty"`
}

type FileLogConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Path     string         `yaml:"path"`
	Format   string         `yaml:"format"`
	Level    string         `yaml:"level,omitempty"`
	Rotation RotationConfig `yaml:"rotation"`
}

type RotationConfig struct {
	MaxSize    int  `yaml:"max_size"`
	MaxAge     int  `yaml:"max_age"`
	MaxBackups int  `yaml:"max_backups"`
	Compress   bool `yaml:"compress"`
}

type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Listen    string `yaml:"listen"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
}

// EventLoggingConfig configures analysis event logging sinks
type EventLoggingConfig struct {
	File       EventFileConfig       `yaml:"file"`
	ClickHouse EventClickHouseConfig `yaml:"clickhouse"`
}

// EventFileConfig configures file-based event logging
type EventFileConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Path     string         `yaml:"path"`
	Template string         `yaml:"template"`
	Rotation RotationConfig `yaml:"rotation"`
}

// EventClickHouseConfig configures the ClickHouse event sink
type EventClickHouseConfig struct {
	Enabled       bool           `yaml:"enabled"`
	Addr          []string       `yaml:"addr"`
	Database      string         `yaml:"database"`
	Table         string         `yaml:"table"`
	Username      string         `yaml:"username"`
	Password      string         `yaml:"password"`
	DialTimeout   types.Duration `yaml:"dial_timeout,omitempty"`
	FlushInterval types.Duration `yaml:"flush_interval,omitempty"`
	BatchSize     int            `yaml:"batch_size,omitempty"`
}
