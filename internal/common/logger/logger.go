package logger

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/serplens/engine/internal/common/configtypes"
)

// DynamicLogger wraps zap.Logger with sink levels that can be adjusted at
// runtime. Startup and shutdown paths temporarily raise verbosity so the
// service lifecycle stays visible regardless of the configured level.
type DynamicLogger struct {
	*zap.Logger
	sinks []*levelSink
	level string
}

// levelSink pairs one output core's atomic level with the level the
// configuration asked for, so the startup override can be undone later.
type levelSink struct {
	level      zap.AtomicLevel
	configured zapcore.Level
}

// New creates a logger from the given configuration.
func New(config configtypes.LogConfig) (*DynamicLogger, error) {
	return build(config, false)
}

// NewWithStartupOverride creates a logger whose sinks start no quieter than
// INFO so startup logs remain visible. Sinks with an explicit per-output
// level keep it. Call SwitchToConfiguredLevel once startup is complete.
func NewWithStartupOverride(config configtypes.LogConfig) (*DynamicLogger, error) {
	return build(config, true)
}

// NewDefault creates a console debug logger for use before the configuration
// has been loaded.
func NewDefault() (*DynamicLogger, error) {
	return New(configtypes.LogConfig{
		Level: configtypes.LogLevelDebug,
		Console: configtypes.ConsoleLogConfig{
			Enabled: true,
			Format:  configtypes.LogFormatConsole,
		},
	})
}

func build(config configtypes.LogConfig, startupCap bool) (*DynamicLogger, error) {
	global := parseLevel(config.Level)

	// The cap only matters when the global level would hide INFO. Explicit
	// per-output levels are honored even during startup.
	if global <= zap.InfoLevel {
		startupCap = false
	}

	var (
		cores []zapcore.Core
		sinks []*levelSink
	)

	addSink := func(explicitLevel, format string, out zapcore.WriteSyncer) {
		configured := resolveLevel(explicitLevel, global)
		initial := configured
		if startupCap && explicitLevel == "" && initial > zap.InfoLevel {
			initial = zap.InfoLevel
		}
		sink := &levelSink{level: zap.NewAtomicLevelAt(initial), configured: configured}
		sinks = append(sinks, sink)
		cores = append(cores, zapcore.NewCore(newEncoder(format), out, sink.level))
	}

	if config.Console.Enabled {
		addSink(config.Console.Level, config.Console.Format, zapcore.Lock(os.Stdout))
	}

	if config.File.Enabled {
		if config.File.Path == "" {
			return nil, fmt.Errorf("file.path must be specified when file logging is enabled")
		}
		addSink(config.File.Level, config.File.Format, newRotatingWriter(config.File.Path, config.File.Rotation))
	}

	if len(sinks) == 0 {
		return nil, fmt.Errorf("at least one log output (console or file) must be enabled")
	}

	core := cores[0]
	if len(cores) > 1 {
		core = zapcore.NewTee(cores...)
	}

	return &DynamicLogger{
		Logger: zap.New(core),
		sinks:  sinks,
		level:  config.Level,
	}, nil
}

// SwitchToConfiguredLevel restores every sink to the level the configuration
// asked for, ending the startup override.
func (dl *DynamicLogger) SwitchToConfiguredLevel() {
	dl.Info("Switching logger to configured level", zap.String("level", dl.level))

	for _, sink := range dl.sinks {
		sink.level.SetLevel(sink.configured)
	}
}

// EnsureInfoLevelForShutdown lowers any sink quieter than INFO back to INFO
// so the shutdown sequence is logged.
func (dl *DynamicLogger) EnsureInfoLevelForShutdown() {
	changed := false

	for _, sink := range dl.sinks {
		if sink.level.Level() > zap.InfoLevel {
			sink.level.SetLevel(zap.InfoLevel)
			changed = true
		}
	}

	if changed {
		dl.Info("Switched to INFO level for shutdown visibility")
	}
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case configtypes.LogLevelDebug:
		return zap.DebugLevel
	case configtypes.LogLevelInfo:
		return zap.InfoLevel
	case configtypes.LogLevelWarn:
		return zap.WarnLevel
	case configtypes.LogLevelError:
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

// resolveLevel returns the explicit per-output level when set, otherwise the
// global level.
func resolveLevel(outputLevel string, globalLevel zapcore.Level) zapcore.Level {
	if outputLevel != "" {
		return parseLevel(outputLevel)
	}
	return globalLevel
}

func newEncoder(format string) zapcore.Encoder {
	if format == configtypes.LogFormatJSON {
		return zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	}

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	if format == configtypes.LogFormatText {
		// Plain text without color codes, for files
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	} else {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	return zapcore.NewConsoleEncoder(encoderConfig)
}

func newRotatingWriter(path string, rotation configtypes.RotationConfig) zapcore.WriteSyncer {
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    rotation.MaxSize,
		MaxAge:     rotation.MaxAge,
		MaxBackups: rotation.MaxBackups,
		Compress:   rotation.Compress,
	})
}
