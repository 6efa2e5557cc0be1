package fontmetrics

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/serplens/engine/internal/common/configtypes"
)

// Measurer reports the rendered width of text in CSS pixels. Widths are
// fractional; rounding policy belongs to the caller. Implementations must be
// deterministic: the same text, family and size always measure the same.
type Measurer interface {
	// MeasureWidth returns the advance width of text at the given font size.
	// Empty text measures zero. An unavailable font family measures with the
	// backend's fallback face rather than failing.
	MeasureWidth(text, fontFamily string, fontSizePx float64) (float64, error)

	// Backend identifies the measurement implementation for status reporting.
	Backend() string

	Close() error
}

// New builds the measurer selected by configuration.
func New(cfg configtypes.MeasurerConfig, logger *zap.Logger) (Measurer, error) {
	switch cfg.Backend {
	case configtypes.MeasurerBackendCanvas, "":
		return NewCanvasMeasurer(cfg.Fonts, logger)
	case configtypes.MeasurerBackendChrome:
		return NewChromeMeasurer(cfg.Chrome, logger)
	default:
		return nil, fmt.Errorf("unknown measurer backend: %q", cfg.Backend)
	}
}
