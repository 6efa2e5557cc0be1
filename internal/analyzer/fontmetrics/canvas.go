package fontmetrics

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/tdewolff/canvas"
	"go.uber.org/zap"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	// CSS pixels assume 96dpi; canvas font faces are sized in points (72dpi)
	// and report widths in millimeters.
	ptPerPx = 72.0 / 96.0
	pxPerMm = 96.0 / 25.4
)

// CanvasMeasurer shapes text with github.com/tdewolff/canvas. Font files come
// from configuration; families without a file (or whose file fails to load)
// measure with the embedded Go Regular face, so widths stay deterministic per
// deployment even when a font is missing.
type CanvasMeasurer struct {
	fontPaths map[string]string

	mu       sync.RWMutex
	families map[string]*canvas.FontFamily
	faces    map[faceKey]*canvas.FontFace
	fallback *canvas.FontFamily

	// canvas font shaping mutates internal glyph caches; measurement calls
	// are serialized while the face cache stays readable concurrently.
	measureMu sync.Mutex

	logger *zap.Logger
}

type faceKey struct {
	family string
	sizePx float64
}

func NewCanvasMeasurer(fontPaths map[string]string, logger *zap.Logger) (*CanvasMeasurer, error) {
	fallback := canvas.NewFontFamily("fallback")
	if err := fallback.LoadFont(goregular.TTF, 0, canvas.FontRegular); err != nil {
		return nil, fmt.Errorf("failed to load embedded fallback font: %w", err)
	}

	paths := make(map[string]string, len(fontPaths))
	for family, path := range fontPaths {
		paths[strings.ToLower(family)] = path
	}

	return &CanvasMeasurer{
		fontPaths: paths,
		families:  make(map[string]*canvas.FontFamily),
		faces:     make(map[faceKey]*canvas.FontFace),
		fallback:  fallback,
		logger:    logger,
	}, nil
}

func (m *CanvasMeasurer) Backend() string {
	return "canvas"
}

func (m *CanvasMeasurer) Close() error {
	return nil
}

func (m *CanvasMeasurer) MeasureWidth(text, fontFamily string, fontSizePx float64) (float64, error) {
	if fontSizePx <= 0 {
		return 0, fmt.Errorf("font size must be positive, got %v", fontSizePx)
	}
	if text == "" {
		return 0, nil
	}

	face, err := m.face(fontFamily, fontSizePx)
	if err != nil {
		return 0, err
	}

	m.measureMu.Lock()
	widthMm := face.TextWidth(text)
	m.measureMu.Unlock()

	return widthMm * pxPerMm, nil
}

func (m *CanvasMeasurer) face(fontFamily string, fontSizePx float64) (*canvas.FontFace, error) {
	key := faceKey{family: strings.ToLower(fontFamily), sizePx: fontSizePx}

	m.mu.RLock()
	face, ok := m.faces[key]
	m.mu.RUnlock()
	if ok {
		return face, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if face, ok := m.faces[key]; ok {
		return face, nil
	}

	family := m.familyLocked(key.family)
	face = family.Face(fontSizePx*ptPerPx, canvas.Black, canvas.FontRegular, canvas.FontNormal)
	m.faces[key] = face
	return face, nil
}

// familyLocked resolves a family name to a loaded font family. Must be called
// with mu held for writing. Resolution failures are cached as the fallback so
// the warning fires once per family.
func (m *CanvasMeasurer) familyLocked(name string) *canvas.FontFamily {
	if family, ok := m.families[name]; ok {
		return family
	}

	family := m.loadFamily(name)
	m.families[name] = family
	return family
}

func (m *CanvasMeasurer) loadFamily(name string) *canvas.FontFamily {
	path, ok := m.fontPaths[name]
	if !ok {
		m.logger.Warn("No font file configured for family, measuring with fallback face",
			zap.String("font_family", name))
		return m.fallback
	}

	data, err := os.ReadFile(path)
	if err != nil {
		m.logger.Warn("Failed to read font file, measuring with fallback face",
			zap.String("font_family", name),
			zap.String("path", path),
			zap.Error(err))
		return m.fallback
	}

	family := canvas.NewFontFamily(name)
	if err := family.LoadFont(data, 0, canvas.FontRegular); err != nil {
		m.logger.Warn("Failed to parse font file, measuring with fallback face",
			zap.String("font_family", name),
			zap.String("path", path),
			zap.Error(err))
		return m.fallback
	}

	m.logger.Debug("Loaded font family",
		zap.String("font_family", name),
		zap.String("path", path))
	return family
}
