package meta

import (
	"fmt"
	"math"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/serplens/engine/internal/analyzer/fontmetrics"
	"github.com/serplens/engine/pkg/types"
)

// Ellipsis is the marker appended to truncated previews (U+2026).
const Ellipsis = "…"

// EllipsisReserve is the pixel width held back from the truncation budget so
// the appended ellipsis marker fits inside it.
const EllipsisReserve = 5.0

// Analyzer derives truncation and optimality diagnostics for meta titles and
// descriptions from measured glyph widths. Every call is a pure function of
// (text, profile, field kind); concurrent use needs no coordination.
type Analyzer struct {
	measurer fontmetrics.Measurer
	profiles types.ProfileSet
	logger   *zap.Logger
}

// NewAnalyzer creates an Analyzer bound to a metrics backend and the display
// profiles resolved from deployment configuration.
func NewAnalyzer(measurer fontmetrics.Measurer, profiles types.ProfileSet, logger *zap.Logger) *Analyzer {
	return &Analyzer{
		measurer: measurer,
		profiles: profiles,
		logger:   logger,
	}
}

// Profiles returns the display profiles the analyzer was configured with.
func (a *Analyzer) Profiles() types.ProfileSet {
	return a.profiles
}

// AnalyzeField resolves the profile for a field kind ("title" or
// "description") and analyzes text with it.
func (a *Analyzer) AnalyzeField(text, field string) (*types.AnalysisResult, error) {
	profile, descriptionLike, err := a.profiles.ForField(field)
	if err != nil {
		return nil, err
	}
	return a.Analyze(text, profile, descriptionLike)
}

// Analyze produces the full diagnostic record for one text field.
//
// Callers must pass text that is non-empty after trimming; the routing layer
// rejects empty fields before they reach the analyzer. Empty input still
// yields a degenerate zero record rather than a panic.
func (a *Analyzer) Analyze(text string, profile types.DisplayProfile, descriptionLike bool) (*types.AnalysisResult, error) {
	measured, err := a.measurer.MeasureWidth(text, profile.FontFamily, profile.FontSize)
	if err != nil {
		return nil, fmt.Errorf("failed to measure text: %w", err)
	}

	pixelWidth := int(math.Round(measured))
	characterCount := utf8.RuneCountInString(text)
	isTruncated := float64(pixelWidth) > profile.MaxPixels

	truncatedText := text
	if isTruncated {
		truncatedText, err = a.truncate(text, profile)
		if err != nil {
			return nil, err
		}
	}

	// The average glyph width is a heuristic over the rounded total; it
	// assumes uniform widths, so the derived character budget is an
	// estimate, not an exact truncation predictor.
	var avgCharWidth float64
	if characterCount > 0 {
		avgCharWidth = float64(pixelWidth) / float64(characterCount)
	}
	var recommendedMaxChars int
	if avgCharWidth > 0 {
		recommendedMaxChars = int(math.Floor(profile.MaxPixels / avgCharWidth))
	}

	result := &types.AnalysisResult{
		PixelWidth:          pixelWidth,
		CharacterCount:      characterCount,
		IsTruncated:         isTruncated,
		TruncatedText:       truncatedText,
		RecommendedMaxChars: recommendedMaxChars,
		MaxPixels:           profile.MaxPixels,
	}

	if descriptionLike {
		tooShort := profile.HasMinimum() && float64(pixelWidth) < profile.MinPixels
		result.IsTooShort = &tooShort
		if profile.HasMinimum() {
			minPixels := profile.MinPixels
			result.MinPixels = &minPixels
		}
		result.IsOptimal = !isTruncated && !tooShort
	} else {
		result.IsOptimal = !isTruncated
	}

	a.logger.Debug("analyzed meta field",
		zap.Int("pixel_width", pixelWidth),
		zap.Int("character_count", characterCount),
		zap.Bool("truncated", isTruncated),
		zap.Float64("max_pixels", profile.MaxPixels))

	return result, nil
}

// truncate finds the longest prefix whose measured width stays within the
// budget reduced by EllipsisReserve, and returns it with the marker appended.
//
// Prefixes are scanned in increasing length order and remeasured in full each
// step: kerning makes glyph widths non-additive, so a running sum of per-rune
// widths would drift from the rendered width. The scan is O(n^2) in text
// length. It stops at the first prefix whose width strictly exceeds the
// reduced budget; a prefix that lands exactly on the budget is kept. When
// even a single rune exceeds the budget, the preview is just the marker.
func (a *Analyzer) truncate(text string, profile types.DisplayProfile) (string, error) {
	budget := profile.MaxPixels - EllipsisReserve
	runes := []rune(text)

	cut := 0
	for i := 1; i <= len(runes); i++ {
		width, err := a.measurer.MeasureWidth(string(runes[:i]), profile.FontFamily, profile.FontSize)
		if err != nil {
			return "", fmt.Errorf("failed to measure truncation prefix: %w", err)
		}
		if width > budget {
			break
		}
		cut = i
	}

	return string(runes[:cut]) + Ellipsis, nil
}
