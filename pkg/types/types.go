package types

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Field kind constants for analyzable meta fields
const (
	FieldTitle       = "title"
	FieldDescription = "description"
)

// DisplayProfile describes how one meta-field kind is measured: the font it is
// rendered with and the pixel budget the search result page gives it.
// MinPixels is optional; zero means no minimum applies.
type DisplayProfile struct {
	FontFamily string  `yaml:"font_family" json:"font_family"`
	FontSize   float64 `yaml:"font_size" json:"font_size"`
	MaxPixels  float64 `yaml:"max_pixels" json:"max_pixels"`
	MinPixels  float64 `yaml:"min_pixels,omitempty" json:"min_pixels,omitempty"`
}

// Validate checks the profile invariants: positive font size, positive budget,
// and 0 < MinPixels < MaxPixels when a minimum is set.
func (p *DisplayProfile) Validate() error {
	if p.FontFamily == "" {
		return fmt.Errorf("font_family is required")
	}
	if p.FontSize <= 0 {
		return fmt.Errorf("font_size must be positive, got %v", p.FontSize)
	}
	if p.MaxPixels <= 0 {
		return fmt.Errorf("max_pixels must be positive, got %v", p.MaxPixels)
	}
	if p.MinPixels < 0 {
		return fmt.Errorf("min_pixels must not be negative, got %v", p.MinPixels)
	}
	if p.MinPixels > 0 && p.MinPixels >= p.MaxPixels {
		return fmt.Errorf("min_pixels (%v) must be below max_pixels (%v)", p.MinPixels, p.MaxPixels)
	}
	return nil
}

// HasMinimum reports whether the profile defines a minimum healthy width.
func (p *DisplayProfile) HasMinimum() bool {
	return p.MinPixels > 0
}

// ProfileSet holds the display profiles for both meta-field kinds.
// Profiles are deployment configuration and are injected into the analyzer,
// never looked up from ambient state.
type ProfileSet struct {
	Title       DisplayProfile `yaml:"title" json:"title"`
	Description DisplayProfile `yaml:"description" json:"description"`
}

// Validate checks both profiles.
func (ps *ProfileSet) Validate() error {
	if err := ps.Title.Validate(); err != nil {
		return fmt.Errorf("title profile: %w", err)
	}
	if err := ps.Description.Validate(); err != nil {
		return fmt.Errorf("description profile: %w", err)
	}
	return nil
}

// ForField returns the profile for a field kind ("title" or "description")
// together with the description-like flag.
func (ps *ProfileSet) ForField(field string) (DisplayProfile, bool, error) {
	switch field {
	case FieldTitle:
		return ps.Title, false, nil
	case FieldDescription:
		return ps.Description, true, nil
	default:
		return DisplayProfile{}, false, fmt.Errorf("unknown field kind: %s", field)
	}
}

// AnalysisResult is the full diagnostic record for one analyzed text field.
// MinPixels and IsTooShort are present only for description-like fields.
type AnalysisResult struct {
	PixelWidth          int      `json:"pixel_width"`
	CharacterCount      int      `json:"character_count"`
	IsTruncated         bool     `json:"is_truncated"`
	TruncatedText       string   `json:"truncated_text"`
	IsOptimal           bool     `json:"is_optimal"`
	RecommendedMaxChars int      `json:"recommended_max_chars"`
	MaxPixels           float64  `json:"max_pixels"`
	MinPixels           *float64 `json:"min_pixels,omitempty"`
	IsTooShort          *bool    `json:"is_too_short,omitempty"`
}

// Compression algorithm constants
const (
	CompressionNone   = "none"   // No compression
	CompressionSnappy = "snappy" // Snappy compression (default)
	CompressionLZ4    = "lz4"    // LZ4 compression
)

// CompressionMinSize is the minimum payload size in bytes for compression to be
// applied. Smaller payloads are stored uncompressed.
const CompressionMinSize = 1024

// Duration wraps time.Duration with extended YAML parsing support for days and weeks
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for extended duration formats
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}

	// Try standard parsing first (handles: ns, us, ms, s, m, h)
	dur, err := time.ParseDuration(s)
	if err == nil {
		*d = Duration(dur)
		return nil
	}

	// Parse extended formats: d (days), w (weeks)
	dur, err = parseExtendedDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(dur)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalJSON implements json.Unmarshaler for Duration.
// Accepts both numbers (nanoseconds, backward-compatible) and strings ("15s", "24h", "30d", "2w").
func (d *Duration) UnmarshalJSON(data []byte) error {
	var ns int64
	if err := json.Unmarshal(data, &ns); err == nil {
		*d = Duration(ns)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string or number, got %s", string(data))
	}

	dur, err := time.ParseDuration(s)
	if err == nil {
		*d = Duration(dur)
		return nil
	}

	dur, err = parseExtendedDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(dur)
	return nil
}

// MarshalJSON implements json.Marshaler for Duration.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// ToDuration converts types.Duration to time.Duration
func (d Duration) ToDuration() time.Duration {
	return time.Duration(d)
}

// String implements fmt.Stringer for Duration
func (d Duration) String() string {
	return time.Duration(d).String()
}

// parseExtendedDuration parses duration strings with extended suffixes: d (days), w (weeks)
// Examples: "30d", "2w", "1.5d"
func parseExtendedDuration(s string) (time.Duration, error) {
	// Regex: optional sign, number (int or float), suffix (d or w)
	re := regexp.MustCompile(`^(-?)(\d+(?:\.\d+)?)(d|w)$`)
	matches := re.FindStringSubmatch(s)
	if matches == nil {
		return 0, fmt.Errorf("invalid format, expected format like '30d' or '2w'")
	}

	sign := matches[1]
	valueStr := matches[2]
	suffix := matches[3]

	// Parse the numeric value
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid numeric value: %w", err)
	}

	// Apply sign
	if sign == "-" {
		value = -value
	}

	// Convert to time.Duration based on suffix
	var duration time.Duration
	switch suffix {
	case "d":
		duration = time.Duration(value * float64(24*time.Hour))
	case "w":
		duration = time.Duration(value * float64(7*24*time.Hour))
	default:
		return 0, fmt.Errorf("unsupported suffix %q", suffix)
	}

	return duration, nil
}
