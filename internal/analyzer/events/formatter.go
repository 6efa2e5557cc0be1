package events

import (
	"fmt"
	"strings"
	"time"
)

// TemplateFormatter formats AnalysisEvent using a template string
type TemplateFormatter struct {
	template     string
	placeholders []placeholder
}

type placeholder struct {
	raw       string   // e.g., "{wordpress.posts}"
	fieldPath []string // e.g., ["wordpress", "posts"]
	start     int
	end       int
}

// validFields contains all known placeholder names
var validFields = map[string]bool{
	"timestamp":             true,
	"request_id":            true,
	"instance_id":           true,
	"event_type":            true,
	"field":                 true,
	"client_ip":             true,
	"user_agent":            true,
	"character_count":       true,
	"pixel_width":           true,
	"max_pixels":            true,
	"is_truncated":          true,
	"is_optimal":            true,
	"is_too_short":          true,
	"recommended_max_chars": true,
	"serve_time":            true,
	"batch_id":              true,
	"batch_index":           true,
	"error_type":            true,
	"error_message":         true,
	"wordpress.host":        true,
	"wordpress.resource":    true,
	"wordpress.posts":       true,
	"wordpress.pages":       true,
	"wordpress.cache_hit":   true,
	"wordpress.fetch_time":  true,
}

// NewTemplateFormatter parses and validates the template.
// Returns error if any placeholder is unknown or template is empty.
func NewTemplateFormatter(template string) (*TemplateFormatter, error) {
	if template == "" {
		return nil, fmt.Errorf("template cannot be empty")
	}

	placeholders, err := parsePlaceholders(template)
	if err != nil {
		return nil, err
	}

	return &TemplateFormatter{
		template:     template,
		placeholders: placeholders,
	}, nil
}

// parsePlaceholders extracts and validates all placeholders from the template
func parsePlaceholders(template string) ([]placeholder, error) {
	var placeholders []placeholder
	i := 0

	for i < len(template) {
		// Find opening brace
		start := strings.Index(template[i:], "{")
		if start == -1 {
			break
		}
		start += i

		// Find closing brace
		end := strings.Index(template[start:], "}")
		if end == -1 {
			return nil, fmt.Errorf("unclosed placeholder at position %d", start)
		}
		end += start

		// Extract field name (without braces)
		fieldName := template[start+1 : end]
		if fieldName == "" {
			return nil, fmt.Errorf("empty placeholder at position %d", start)
		}

		// Validate field name
		if !validFields[fieldName] {
			return nil, fmt.Errorf("unknown placeholder {%s}", fieldName)
		}

		// Parse field path (e.g., "wordpress.posts" -> ["wordpress", "posts"])
		fieldPath := strings.Split(fieldName, ".")

		placeholders = append(placeholders, placeholder{
			raw:       template[start : end+1],
			fieldPath: fieldPath,
			start:     start,
			end:       end + 1,
		})

		i = end + 1
	}

	return placeholders, nil
}

// Template returns the original template string
func (f *TemplateFormatter) Template() string {
	return f.template
}

// Placeholders returns the parsed placeholders (for testing)
func (f *TemplateFormatter) Placeholders() []placeholder {
	return f.placeholders
}

// Format renders the event using the template
func (f *TemplateFormatter) Format(event *AnalysisEvent) string {
	if len(f.placeholders) == 0 {
		return f.template
	}

	result := f.template
	// Process placeholders in reverse order to maintain correct positions
	for i := len(f.placeholders) - 1; i >= 0; i-- {
		p := f.placeholders[i]
		value := f.getFieldValue(event, p.fieldPath)
		result = result[:p.start] + value + result[p.end:]
	}

	return result
}

// getFieldValue retrieves and formats a field value from the event
func (f *TemplateFormatter) getFieldValue(event *AnalysisEvent, fieldPath []string) string {
	if len(fieldPath) == 0 {
		return "-"
	}

	// Handle nested wordpress fields
	if fieldPath[0] == "wordpress" {
		if event.WordPress == nil {
			return "-"
		}
		if len(fieldPath) < 2 {
			return "-"
		}
		return f.getWordPressFieldValue(event.WordPress, fieldPath[1])
	}

	// Handle top-level fields
	return f.getTopLevelFieldValue(event, fieldPath[0])
}

// getTopLevelFieldValue retrieves and formats a top-level field
func (f *TemplateFormatter) getTopLevelFieldValue(event *AnalysisEvent, field string) string {
	switch field {
	case "timestamp":
		return formatTime(event.CreatedAt)
	case "request_id":
		return formatString(event.RequestID)
	case "instance_id":
		return formatString(event.InstanceID)
	case "event_type":
		return formatString(event.EventType)
	case "field":
		return formatString(event.Field)
	case "client_ip":
		return formatString(event.ClientIP)
	case "user_agent":
		return formatString(event.UserAgent)
	case "character_count":
		return formatInt(event.CharacterCount)
	case "pixel_width":
		return formatInt(event.PixelWidth)
	case "max_pixels":
		return formatFloat(event.MaxPixels)
	case "is_truncated":
		return formatBool(event.IsTruncated)
	case "is_optimal":
		return formatBool(event.IsOptimal)
	case "is_too_short":
		return formatBool(event.IsTooShort)
	case "recommended_max_chars":
		return formatInt(event.RecommendedMaxChars)
	case "serve_time":
		return formatFloat(event.ServeTime)
	case "batch_id":
		return formatString(event.BatchID)
	case "batch_index":
		return formatInt(event.BatchIndex)
	case "error_type":
		return formatString(event.ErrorType)
	case "error_message":
		return formatString(event.ErrorMessage)
	default:
		return "-"
	}
}

// getWordPressFieldValue retrieves and formats a wordpress fetch field
func (f *TemplateFormatter) getWordPressFieldValue(wp *WordPressFetchEvent, field string) string {
	switch field {
	case "host":
		return formatString(wp.Host)
	case "resource":
		return formatString(wp.Resource)
	case "posts":
		return formatInt(wp.Posts)
	case "pages":
		return formatInt(wp.Pages)
	case "cache_hit":
		return formatBool(wp.CacheHit)
	case "fetch_time":
		return formatFloat(wp.FetchTime)
	default:
		return "-"
	}
}

// escapeString escapes special characters in a string for log output
func escapeString(s string) string {
	escaped := strings.ReplaceAll(s, "\\", "\\\\")
	escaped = strings.ReplaceAll(escaped, "\"", "\\\"")
	escaped = strings.ReplaceAll(escaped, "\n", "\\n")
	escaped = strings.ReplaceAll(escaped, "\t", "\\t")
	escaped = strings.ReplaceAll(escaped, "\r", "\\r")
	return escaped
}

// formatString formats a string value with quotes and escaping
func formatString(s string) string {
	if s == "" {
		return "-"
	}
	return "\"" + escapeString(s) + "\""
}

// formatInt formats an integer
func formatInt(i int) string {
	return fmt.Sprintf("%d", i)
}

// formatFloat formats a float64 with 3 decimal places
func formatFloat(f float64) string {
	return fmt.Sprintf("%.3f", f)
}

// formatBool formats a boolean
func formatBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// formatTime formats a time in ISO 8601 format
func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}
