package events

import (
	"time"
)

// AnalysisEvent contains all data for a single analysis event
type AnalysisEvent struct {
	// Identifiers
	RequestID  string `json:"request_id"`
	InstanceID string `json:"instance_id"`

	// Request metadata
	EventType string `json:"event_type"` // analyze, batch_item, wordpress_fetch, error
	Field     string `json:"field"`      // title, description
	ClientIP  string `json:"client_ip"`
	UserAgent string `json:"user_agent"`

	// Analysis outcome
	CharacterCount      int     `json:"character_count"`
	PixelWidth          int     `json:"pixel_width"`
	MaxPixels           float64 `json:"max_pixels"`
	IsTruncated         bool    `json:"is_truncated"`
	IsOptimal           bool    `json:"is_optimal"`
	IsTooShort          bool    `json:"is_too_short"`
	RecommendedMaxChars int     `json:"recommended_max_chars"`

	// Timing
	ServeTime float64 `json:"serve_time"` // seconds

	// Batch context (empty for single-field requests)
	BatchID    string `json:"batch_id"`
	BatchIndex int    `json:"batch_index"`

	// WordPress fetch details (nil for analysis events)
	WordPress *WordPressFetchEvent `json:"wordpress,omitempty"`

	// Error info
	ErrorType    string `json:"error_type"`
	ErrorMessage string `json:"error_message"`

	// Timestamps
	CreatedAt time.Time `json:"created_at"`
}

// WordPressFetchEvent contains details of one paginated content fetch
type WordPressFetchEvent struct {
	Host      string  `json:"host"`
	Resource  string  `json:"resource"`
	Posts     int     `json:"posts"`
	Pages     int     `json:"pages"`
	CacheHit  bool    `json:"cache_hit"`
	FetchTime float64 `json:"fetch_time"` // seconds
}
