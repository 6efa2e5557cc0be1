package types

import "time"

// AnalyzeAPIRequest is the request body for POST /analyze.
// Both fields are optional but at least one must be non-empty after trimming;
// the same fields are accepted as query parameters on GET /analyze.
type AnalyzeAPIRequest struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// AnalyzeAPIData is the data payload for the /analyze response, keyed by
// field name. Only the fields present in the request are populated.
type AnalyzeAPIData struct {
	Title       *AnalysisResult `json:"title,omitempty"`
	Description *AnalysisResult `json:"description,omitempty"`
}

// BatchAPIRequest is the request body for POST /analyze/batch
type BatchAPIRequest struct {
	Items []BatchAPIItem `json:"items"`
}

// BatchAPIItem is one entry of a batch request. ID is an opaque caller
// reference echoed back in the matching result slot.
type BatchAPIItem struct {
	ID          string `json:"id,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// BatchItemResult is one entry of a batch response. Either the analysis
// fields or Error is populated, never both. Slot order matches request order.
type BatchItemResult struct {
	ID          string          `json:"id,omitempty"`
	Title       *AnalysisResult `json:"title,omitempty"`
	Description *AnalysisResult `json:"description,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// BatchAPIData is the data payload for the /analyze/batch response
type BatchAPIData struct {
	Items       []BatchItemResult `json:"items"`
	Count       int               `json:"count"`
	CompletedAt time.Time         `json:"completed_at"`
}
