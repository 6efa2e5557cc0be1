package events

import (
	"time"

	"github.com/serplens/engine/pkg/types"
)

// Event type constants
const (
	EventTypeAnalyze        = "analyze"
	EventTypeBatchItem      = "batch_item"
	EventTypeWordPressFetch = "wordpress_fetch"
	EventTypeError          = "error"
)

// RequestInfo carries transport-level metadata shared by all events built for
// one request.
type RequestInfo struct {
	RequestID  string
	ClientIP   string
	UserAgent  string
	InstanceID string
}

// BuildAnalysisEvent creates an event for one analyzed field.
func BuildAnalysisEvent(info RequestInfo, field string, result *types.AnalysisResult, duration time.Duration) *AnalysisEvent {
	event := &AnalysisEvent{
		RequestID:  info.RequestID,
		InstanceID: info.InstanceID,
		EventType:  EventTypeAnalyze,
		Field:      field,
		ClientIP:   info.ClientIP,
		UserAgent:  info.UserAgent,
		ServeTime:  duration.Seconds(),
		CreatedAt:  time.Now().UTC(),
	}

	if result != nil {
		event.CharacterCount = result.CharacterCount
		event.PixelWidth = result.PixelWidth
		event.MaxPixels = result.MaxPixels
		event.IsTruncated = result.IsTruncated
		event.IsOptimal = result.IsOptimal
		event.RecommendedMaxChars = result.RecommendedMaxChars
		if result.IsTooShort != nil {
			event.IsTooShort = *result.IsTooShort
		}
	}

	return event
}

// BuildBatchItemEvent creates an event for one item inside a batch request.
// The batch id groups sibling items; index is the item's position.
func BuildBatchItemEvent(info RequestInfo, batchID string, index int, field string, result *types.AnalysisResult, duration time.Duration) *AnalysisEvent {
	event := BuildAnalysisEvent(info, field, result, duration)
	event.EventType = EventTypeBatchItem
	event.BatchID = batchID
	event.BatchIndex = index
	return event
}

// BuildWordPressFetchEvent creates an event for one paginated content fetch.
func BuildWordPressFetchEvent(info RequestInfo, host, resource string, posts, pages int, cacheHit bool, duration time.Duration) *AnalysisEvent {
	return &AnalysisEvent{
		RequestID:  info.RequestID,
		InstanceID: info.InstanceID,
		EventType:  EventTypeWordPressFetch,
		ClientIP:   info.ClientIP,
		UserAgent:  info.UserAgent,
		ServeTime:  duration.Seconds(),
		CreatedAt:  time.Now().UTC(),
		WordPress: &WordPressFetchEvent{
			Host:      host,
			Resource:  resource,
			Posts:     posts,
			Pages:     pages,
			CacheHit:  cacheHit,
			FetchTime: duration.Seconds(),
		},
	}
}

// BuildErrorEvent creates an event for a failed request or batch item.
func BuildErrorEvent(info RequestInfo, field, errorType, errorMessage string) *AnalysisEvent {
	return &AnalysisEvent{
		RequestID:    info.RequestID,
		InstanceID:   info.InstanceID,
		EventType:    EventTypeError,
		Field:        field,
		ClientIP:     info.ClientIP,
		UserAgent:    info.UserAgent,
		ErrorType:    errorType,
		ErrorMessage: errorMessage,
		CreatedAt:    time.Now().UTC(),
	}
}
