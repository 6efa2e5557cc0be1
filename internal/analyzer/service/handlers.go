package service

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/serplens/engine/internal/analyzer/events"
	"github.com/serplens/engine/internal/analyzer/wordpress"
	"github.com/serplens/engine/internal/common/httputil"
	"github.com/serplens/engine/internal/common/urlutil"
	"github.com/serplens/engine/pkg/types"
)

const errAtLeastOneField = "at least one of title or description is required"

// HealthResponse represents the health check payload
type HealthResponse struct {
	Status        string `json:"status"`
	Backend       string `json:"backend"`
	UptimeSeconds int    `json:"uptime_seconds"`
}

// handleAnalyze processes GET and POST /analyze requests. GET reads the
// fields from query parameters, POST from the JSON body. Either field may be
// absent but not both; the response carries one result per supplied field.
func (s *Server) handleAnalyze(ctx *fasthttp.RequestCtx, requestID string, logger *zap.Logger) {
	var req types.AnalyzeAPIRequest
	if ctx.IsGet() {
		req.Title = string(ctx.QueryArgs().Peek("title"))
		req.Description = string(ctx.QueryArgs().Peek("description"))
	} else {
		if err := httputil.ParseJSONBody(ctx, &req); err != nil {
			s.metrics.RecordValidationError()
			s.writeError(ctx, "/analyze", err.Error(), fasthttp.StatusBadRequest)
			logger.Warn("Invalid analyze request body", zap.Error(err))
			return
		}
	}

	title := strings.TrimSpace(req.Title)
	description := strings.TrimSpace(req.Description)
	if title == "" && description == "" {
		s.metrics.RecordValidationError()
		s.writeError(ctx, "/analyze", errAtLeastOneField, fasthttp.StatusBadRequest)
		return
	}

	s.metrics.IncActiveRequests()
	defer s.metrics.DecActiveRequests()

	info := s.requestInfo(ctx, requestID)
	var data types.AnalyzeAPIData

	if title != "" {
		result, ok := s.analyzeOne(ctx, info, title, types.FieldTitle, logger)
		if !ok {
			return
		}
		data.Title = result
	}
	if description != "" {
		result, ok := s.analyzeOne(ctx, info, description, types.FieldDescription, logger)
		if !ok {
			return
		}
		data.Description = result
	}

	s.writeData(ctx, "/analyze", data, fasthttp.StatusOK)
}

// analyzeOne measures one field and records its outcome. On failure it writes
// the error response itself and returns ok=false; the request produces either
// a complete record or an error, never a partial one.
func (s *Server) analyzeOne(ctx *fasthttp.RequestCtx, info events.RequestInfo, text, field string, logger *zap.Logger) (*types.AnalysisResult, bool) {
	start := time.Now()

	result, err := s.analyzer.AnalyzeField(text, field)
	if err != nil {
		s.metrics.RecordAnalysisError(field)
		s.emit(events.BuildErrorEvent(info, field, "measurement", err.Error()))
		s.writeError(ctx, "/analyze", fmt.Sprintf("failed to analyze %s: %v", field, err), fasthttp.StatusInternalServerError)
		logger.Error("Field analysis failed",
			zap.String("field", field),
			zap.Error(err))
		return nil, false
	}

	duration := time.Since(start)
	s.metrics.RecordAnalysis(field, result, duration)
	s.emit(events.BuildAnalysisEvent(info, field, result, duration))
	return result, true
}

// handleBatch processes POST /analyze/batch. Items are analyzed concurrently
// but results keep request order; a failing item carries its error in place
// without failing the batch.
func (s *Server) handleBatch(ctx *fasthttp.RequestCtx, requestID string, logger *zap.Logger) {
	var req types.BatchAPIRequest
	if err := httputil.ParseJSONBody(ctx, &req); err != nil {
		s.metrics.RecordValidationError()
		s.writeError(ctx, "/analyze/batch", err.Error(), fasthttp.StatusBadRequest)
		logger.Warn("Invalid batch request body", zap.Error(err))
		return
	}

	cfg := s.configManager.GetConfig()
	if len(req.Items) == 0 {
		s.metrics.RecordValidationError()
		s.writeError(ctx, "/analyze/batch", "items array cannot be empty", fasthttp.StatusBadRequest)
		return
	}
	if len(req.Items) > cfg.Batch.MaxItems {
		s.metrics.RecordValidationError()
		s.writeError(ctx, "/analyze/batch",
			fmt.Sprintf("items array cannot exceed %d entries", cfg.Batch.MaxItems),
			fasthttp.StatusBadRequest)
		return
	}

	s.metrics.IncActiveRequests()
	defer s.metrics.DecActiveRequests()

	info := s.requestInfo(ctx, requestID)
	results := make([]types.BatchItemResult, len(req.Items))

	// Bounded fan-out; result slots are index-addressed so input order is
	// preserved regardless of completion order.
	sem := make(chan struct{}, cfg.Batch.Concurrency)
	var wg sync.WaitGroup
	for i, item := range req.Items {
		wg.Add(1)
		go func(index int, item types.BatchAPIItem) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[index] = s.analyzeBatchItem(info, requestID, index, item)
		}(i, item)
	}
	wg.Wait()

	failures := 0
	for _, r := range results {
		if r.Error != "" {
			failures++
		}
	}
	s.metrics.RecordBatch(len(results), failures)

	logger.Info("Batch analysis completed",
		zap.Int("items", len(results)),
		zap.Int("failures", failures))

	s.writeData(ctx, "/analyze/batch", types.BatchAPIData{
		Items:       results,
		Count:       len(results),
		CompletedAt: time.Now().UTC(),
	}, fasthttp.StatusOK)
}

// analyzeBatchItem analyzes one batch entry. Malformed or failing items
// report their error in the result slot; they never abort the batch.
func (s *Server) analyzeBatchItem(info events.RequestInfo, batchID string, index int, item types.BatchAPIItem) types.BatchItemResult {
	result := types.BatchItemResult{ID: item.ID}

	title := strings.TrimSpace(item.Title)
	description := strings.TrimSpace(item.Description)
	if title == "" && description == "" {
		result.Error = errAtLeastOneField
		s.emit(events.BuildErrorEvent(info, "", "validation", result.Error))
		return result
	}

	if title != "" {
		start := time.Now()
		analyzed, err := s.analyzer.AnalyzeField(title, types.FieldTitle)
		if err != nil {
			s.metrics.RecordAnalysisError(types.FieldTitle)
			s.emit(events.BuildErrorEvent(info, types.FieldTitle, "measurement", err.Error()))
			return types.BatchItemResult{ID: item.ID, Error: fmt.Sprintf("failed to analyze title: %v", err)}
		}
		duration := time.Since(start)
		s.metrics.RecordAnalysis(types.FieldTitle, analyzed, duration)
		s.emit(events.BuildBatchItemEvent(info, batchID, index, types.FieldTitle, analyzed, duration))
		result.Title = analyzed
	}

	if description != "" {
		start := time.Now()
		analyzed, err := s.analyzer.AnalyzeField(description, types.FieldDescription)
		if err != nil {
			s.metrics.RecordAnalysisError(types.FieldDescription)
			s.emit(events.BuildErrorEvent(info, types.FieldDescription, "measurement", err.Error()))
			return types.BatchItemResult{ID: item.ID, Error: fmt.Sprintf("failed to analyze description: %v", err)}
		}
		duration := time.Since(start)
		s.metrics.RecordAnalysis(types.FieldDescription, analyzed, duration)
		s.emit(events.BuildBatchItemEvent(info, batchID, index, types.FieldDescription, analyzed, duration))
		result.Description = analyzed
	}

	return result
}

// handleWordPressPosts processes POST /wordpress/posts requests.
func (s *Server) handleWordPressPosts(ctx *fasthttp.RequestCtx, requestID string, logger *zap.Logger) {
	if s.fetcher == nil {
		s.writeError(ctx, "/wordpress/posts", "wordpress fetching is disabled", fasthttp.StatusServiceUnavailable)
		return
	}

	var req types.WordPressAPIRequest
	if err := httputil.ParseJSONBody(ctx, &req); err != nil {
		s.metrics.RecordValidationError()
		s.writeError(ctx, "/wordpress/posts", err.Error(), fasthttp.StatusBadRequest)
		logger.Warn("Invalid wordpress request body", zap.Error(err))
		return
	}
	if strings.TrimSpace(req.SiteURL) == "" {
		s.metrics.RecordValidationError()
		s.writeError(ctx, "/wordpress/posts", "site_url is required", fasthttp.StatusBadRequest)
		return
	}

	s.metrics.IncActiveRequests()
	defer s.metrics.DecActiveRequests()

	info := s.requestInfo(ctx, requestID)
	start := time.Now()

	data, err := s.fetcher.Fetch(ctx, &req)
	if err != nil {
		if errors.Is(err, wordpress.ErrInvalidSite) ||
			errors.Is(err, wordpress.ErrInvalidResource) ||
			errors.Is(err, wordpress.ErrHostNotAllowed) {
			s.metrics.RecordValidationError()
			s.writeError(ctx, "/wordpress/posts", err.Error(), fasthttp.StatusBadRequest)
			logger.Warn("WordPress request rejected", zap.Error(err))
			return
		}

		s.emit(events.BuildErrorEvent(info, "", "fetch", err.Error()))
		s.writeError(ctx, "/wordpress/posts",
			fmt.Sprintf("failed to fetch from site: %v", err), fasthttp.StatusBadGateway)
		logger.Error("WordPress fetch failed",
			zap.String("site", req.SiteURL),
			zap.Error(err))
		return
	}

	duration := time.Since(start)
	host := urlutil.ExtractHostname(urlutil.ExtractHost(data.Site))
	s.emit(events.BuildWordPressFetchEvent(info, host, data.Resource,
		len(data.Items), data.PagesFetched, data.Cached, duration))

	logger.Info("WordPress fetch served",
		zap.String("site", data.Site),
		zap.Int("items", len(data.Items)),
		zap.Bool("cached", data.Cached),
		zap.Duration("duration", duration))

	s.writeData(ctx, "/wordpress/posts", data, fasthttp.StatusOK)
}

// handleWordPressInvalidate processes POST /wordpress/cache/invalidate.
// Internal endpoint, guarded by the same key as /status.
func (s *Server) handleWordPressInvalidate(ctx *fasthttp.RequestCtx, logger *zap.Logger) {
	if !s.authorizeInternal(ctx, "/wordpress/cache/invalidate", logger) {
		return
	}
	if s.fetcher == nil {
		s.writeError(ctx, "/wordpress/cache/invalidate", "wordpress fetching is disabled", fasthttp.StatusServiceUnavailable)
		return
	}

	var req types.WordPressInvalidateRequest
	if err := httputil.ParseJSONBody(ctx, &req); err != nil {
		s.metrics.RecordValidationError()
		s.writeError(ctx, "/wordpress/cache/invalidate", err.Error(), fasthttp.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.SiteURL) == "" {
		s.metrics.RecordValidationError()
		s.writeError(ctx, "/wordpress/cache/invalidate", "site_url is required", fasthttp.StatusBadRequest)
		return
	}

	removed, err := s.fetcher.InvalidateSite(ctx, req.SiteURL)
	if err != nil {
		if errors.Is(err, wordpress.ErrInvalidSite) {
			s.metrics.RecordValidationError()
			s.writeError(ctx, "/wordpress/cache/invalidate", err.Error(), fasthttp.StatusBadRequest)
			return
		}
		s.metrics.RecordInternalError()
		s.writeError(ctx, "/wordpress/cache/invalidate",
			fmt.Sprintf("failed to invalidate cache: %v", err), fasthttp.StatusInternalServerError)
		logger.Error("Cache invalidation failed",
			zap.String("site", req.SiteURL),
			zap.Error(err))
		return
	}

	logger.Info("Cache invalidation served",
		zap.String("site", req.SiteURL),
		zap.Int("invalidated", removed))

	s.writeData(ctx, "/wordpress/cache/invalidate", types.WordPressInvalidateData{
		SiteURL:     req.SiteURL,
		Invalidated: removed,
	}, fasthttp.StatusOK)
}

// livenessChecker is implemented by measurer backends whose rendering
// process can die underneath them (the chrome backend loses its browser on a
// crash). Backends without the method are always considered live.
type livenessChecker interface {
	Alive() bool
}

// handleHealth returns service liveness and the active measurement backend.
func (s *Server) handleHealth(ctx *fasthttp.RequestCtx) {
	status := "ok"
	if lc, ok := s.measurer.(livenessChecker); ok && !lc.Alive() {
		status = "degraded"
	}
	s.writeData(ctx, "/health", HealthResponse{
		Status:        status,
		Backend:       s.measurer.Backend(),
		UptimeSeconds: int(time.Since(s.startTime).Seconds()),
	}, fasthttp.StatusOK)
}
