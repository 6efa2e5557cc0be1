package metrics

import (
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/serplens/engine/pkg/types"
)

// MetricsCollector centralizes all metrics recording for the analyzer service
type MetricsCollector struct {
	prometheus *PrometheusMetrics
	logger     *zap.Logger
}

// NewMetricsCollector creates a new MetricsCollector instance
func NewMetricsCollector(namespace string, logger *zap.Logger) *MetricsCollector {
	return &MetricsCollector{
		prometheus: NewPrometheusMetrics(namespace, logger),
		logger:     logger,
	}
}

// RecordAnalysis records a completed field analysis, deriving the outcome
// label from the result
func (mc *MetricsCollector) RecordAnalysis(field string, result *types.AnalysisResult, duration time.Duration) {
	mc.prometheus.RecordAnalysis(field, outcomeLabel(result), result.PixelWidth, duration)
}

// RecordAnalysisError records a failed field analysis
func (mc *MetricsCollector) RecordAnalysisError(field string) {
	mc.prometheus.RecordAnalysisError(field)
	mc.prometheus.RecordError("measurement")
}

// RecordBatch records a batch request's item count and per-item failures
func (mc *MetricsCollector) RecordBatch(items, failures int) {
	mc.prometheus.RecordBatch(items, failures)
}

// RecordHTTPRequest records an HTTP request
func (mc *MetricsCollector) RecordHTTPRequest(endpoint, status string) {
	mc.prometheus.RecordHTTPRequest(endpoint, status)
}

// IncActiveRequests increments the active request gauge
func (mc *MetricsCollector) IncActiveRequests() {
	mc.prometheus.IncActiveRequests()
}

// DecActiveRequests decrements the active request gauge
func (mc *MetricsCollector) DecActiveRequests() {
	mc.prometheus.DecActiveRequests()
}

// RecordWordPressFetchSuccess records a successful WordPress fetch
func (mc *MetricsCollector) RecordWordPressFetchSuccess(host string, duration time.Duration) {
	mc.prometheus.RecordWordPressFetch(host, "success", duration)
}

// RecordWordPressFetchError records a failed WordPress fetch
func (mc *MetricsCollector) RecordWordPressFetchError(host string, duration time.Duration) {
	mc.prometheus.RecordWordPressFetch(host, "error", duration)
	mc.prometheus.RecordError("wordpress")
}

// RecordWordPressCacheHit records a fetch served from cache
func (mc *MetricsCollector) RecordWordPressCacheHit(host string) {
	mc.prometheus.RecordWordPressCacheHit(host)
}

// RecordWordPressCacheMiss records a fetch that had to go to the origin
func (mc *MetricsCollector) RecordWordPressCacheMiss(host string) {
	mc.prometheus.RecordWordPressCacheMiss(host)
}

// RecordCompressionRatio records the compression ratio for a cached payload
func (mc *MetricsCollector) RecordCompressionRatio(algorithm string, ratio float64) {
	mc.prometheus.RecordCompressionRatio(algorithm, ratio)
}

// RecordBytesSaved records bytes saved by compression
func (mc *MetricsCollector) RecordBytesSaved(algorithm string, bytesSaved int64) {
	mc.prometheus.RecordBytesSaved(algorithm, bytesSaved)
}

// RecordDecompressionError records a decompression failure
func (mc *MetricsCollector) RecordDecompressionError(algorithm string) {
	mc.prometheus.RecordDecompressionError(algorithm)
}

// RecordValidationError records a request validation error
func (mc *MetricsCollector) RecordValidationError() {
	mc.prometheus.RecordError("validation")
}

// RecordInternalError records an internal error
func (mc *MetricsCollector) RecordInternalError() {
	mc.prometheus.RecordError("internal")
}

// ServeHTTP serves Prometheus metrics via HTTP
func (mc *MetricsCollector) ServeHTTP(ctx *fasthttp.RequestCtx) {
	mc.prometheus.ServeHTTP(ctx)
}

// outcomeLabel maps an analysis result to its outcome label; too_short wins
// over plain non-optimal so undersized descriptions are visible separately.
func outcomeLabel(result *types.AnalysisResult) string {
	switch {
	case result.IsTruncated:
		return "truncated"
	case result.IsTooShort != nil && *result.IsTooShort:
		return "too_short"
	default:
		return "optimal"
	}
}
