package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"
)

// PrometheusMetrics provides high-performance metrics collection for the
// analyzer service
type PrometheusMetrics struct {
	// Analysis metrics
	analysesTotal    *prometheus.CounterVec
	analysisDuration *prometheus.HistogramVec
	pixelWidth       *prometheus.HistogramVec
	analyzedTotal    *prometheus.CounterVec
	truncatedTotal   *prometheus.CounterVec
	truncationRatio  *prometheus.GaugeVec

	// Batch metrics
	batchItems        prometheus.Histogram
	batchItemFailures prometheus.Counter

	// HTTP metrics
	httpRequests   *prometheus.CounterVec
	activeRequests prometheus.Gauge

	// WordPress fetch metrics
	wpFetchesTotal   *prometheus.CounterVec
	wpFetchDuration  *prometheus.HistogramVec
	wpCacheHitsTotal *prometheus.CounterVec
	wpCacheMissTotal *prometheus.CounterVec
	wpCacheHitRatio  *prometheus.GaugeVec

	// Compression metrics
	cacheCompressionRatio        *prometheus.HistogramVec
	cacheBytesSavedTotal         *prometheus.CounterVec
	cacheDecompressionErrorTotal *prometheus.CounterVec

	// Error metrics
	errorsTotal *prometheus.CounterVec

	logger      *zap.Logger
	httpHandler func(*fasthttp.RequestCtx)
}

// NewPrometheusMetrics creates a new Prometheus-based metrics collector
func NewPrometheusMetrics(namespace string, logger *zap.Logger) *PrometheusMetrics {
	return NewPrometheusMetricsWithRegistry(namespace, prometheus.DefaultRegisterer, logger)
}

// NewPrometheusMetricsWithRegistry creates a new Prometheus-based metrics collector with custom registry
func NewPrometheusMetricsWithRegistry(namespace string, registerer prometheus.Registerer, logger *zap.Logger) *PrometheusMetrics {
	pm := &PrometheusMetrics{
		logger: logger,
	}

	// Analysis metrics
	pm.analysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ma",
			Name:      "analyses_total",
			Help:      "Total number of field analyses by outcome",
		},
		[]string{"field", "outcome"}, // outcome: optimal, truncated, too_short, error
	)

	pm.analysisDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ma",
			Name:      "analysis_duration_seconds",
			Help:      "Time taken to measure and analyze one field",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		},
		[]string{"field"},
	)

	pm.pixelWidth = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ma",
			Name:      "pixel_width",
			Help:      "Distribution of measured field widths in pixels",
			Buckets:   prometheus.LinearBuckets(100, 100, 12), // 100px to 1200px
		},
		[]string{"field"},
	)

	pm.analyzedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ma",
			Name:      "analyzed_total",
			Help:      "Total number of successfully analyzed fields",
		},
		[]string{"field"},
	)

	pm.truncatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ma",
			Name:      "truncated_total",
			Help:      "Total number of analyzed fields that exceeded their pixel budget",
		},
		[]string{"field"},
	)

	pm.truncationRatio = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ma",
			Name:      "truncation_ratio",
			Help:      "Ratio (0-1) of analyzed fields that would be truncated",
		},
		[]string{"field"},
	)

	// Batch metrics
	pm.batchItems = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ma",
			Name:      "batch_items",
			Help:      "Number of items per batch request",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100},
		},
	)

	pm.batchItemFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ma",
			Name:      "batch_item_failures_total",
			Help:      "Total number of batch items that failed analysis",
		},
	)

	// HTTP metrics
	pm.httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ma",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by endpoint and status",
		},
		[]string{"endpoint", "status"},
	)

	pm.activeRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ma",
			Name:      "active_requests",
			Help:      "Number of currently active analysis requests",
		},
	)

	// WordPress fetch metrics
	pm.wpFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "wp",
			Name:      "fetches_total",
			Help:      "Total number of WordPress content fetches by outcome",
		},
		[]string{"host", "outcome"}, // outcome: success, error
	)

	pm.wpFetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "wp",
			Name:      "fetch_duration_seconds",
			Help:      "Time taken to fetch paginated WordPress content",
			Buckets:   []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
		},
		[]string{"host"},
	)

	pm.wpCacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "wp",
			Name:      "cache_hits_total",
			Help:      "Total number of WordPress fetch cache hits",
		},
		[]string{"host"},
	)

	pm.wpCacheMissTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "wp",
			Name:      "cache_misses_total",
			Help:      "Total number of WordPress fetch cache misses",
		},
		[]string{"host"},
	)

	pm.wpCacheHitRatio = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "wp",
			Name:      "cache_hit_ratio",
			Help:      "WordPress fetch cache hit ratio (0-1) per host",
		},
		[]string{"host"},
	)

	// Compression metrics
	pm.cacheCompressionRatio = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "compression_ratio",
			Help:      "Compression ratio (compressed_size / original_size)",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
		[]string{"algorithm"},
	)

	pm.cacheBytesSavedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "bytes_saved_total",
			Help:      "Total bytes saved by compression",
		},
		[]string{"algorithm"},
	)

	pm.cacheDecompressionErrorTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "decompression_errors_total",
			Help:      "Total decompression failures (triggers direct fetch)",
		},
		[]string{"algorithm"},
	)

	// Error metrics
	pm.errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ma",
			Name:      "errors_total",
			Help:      "Total errors by type",
		},
		[]string{"type"}, // type: validation, measurement, wordpress, internal
	)

	// Register all metrics
	registerer.MustRegister(
		pm.analysesTotal,
		pm.analysisDuration,
		pm.pixelWidth,
		pm.analyzedTotal,
		pm.truncatedTotal,
		pm.truncationRatio,
		pm.batchItems,
		pm.batchItemFailures,
		pm.httpRequests,
		pm.activeRequests,
		pm.wpFetchesTotal,
		pm.wpFetchDuration,
		pm.wpCacheHitsTotal,
		pm.wpCacheMissTotal,
		pm.wpCacheHitRatio,
		pm.cacheCompressionRatio,
		pm.cacheBytesSavedTotal,
		pm.cacheDecompressionErrorTotal,
		pm.errorsTotal,
	)

	// Create HTTP handler - registerer implements Gatherer interface
	gatherer, ok := registerer.(prometheus.Gatherer)
	if !ok {
		// Fallback to default gatherer if registerer doesn't implement Gatherer
		gatherer = prometheus.DefaultGatherer
	}
	pm.httpHandler = fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	logger.Debug("Prometheus metrics initialized")
	return pm
}

// RecordAnalysis records one completed field analysis with its outcome and timing
func (pm *PrometheusMetrics) RecordAnalysis(field, outcome string, widthPx int, duration time.Duration) {
	pm.analysesTotal.WithLabelValues(field, outcome).Inc()
	pm.analysisDuration.WithLabelValues(field).Observe(duration.Seconds())
	pm.pixelWidth.WithLabelValues(field).Observe(float64(widthPx))

	pm.analyzedTotal.WithLabelValues(field).Inc()
	if outcome == "truncated" {
		pm.truncatedTotal.WithLabelValues(field).Inc()
	}
	pm.updateTruncationRatio(field)
}

// RecordAnalysisError records a failed field analysis
func (pm *PrometheusMetrics) RecordAnalysisError(field string) {
	pm.analysesTotal.WithLabelValues(field, "error").Inc()
}

// RecordBatch records the size of a batch request and its per-item failures
func (pm *PrometheusMetrics) RecordBatch(items, failures int) {
	pm.batchItems.Observe(float64(items))
	if failures > 0 {
		pm.batchItemFailures.Add(float64(failures))
	}
}

// RecordHTTPRequest records an HTTP request
func (pm *PrometheusMetrics) RecordHTTPRequest(endpoint, status string) {
	pm.httpRequests.WithLabelValues(endpoint, status).Inc()
}

// IncActiveRequests increments active request counter
func (pm *PrometheusMetrics) IncActiveRequests() {
	pm.activeRequests.Inc()
}

// DecActiveRequests decrements active request counter
func (pm *PrometheusMetrics) DecActiveRequests() {
	pm.activeRequests.Dec()
}

// RecordWordPressFetch records a WordPress fetch outcome with timing
func (pm *PrometheusMetrics) RecordWordPressFetch(host, outcome string, duration time.Duration) {
	pm.wpFetchesTotal.WithLabelValues(host, outcome).Inc()
	pm.wpFetchDuration.WithLabelValues(host).Observe(duration.Seconds())
}

// RecordWordPressCacheHit records a fetch cache hit and updates hit ratio
func (pm *PrometheusMetrics) RecordWordPressCacheHit(host string) {
	pm.wpCacheHitsTotal.WithLabelValues(host).Inc()
	pm.updateWordPressCacheHitRatio(host)
}

// RecordWordPressCacheMiss records a fetch cache miss and updates hit ratio
func (pm *PrometheusMetrics) RecordWordPressCacheMiss(host string) {
	pm.wpCacheMissTotal.WithLabelValues(host).Inc()
	pm.updateWordPressCacheHitRatio(host)
}

// RecordCompressionRatio records the compression ratio for a cached payload
func (pm *PrometheusMetrics) RecordCompressionRatio(algorithm string, ratio float64) {
	pm.cacheCompressionRatio.WithLabelValues(algorithm).Observe(ratio)
}

// RecordBytesSaved records bytes saved by compression
func (pm *PrometheusMetrics) RecordBytesSaved(algorithm string, bytesSaved int64) {
	if bytesSaved > 0 {
		pm.cacheBytesSavedTotal.WithLabelValues(algorithm).Add(float64(bytesSaved))
	}
}

// RecordDecompressionError records a decompression failure
func (pm *PrometheusMetrics) RecordDecompressionError(algorithm string) {
	pm.cacheDecompressionErrorTotal.WithLabelValues(algorithm).Inc()
}

// RecordError records an error by type
func (pm *PrometheusMetrics) RecordError(errorType string) {
	pm.errorsTotal.WithLabelValues(errorType).Inc()
}

// ServeHTTP serves Prometheus metrics via HTTP
func (pm *PrometheusMetrics) ServeHTTP(ctx *fasthttp.RequestCtx) {
	pm.httpHandler(ctx)
}

// updateTruncationRatio calculates and updates the truncation ratio gauge
func (pm *PrometheusMetrics) updateTruncationRatio(field string) {
	truncated := pm.getCounterValue(pm.truncatedTotal.WithLabelValues(field))
	analyzed := pm.getCounterValue(pm.analyzedTotal.WithLabelValues(field))

	if analyzed > 0 {
		pm.truncationRatio.WithLabelValues(field).Set(truncated / analyzed)
	}
}

// updateWordPressCacheHitRatio calculates and updates cache hit ratio
func (pm *PrometheusMetrics) updateWordPressCacheHitRatio(host string) {
	hits := pm.getCounterValue(pm.wpCacheHitsTotal.WithLabelValues(host))
	misses := pm.getCounterValue(pm.wpCacheMissTotal.WithLabelValues(host))

	total := hits + misses
	if total > 0 {
		pm.wpCacheHitRatio.WithLabelValues(host).Set(hits / total)
	}
}

// getCounterValue extracts current value from a counter (helper function)
func (pm *PrometheusMetrics) getCounterValue(counter prometheus.Counter) float64 {
	// Use a metric DTO to read the current value
	metric := &dto.Metric{}
	if err := counter.Write(metric); err != nil {
		pm.logger.Warn("Failed to read counter value", zap.Error(err))
		return 0
	}
	return metric.GetCounter().GetValue()
}
