package service

import (
	"strconv"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/serplens/engine/internal/analyzer/events"
	"github.com/serplens/engine/internal/analyzer/fontmetrics"
	"github.com/serplens/engine/internal/analyzer/meta"
	"github.com/serplens/engine/internal/analyzer/metrics"
	"github.com/serplens/engine/internal/analyzer/wordpress"
	"github.com/serplens/engine/internal/common/configtypes"
	"github.com/serplens/engine/internal/common/httputil"
	"github.com/serplens/engine/internal/common/requestid"
)

// Server routes analyzer API requests. All responses use the shared
// {success, message, data} envelope.
type Server struct {
	configManager configtypes.ConfigProvider
	analyzer      *meta.Analyzer
	measurer      fontmetrics.Measurer
	fetcher       *wordpress.Fetcher
	metrics       *metrics.MetricsCollector
	logger        *zap.Logger

	// Event logging (nil if disabled)
	eventEmitter events.EventEmitter
	instanceID   string
	startTime    time.Time
}

// NewServer wires pre-built components into a request handler. fetcher may be
// nil when WordPress fetching is disabled; eventEmitter may be nil when event
// logging is disabled.
func NewServer(
	configManager configtypes.ConfigProvider,
	analyzer *meta.Analyzer,
	measurer fontmetrics.Measurer,
	fetcher *wordpress.Fetcher,
	metricsCollector *metrics.MetricsCollector,
	eventEmitter events.EventEmitter,
	instanceID string,
	logger *zap.Logger,
) *Server {
	return &Server{
		configManager: configManager,
		analyzer:      analyzer,
		measurer:      measurer,
		fetcher:       fetcher,
		metrics:       metricsCollector,
		eventEmitter:  eventEmitter,
		instanceID:    instanceID,
		startTime:     time.Now(),
		logger:        logger,
	}
}

// HandleRequest is the main HTTP entry point with routing.
func (s *Server) HandleRequest(ctx *fasthttp.RequestCtx) {
	// Extract custom request ID from header (if provided)
	customRequestID := string(ctx.Request.Header.Peek("X-Request-ID"))
	requestID := requestid.Generate(customRequestID)

	// Add request ID to response headers for tracing
	ctx.Response.Header.Set("X-Request-ID", requestID)

	logger := s.logger.With(zap.String("request_id", requestID))

	path := string(ctx.Path())
	method := string(ctx.Method())

	switch {
	case path == "/analyze" && (method == fasthttp.MethodGet || method == fasthttp.MethodPost):
		s.handleAnalyze(ctx, requestID, logger)
	case method == fasthttp.MethodPost && path == "/analyze/batch":
		s.handleBatch(ctx, requestID, logger)
	case method == fasthttp.MethodPost && path == "/wordpress/posts":
		s.handleWordPressPosts(ctx, requestID, logger)
	case method == fasthttp.MethodPost && path == "/wordpress/cache/invalidate":
		s.handleWordPressInvalidate(ctx, logger)
	case method == fasthttp.MethodGet && path == "/health":
		s.handleHealth(ctx)
	case method == fasthttp.MethodGet && path == "/status":
		s.handleStatus(ctx, logger)
	case path == "/analyze" || path == "/analyze/batch" ||
		path == "/wordpress/posts" || path == "/wordpress/cache/invalidate":
		logger.Warn("Method not allowed",
			zap.String("method", method),
			zap.String("path", path))
		s.writeError(ctx, path, "method not allowed", fasthttp.StatusMethodNotAllowed)
	default:
		logger.Warn("Not found", zap.String("path", path))
		s.writeError(ctx, path, "endpoint not found", fasthttp.StatusNotFound)
	}
}

// authorizeInternal enforces the internal auth key when one is configured.
// An empty key leaves internal endpoints open.
func (s *Server) authorizeInternal(ctx *fasthttp.RequestCtx, path string, logger *zap.Logger) bool {
	authKey := s.configManager.GetConfig().Internal.AuthKey
	if authKey != "" && string(ctx.Request.Header.Peek("X-Internal-Auth")) != authKey {
		logger.Warn("Unauthorized internal request",
			zap.String("path", path),
			zap.String("remote_addr", ctx.RemoteAddr().String()))
		s.writeError(ctx, path, "unauthorized", fasthttp.StatusUnauthorized)
		return false
	}
	return true
}

// requestInfo builds the transport metadata attached to emitted events.
func (s *Server) requestInfo(ctx *fasthttp.RequestCtx, requestID string) events.RequestInfo {
	return events.RequestInfo{
		RequestID:  requestID,
		ClientIP:   ctx.RemoteIP().String(),
		UserAgent:  string(ctx.UserAgent()),
		InstanceID: s.instanceID,
	}
}

func (s *Server) emit(event *events.AnalysisEvent) {
	if s.eventEmitter != nil {
		s.eventEmitter.Emit(event)
	}
}

func (s *Server) writeData(ctx *fasthttp.RequestCtx, path string, data interface{}, statusCode int) {
	httputil.JSONData(ctx, data, statusCode)
	s.metrics.RecordHTTPRequest(path, strconv.Itoa(statusCode))
}

func (s *Server) writeError(ctx *fasthttp.RequestCtx, path, message string, statusCode int) {
	httputil.JSONError(ctx, message, statusCode)
	s.metrics.RecordHTTPRequest(path, strconv.Itoa(statusCode))
}
