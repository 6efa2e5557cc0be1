package analyzer_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/serplens/engine/internal/analyzer/events"
	"github.com/serplens/engine/internal/analyzer/fontmetrics"
	"github.com/serplens/engine/internal/analyzer/meta"
	"github.com/serplens/engine/internal/analyzer/metrics"
	"github.com/serplens/engine/internal/analyzer/service"
	"github.com/serplens/engine/internal/analyzer/wordpress"
	"github.com/serplens/engine/internal/common/config"
	"github.com/serplens/engine/internal/common/logger"
	"github.com/serplens/engine/internal/common/redis"
)

var testEnv *AnalyzerTestEnvironment

func TestAnalyzerAcceptance(t *testing.T) {
	RegisterFailHandler(Fail)

	suiteConfig, reporterConfig := GinkgoConfiguration()
	suiteConfig.ParallelTotal = 1
	suiteConfig.Timeout = 10 * time.Minute
	reporterConfig.Succinct = true

	RunSpecs(t, "Analyzer Acceptance Test Suite", suiteConfig, reporterConfig)
}

var _ = BeforeSuite(func() {
	By("Initializing analyzer test environment")
	var err error
	testEnv, err = NewAnalyzerTestEnvironment()
	Expect(err).ToNot(HaveOccurred())

	By("Starting test services (miniredis, origin site, analyzer)")
	Expect(testEnv.Start()).To(Succeed())

	By("Verifying the service is healthy")
	Eventually(testEnv.CheckHealth, 10*time.Second, 250*time.Millisecond).Should(BeTrue())
})

var _ = AfterSuite(func() {
	By("Stopping test services")
	if testEnv != nil {
		testEnv.Stop()
	}
})

var _ = BeforeEach(func() {
	if testEnv != nil {
		testEnv.Reset()
	}
})

// APIEnvelope is the shared response wrapper of every service endpoint.
type APIEnvelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// AnalyzerTestEnvironment runs the full service in-process: a real canvas
// measurer, miniredis-backed fetch cache, a fake WordPress origin, and the
// public HTTP server on an ephemeral port.
type AnalyzerTestEnvironment struct {
	MiniRedis *miniredis.Miniredis
	Logger    *zap.Logger

	BaseURL         string
	OriginURL       string
	InternalAuthKey string
	EventLogPath    string

	tempDir       string
	httpClient    *http.Client
	collector     *metrics.MetricsCollector
	configManager *config.AnalyzerConfigManager
	measurer      fontmetrics.Measurer
	redisClient   *redis.Client
	emitter       events.EventEmitter

	serviceServer *fasthttp.Server
	originServer  *fasthttp.Server

	originHits int64
}

func NewAnalyzerTestEnvironment() (*AnalyzerTestEnvironment, error) {
	// DEBUG=1 switches from silent to verbose service logs
	var zapLogger *zap.Logger
	if os.Getenv("DEBUG") != "" {
		dynamicLogger, err := logger.NewDefault()
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
		zapLogger = dynamicLogger.Logger
	} else {
		zapLogger = zap.NewNop()
	}

	return &AnalyzerTestEnvironment{
		Logger:          zapLogger,
		InternalAuthKey: "test-internal-auth-key",
		httpClient:      &http.Client{Timeout: 10 * time.Second},
		// Created once: re-registering collectors on the default Prometheus
		// registry panics.
		collector: metrics.NewMetricsCollector("serplens_acceptance", zap.NewNop()),
	}, nil
}

// Start assembles the service the way cmd/analyzer-service does, minus the
// process lifecycle: components are built from a YAML config written to a
// temp dir and served from kept listeners so addresses never race.
func (env *AnalyzerTestEnvironment) Start() error {
	mr, err := miniredis.Run()
	if err != nil {
		return fmt.Errorf("failed to start miniredis: %w", err)
	}
	env.MiniRedis = mr

	originListener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("failed to listen for origin: %w", err)
	}
	env.originServer = &fasthttp.Server{Handler: env.handleOrigin}
	go func() { _ = env.originServer.Serve(originListener) }()
	env.OriginURL = "http://" + originListener.Addr().String()

	serviceListener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("failed to listen for service: %w", err)
	}
	env.BaseURL = "http://" + serviceListener.Addr().String()

	env.tempDir, err = os.MkdirTemp("", "analyzer-acceptance-*")
	if err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}
	env.EventLogPath = filepath.Join(env.tempDir, "events.log")

	configPath := filepath.Join(env.tempDir, "analyzer.yaml")
	if err := os.WriteFile(configPath, []byte(env.buildConfigYAML(serviceListener.Addr().String())), 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	env.configManager, err = config.NewAnalyzerConfigManager(configPath, env.Logger)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg := env.configManager.GetConfig()

	env.measurer, err = fontmetrics.New(cfg.Measurer, env.Logger)
	if err != nil {
		return fmt.Errorf("failed to create measurer: %w", err)
	}

	env.redisClient, err = redis.NewClient(cfg.Redis, env.Logger)
	if err != nil {
		return fmt.Errorf("failed to connect to miniredis: %w", err)
	}

	fetchCache := wordpress.NewFetchCache(cfg.WordPress.Cache, env.redisClient, env.collector, env.Logger)
	fetcher, err := wordpress.NewFetcher(*cfg.WordPress, fetchCache, env.collector, env.Logger)
	if err != nil {
		return fmt.Errorf("failed to create fetcher: %w", err)
	}

	fileEmitter, err := events.NewFileEmitter(cfg.EventLogging.File, env.Logger)
	if err != nil {
		return fmt.Errorf("failed to create file emitter: %w", err)
	}
	env.emitter = events.NewMultiEmitter([]events.EventEmitter{fileEmitter}, env.Logger)

	analyzer := meta.NewAnalyzer(env.measurer, cfg.Profiles, env.Logger)

	srv := service.NewServer(
		env.configManager,
		analyzer,
		env.measurer,
		fetcher,
		env.collector,
		env.emitter,
		"acceptance-analyzer",
		env.Logger,
	)

	env.serviceServer = &fasthttp.Server{
		Handler:      srv.HandleRequest,
		Name:         "SerpLens-Analyzer/1.0",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() { _ = env.serviceServer.Serve(serviceListener) }()

	return nil
}

func (env *AnalyzerTestEnvironment) buildConfigYAML(listen string) string {
	return fmt.Sprintf(`service_id: acceptance-analyzer

server:
  listen: "%s"
  timeout: 10s

profiles:
  title:
    font_family: Arial
    font_size: 18
    max_pixels: 600
  description:
    font_family: Arial
    font_size: 14
    max_pixels: 920
    min_pixels: 430

measurer:
  backend: canvas

batch:
  max_items: 50
  concurrency: 8

wordpress:
  enabled: true
  timeout: 5s
  allowed_hosts:
    - "127.0.0.1"
  ssrf_protection: false
  cache:
    enabled: true
    ttl: 5m
    compression: snappy

redis:
  addr: "%s"

log:
  level: error
  console:
    enabled: true
    format: console

metrics:
  enabled: false

event_logging:
  file:
    enabled: true
    path: "%s"

internal:
  auth_key: "%s"
`, listen, env.MiniRedis.Addr(), env.EventLogPath, env.InternalAuthKey)
}

// handleOrigin serves a two-page WordPress REST fixture: six posts total,
// three per page, with rendered HTML in titles and excerpts.
func (env *AnalyzerTestEnvironment) handleOrigin(ctx *fasthttp.RequestCtx) {
	atomic.AddInt64(&env.originHits, 1)

	path := string(ctx.Path())
	if path != "/wp-json/wp/v2/posts" && path != "/wp-json/wp/v2/pages" {
		ctx.SetStatusCode(fasthttp.StatusNotFound)
		return
	}

	page := 1
	if v, err := strconv.Atoi(string(ctx.QueryArgs().Peek("page"))); err == nil && v > 0 {
		page = v
	}
	if page > 2 {
		// WordPress rejects out-of-range pages with rest_post_invalid_page_number
		ctx.SetStatusCode(fasthttp.StatusBadRequest)
		return
	}

	type rendered struct {
		Rendered string `json:"rendered"`
	}
	type post struct {
		ID      int      `json:"id"`
		Link    string   `json:"link"`
		Title   rendered `json:"title"`
		Excerpt rendered `json:"excerpt"`
	}

	var posts []post
	for i := 1; i <= 3; i++ {
		id := (page-1)*3 + i
		posts = append(posts, post{
			ID:   id,
			Link: fmt.Sprintf("https://blog.example.com/post-%d", id),
			Title: rendered{
				Rendered: fmt.Sprintf("Post %d &#8211; SerpLens Blog", id),
			},
			Excerpt: rendered{
				Rendered: fmt.Sprintf("<p>Excerpt for post %d with <strong>markup</strong>.</p>\n", id),
			},
		})
	}

	body, _ := json.Marshal(posts)
	ctx.Response.Header.Set("X-WP-Total", "6")
	ctx.Response.Header.Set("X-WP-TotalPages", "2")
	ctx.SetContentType("application/json")
	ctx.SetBody(body)
}

func (env *AnalyzerTestEnvironment) CheckHealth() bool {
	resp, err := env.httpClient.Get(env.BaseURL + "/health")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Reset clears per-test state: cached fetches, origin hit counts, and the
// event log.
func (env *AnalyzerTestEnvironment) Reset() {
	if env.MiniRedis != nil {
		env.MiniRedis.FlushAll()
	}
	atomic.StoreInt64(&env.originHits, 0)
	_ = os.Truncate(env.EventLogPath, 0)
}

func (env *AnalyzerTestEnvironment) Stop() {
	if env.serviceServer != nil {
		_ = env.serviceServer.Shutdown()
	}
	if env.originServer != nil {
		_ = env.originServer.Shutdown()
	}
	if env.emitter != nil {
		_ = env.emitter.Close()
	}
	if env.measurer != nil {
		_ = env.measurer.Close()
	}
	if env.redisClient != nil {
		_ = env.redisClient.Close()
	}
	if env.MiniRedis != nil {
		env.MiniRedis.Close()
	}
	if env.tempDir != "" {
		_ = os.RemoveAll(env.tempDir)
	}
}

func (env *AnalyzerTestEnvironment) OriginHits() int64 {
	return atomic.LoadInt64(&env.originHits)
}

// ReadEventLog returns the current contents of the event log file.
func (env *AnalyzerTestEnvironment) ReadEventLog() string {
	data, err := os.ReadFile(env.EventLogPath)
	if err != nil {
		return ""
	}
	return string(data)
}

// PostJSON sends a JSON body and decodes the response envelope.
func (env *AnalyzerTestEnvironment) PostJSON(path string, payload interface{}) (*APIEnvelope, int, error) {
	return env.doJSON("POST", path, payload, nil)
}

// PostJSONWithAuth sends a JSON body with the internal auth header set.
func (env *AnalyzerTestEnvironment) PostJSONWithAuth(path string, payload interface{}) (*APIEnvelope, int, error) {
	return env.doJSON("POST", path, payload, map[string]string{"X-Internal-Auth": env.InternalAuthKey})
}

// Get requests a path and decodes the response envelope.
func (env *AnalyzerTestEnvironment) Get(path string) (*APIEnvelope, int, error) {
	return env.doJSON("GET", path, nil, nil)
}

// GetWithAuth requests a path with the internal auth header set.
func (env *AnalyzerTestEnvironment) GetWithAuth(path string) (*APIEnvelope, int, error) {
	return env.doJSON("GET", path, nil, map[string]string{"X-Internal-Auth": env.InternalAuthKey})
}

func (env *AnalyzerTestEnvironment) doJSON(method, path string, payload interface{}, headers map[string]string) (*APIEnvelope, int, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, env.BaseURL+path, body)
	if err != nil {
		return nil, 0, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := env.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}

	var envelope APIEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("non-envelope response %q: %w", string(raw), err)
	}
	return &envelope, resp.StatusCode, nil
}

// decodeData unmarshals an envelope's data payload into target.
func decodeData(envelope *APIEnvelope, target interface{}) error {
	return json.Unmarshal(envelope.Data, target)
}
