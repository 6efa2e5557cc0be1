package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

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
	"github.com/serplens/engine/internal/common/metricsserver"
	"github.com/serplens/engine/internal/common/redis"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("c", "configs/analyzer.yaml", "path to configuration file")
	testMode := flag.Bool("t", false, "test configuration and exit")
	flag.Parse()

	// If test mode, run validation
	if *testMode {
		os.Exit(runConfigTest(*configPath))
	}

	// Create initial logger for startup
	initialLogger, err := logger.NewDefault()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	initialLogger.Info("Starting Analyzer Service", zap.String("config_path", *configPath))

	configManager, err := config.NewAnalyzerConfigManager(*configPath, initialLogger.Logger)
	if err != nil {
		initialLogger.Fatal("Failed to create config manager", zap.Error(err))
	}

	cfg := configManager.GetConfig()

	// Reconfigure logger based on config settings
	dynamicLogger, err := logger.NewWithStartupOverride(cfg.Log)
	if err != nil {
		initialLogger.Fatal("Failed to create configured logger", zap.Error(err))
	}
	defer dynamicLogger.Sync()

	// Add the instance ID to all logs
	instanceID := resolveInstanceID(cfg.ServiceID)
	svcLogger := dynamicLogger.With(zap.String("instance", instanceID))

	// Create the measurement backend first so a missing font store or an
	// unreachable Chrome fails before any listener binds
	measurer, err := fontmetrics.New(cfg.Measurer, svcLogger)
	if err != nil {
		svcLogger.Fatal("Failed to create measurer", zap.Error(err))
	}
	svcLogger.Info("Measurement backend ready", zap.String("backend", measurer.Backend()))

	metricsCollector := metrics.NewMetricsCollector(cfg.Metrics.Namespace, svcLogger)

	// Start metrics server if enabled
	metricsServer, err := metricsserver.Start(cfg.Metrics, metricsCollector, svcLogger)
	if err != nil {
		svcLogger.Fatal("Failed to start metrics server", zap.Error(err))
	}

	// WordPress fetching is optional; the handler reports 503 when disabled
	var (
		redisClient *redis.Client
		fetcher     *wordpress.Fetcher
	)
	if wp := cfg.WordPress; wp != nil && wp.Enabled {
		var fetchCache *wordpress.FetchCache
		if wp.Cache.Enabled {
			redisClient, err = redis.NewClient(cfg.Redis, svcLogger)
			if err != nil {
				svcLogger.Fatal("Failed to connect to Redis", zap.Error(err))
			}
			defer redisClient.Close()
			fetchCache = wordpress.NewFetchCache(wp.Cache, redisClient, metricsCollector, svcLogger)
		}

		fetcher, err = wordpress.NewFetcher(*wp, fetchCache, metricsCollector, svcLogger)
		if err != nil {
			svcLogger.Fatal("Failed to create WordPress fetcher", zap.Error(err))
		}
		svcLogger.Info("WordPress fetching enabled",
			zap.Bool("cache", wp.Cache.Enabled),
			zap.Int("allowed_hosts", len(wp.AllowedHosts)))
	}

	// Initialize event emitters
	var eventEmitter events.EventEmitter
	if ev := cfg.EventLogging; ev != nil {
		var emitters []events.EventEmitter

		if ev.File.Enabled {
			fileEmitter, err := events.NewFileEmitter(ev.File, svcLogger)
			if err != nil {
				svcLogger.Fatal("Failed to create file emitter", zap.Error(err))
			}
			emitters = append(emitters, fileEmitter)
			svcLogger.Info("File event logging initialized", zap.String("path", ev.File.Path))
		}

		if ev.ClickHouse.Enabled {
			chEmitter, err := events.NewClickHouseEmitter(ev.ClickHouse, svcLogger)
			if err != nil {
				svcLogger.Fatal("Failed to create ClickHouse emitter", zap.Error(err))
			}
			emitters = append(emitters, chEmitter)
			svcLogger.Info("ClickHouse event logging initialized",
				zap.Strings("addr", ev.ClickHouse.Addr),
				zap.String("table", ev.ClickHouse.Table))
		}

		if len(emitters) > 0 {
			eventEmitter = events.NewMultiEmitter(emitters, svcLogger)
		}
	}

	analyzer := meta.NewAnalyzer(measurer, cfg.Profiles, svcLogger)

	// Create public server with pre-built services
	srv := service.NewServer(
		configManager,
		analyzer,
		measurer,
		fetcher,
		metricsCollector,
		eventEmitter,
		instanceID,
		svcLogger,
	)

	// Channel for server startup errors
	serverErrors := make(chan error, 1)

	httpLifecycle := &serverLifecycle{
		server:  newFastHTTPServer(srv.HandleRequest, time.Duration(cfg.Server.Timeout), cfg.Server.MaxBodySize),
		name:    "HTTP",
		address: cfg.Server.Listen,
		logger:  svcLogger,
	}
	httpLifecycle.StartWithErrorChan(serverErrors)

	// Wait briefly for the server to start and check for immediate failures
	time.Sleep(100 * time.Millisecond)
	select {
	case err := <-serverErrors:
		svcLogger.Fatal("Server failed to start", zap.Error(err))
	default:
		// Server started successfully
	}

	svcLogger.Info("Analyzer Service started",
		zap.String("addr", cfg.Server.Listen),
		zap.String("backend", measurer.Backend()))

	// Switch to configured log level after startup is complete
	dynamicLogger.SwitchToConfiguredLevel()

	// Wait for shutdown signal or server error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		dynamicLogger.EnsureInfoLevelForShutdown()
		svcLogger.Info("Shutting down Analyzer Service...")
	case err := <-serverErrors:
		dynamicLogger.EnsureInfoLevelForShutdown()
		svcLogger.Error("Server startup failed, initiating shutdown", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown metrics server
	if metricsServer != nil {
		svcLogger.Info("Shutting down metrics server")
		if err := metricsServer.ShutdownWithContext(shutdownCtx); err != nil {
			svcLogger.Error("Metrics server shutdown error", zap.Error(err))
		}
	}

	// Shutdown public server
	httpLifecycle.Shutdown(shutdownCtx)

	// Shutdown event emitter
	if eventEmitter != nil {
		if err := eventEmitter.Close(); err != nil {
			svcLogger.Error("Failed to close event emitter", zap.Error(err))
		}
		svcLogger.Info("Event emitter shutdown complete")
	}

	// Shutdown measurement backend (stops the Chrome pool when in use)
	if err := measurer.Close(); err != nil {
		svcLogger.Error("Failed to close measurer", zap.Error(err))
	}

	svcLogger.Info("Analyzer Service stopped")
}

// resolveInstanceID returns the configured service ID, falling back to the
// hostname so events and logs stay attributable in multi-instance setups.
func resolveInstanceID(configured string) string {
	if configured != "" {
		return configured
	}
	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		return hostname
	}
	return "analyzer"
}

const serverName = "SerpLens-Analyzer/1.0"

func newFastHTTPServer(handler fasthttp.RequestHandler, timeout time.Duration, maxBodySize int) *fasthttp.Server {
	return &fasthttp.Server{
		Handler:                      handler,
		Name:                         serverName,
		ReadTimeout:                  timeout,
		WriteTimeout:                 timeout,
		IdleTimeout:                  timeout,
		MaxRequestBodySize:           maxBodySize,
		DisablePreParseMultipartForm: true,
		NoDefaultServerHeader:        true,
		NoDefaultDate:                true,
	}
}

type serverLifecycle struct {
	server  *fasthttp.Server
	name    string
	address string
	logger  *zap.Logger
}

func (s *serverLifecycle) StartWithErrorChan(errChan chan<- error) {
	go func() {
		if err := s.server.ListenAndServe(s.address); err != nil {
			s.logger.Error("Server error", zap.String("name", s.name), zap.Error(err))
			if errChan != nil {
				errChan <- fmt.Errorf("%s server failed: %w", s.name, err)
			}
		}
	}()
	s.logger.Info("Server started", zap.String("name", s.name), zap.String("address", s.address))
}

func (s *serverLifecycle) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server", zap.String("name", s.name))
	err := s.server.ShutdownWithContext(ctx)
	if err != nil {
		s.logger.Error("Server shutdown error", zap.String("name", s.name), zap.Error(err))
	}
	return err
}

// runConfigTest loads and validates the configuration, printing the resolved
// runtime parameters on success.
func runConfigTest(configPath string) int {
	_, err := os.Stat(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration file %s: %v\n", configPath, err)
		return 1
	}

	configManager, err := config.NewAnalyzerConfigManager(configPath, zap.NewNop())
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration file %s test FAILED:\n%v\n", configPath, err)
		return 1
	}

	cfg := configManager.GetConfig()
	fmt.Printf("configuration file %s syntax is ok\n", configPath)
	fmt.Println()
	fmt.Printf("server:      %s\n", cfg.Server.Listen)
	fmt.Printf("backend:     %s\n", cfg.Measurer.Backend)
	fmt.Printf("title:       %s %gpx, budget %gpx\n",
		cfg.Profiles.Title.FontFamily, cfg.Profiles.Title.FontSize, cfg.Profiles.Title.MaxPixels)
	fmt.Printf("description: %s %gpx, budget %gpx (min %gpx)\n",
		cfg.Profiles.Description.FontFamily, cfg.Profiles.Description.FontSize,
		cfg.Profiles.Description.MaxPixels, cfg.Profiles.Description.MinPixels)
	if wp := cfg.WordPress; wp != nil && wp.Enabled {
		fmt.Printf("wordpress:   enabled, cache=%v, allowed_hosts=%d\n", wp.Cache.Enabled, len(wp.AllowedHosts))
	} else {
		fmt.Println("wordpress:   disabled")
	}
	fmt.Println()
	fmt.Println("configuration test is successful")
	return 0
}
