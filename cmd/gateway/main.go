package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hieuminhle/cdc-weltwissen/internal/chat"
	"github.com/hieuminhle/cdc-weltwissen/internal/config"
	"github.com/hieuminhle/cdc-weltwissen/internal/discovery"
	"github.com/hieuminhle/cdc-weltwissen/internal/dlp"
	"github.com/hieuminhle/cdc-weltwissen/internal/events"
	"github.com/hieuminhle/cdc-weltwissen/internal/genai"
	"github.com/hieuminhle/cdc-weltwissen/internal/logger"
	"github.com/hieuminhle/cdc-weltwissen/internal/server"
	"github.com/hieuminhle/cdc-weltwissen/internal/transcript"
	"github.com/hieuminhle/cdc-weltwissen/internal/usage"
)

var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
		healthCheck = flag.Bool("health-check", false, "Perform health check and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("Weltwissen Gateway %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	}

	if *healthCheck {
		performHealthCheck()
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	loggerConfig := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}
	if cfg.Logging.File.Enabled {
		loggerConfig.File = &logger.FileConfig{
			Enabled:  cfg.Logging.File.Enabled,
			Path:     cfg.Logging.File.Path,
			MaxSize:  cfg.Logging.File.MaxSize,
			MaxAge:   cfg.Logging.File.MaxAge,
			Compress: cfg.Logging.File.Compress,
		}
	}

	log, err := logger.New(loggerConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting Weltwissen gateway",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("build_date", date),
		zap.Int("port", cfg.Server.Port),
	)

	ctx := context.Background()

	service, hub, cleanup, err := buildService(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to build chat service", zap.Error(err))
	}
	defer cleanup()

	srv := server.New(cfg, service, hub, log)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		log.Error("Server error", zap.Error(err))
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		// Give outstanding requests 30 seconds to complete
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Stop(shutdownCtx); err != nil {
			log.Error("Failed to shutdown server gracefully", zap.Error(err))
			os.Exit(1)
		}

		log.Info("Server shutdown complete")
	}
}

// buildService wires the detection, generation, search and sink
// dependencies according to the configuration. The returned cleanup closes
// everything that holds connections.
func buildService(ctx context.Context, cfg *config.Config, log *logger.Logger) (*chat.Service, *events.Hub, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var cache *dlp.ResultCache
	if cfg.Cache.Enabled {
		var err error
		cache, err = dlp.NewResultCache(cfg.Cache, log.WithComponent("cache"))
		if err != nil {
			return nil, nil, cleanup, fmt.Errorf("failed to create result cache: %w", err)
		}
		closers = append(closers, func() { cache.Close() })
	}

	var inspector dlp.Inspector
	var err error
	switch cfg.Detection.Mode {
	case "remote":
		inspector, err = dlp.NewRemoteInspector(cfg.Detection, log.WithComponent("dlp"))
	default:
		inspector, err = dlp.NewPatternInspector(cfg.Detection, log.WithComponent("dlp"))
	}
	if err != nil {
		return nil, nil, cleanup, fmt.Errorf("failed to create inspector: %w", err)
	}

	detector := dlp.NewDetector(inspector, cache, log.WithComponent("dlp"))
	redactor := dlp.NewRedactor(detector, cfg.Detection, cfg.Redaction, log.WithComponent("dlp"))

	backend, err := genai.NewOpenAIBackend(cfg.Generation, log.WithComponent("genai"))
	if err != nil {
		return nil, nil, cleanup, fmt.Errorf("failed to create generation backend: %w", err)
	}
	orchestrator := genai.NewOrchestrator(backend, cfg.Generation, log.WithComponent("genai"))

	var search *discovery.Client
	if cfg.Search.Endpoint != "" {
		search, err = discovery.NewClient(cfg.Search, log.WithComponent("discovery"))
		if err != nil {
			return nil, nil, cleanup, fmt.Errorf("failed to create search client: %w", err)
		}
	}

	opts := chat.Options{}
	if cfg.Usage.Enabled {
		store, err := usage.NewStore(cfg.Usage, log.WithComponent("usage"))
		if err != nil {
			return nil, nil, cleanup, fmt.Errorf("failed to create usage store: %w", err)
		}
		closers = append(closers, func() { store.Close() })
		opts.Usage = store
	}
	if cfg.Transcript.Enabled {
		archiver, err := transcript.NewArchiver(ctx, cfg.Transcript, log.WithComponent("transcript"))
		if err != nil {
			return nil, nil, cleanup, fmt.Errorf("failed to create transcript archiver: %w", err)
		}
		closers = append(closers, func() { archiver.Close() })
		opts.Archiver = archiver
	}

	var hub *events.Hub
	if cfg.Events.Enabled {
		hub = events.NewHub(cfg.Events, log)
		opts.Hub = hub
	}

	service, err := chat.NewService(cfg, detector, redactor, orchestrator, search, opts, log)
	if err != nil {
		return nil, nil, cleanup, err
	}

	return service, hub, cleanup, nil
}

// performHealthCheck performs a health check against the running server
func performHealthCheck() {
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get("http://localhost:8003/health")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: HTTP %d\n", resp.StatusCode)
		os.Exit(1)
	}

	fmt.Println("Health check passed")
	os.Exit(0)
}
