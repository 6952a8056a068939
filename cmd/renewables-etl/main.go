package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	httpapi "github.com/i474232898/renewables-etl/internal/api/http"
	"github.com/i474232898/renewables-etl/internal/config"
	"github.com/i474232898/renewables-etl/internal/fetch"
	"github.com/i474232898/renewables-etl/internal/logging"
	"github.com/i474232898/renewables-etl/internal/metrics"
	"github.com/i474232898/renewables-etl/internal/renewables"
	"github.com/i474232898/renewables-etl/internal/renewables/sources"
	"github.com/i474232898/renewables-etl/internal/scheduler"
	"github.com/i474232898/renewables-etl/internal/store"
)

func main() {
	serve := flag.Bool("serve", false, "Run the weekly scheduler and status API instead of a single ETL cycle")
	flag.Parse()

	os.Exit(run(*serve))
}

func run(serve bool) int {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	log := logging.New(os.Stderr, cfg.LogFormat, logging.ParseLevel(cfg.LogLevel))
	slog.SetDefault(log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector("renewables_etl", reg)

	// In-memory run history with configured retention.
	memStore := store.NewMemoryStore(cfg.StoreMaxHistory, cfg.StoreMaxAge)

	service, err := newService(cfg, log, collector, memStore)
	if err != nil {
		log.Error("failed to build ETL service", "error", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !serve {
		return runOnce(ctx, service, log)
	}
	return runDaemon(ctx, cfg, service, collector, reg, log)
}

// newService wires one fetch client and repository per source around a shared CSV sink.
func newService(cfg *config.AppConfig, log *slog.Logger, collector *metrics.Collector, runs renewables.RunStore) (*renewables.Service, error) {
	// Shared HTTP client for outbound calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}
	sink := store.NewCSVSink(cfg.OutputDir, log)

	newClient := func(src renewables.Source) (*fetch.Client, error) {
		return fetch.New(fetch.Config{
			Name:             src.String(),
			Client:           httpClient,
			MaxRetries:       cfg.FetchMaxRetries,
			Backoff:          cfg.FetchBackoff,
			BreakerThreshold: uint32(cfg.FetchBreakerThreshold),
			RateLimit:        cfg.FetchRateLimit,
			Recorder:         collector,
		}, log)
	}

	solarClient, err := newClient(renewables.SourceSolar)
	if err != nil {
		return nil, err
	}
	windClient, err := newClient(renewables.SourceWind)
	if err != nil {
		return nil, err
	}

	repos := []renewables.Repository{
		sources.NewSolarRepository(sources.Endpoint{
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
			Path:    cfg.SolarEndpoint,
		}, solarClient, sink),
		sources.NewWindRepository(sources.Endpoint{
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
			Path:    cfg.WindEndpoint,
		}, windClient, sink),
	}

	return renewables.NewService(runs, repos, log, renewables.WithRecorder(collector)), nil
}

func runOnce(ctx context.Context, service *renewables.Service, log *slog.Logger) int {
	report, err := service.Execute(ctx)
	if err != nil {
		log.Error("ETL run aborted", "error", err)
		return 1
	}
	if !report.Succeeded() {
		log.Error("ETL run persisted no data", "run_id", report.ID.String())
		return 1
	}
	return 0
}

func runDaemon(ctx context.Context, cfg *config.AppConfig, service *renewables.Service, collector *metrics.Collector, reg *prometheus.Registry, log *slog.Logger) int {
	// Scheduler that runs the weekly ETL.
	sched := scheduler.New(cfg.ScheduleCron, cfg.RunOnStart, service, log)
	if err := sched.Start(); err != nil {
		log.Error("failed to start scheduler", "error", err)
		return 1
	}
	defer sched.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "renewables-etl",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())
	app.Use(httpapi.RequestMetrics(collector))

	// API routes.
	httpapi.RegisterRoutes(app, service, ctx)
	httpapi.RegisterMetrics(app, reg)

	// Start server with graceful shutdown
	serverErr := make(chan error, 1)
	go func() {
		log.Info("status API listening", "port", cfg.Port)
		serverErr <- app.Listen(":" + cfg.Port)
	}()

	code := 0
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("fiber server stopped", "error", err)
			code = 1
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error("error during shutdown", "error", err)
	}
	return code
}
