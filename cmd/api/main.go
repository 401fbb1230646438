// Package main provides the entrypoint for the BookBeam API server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/bookbeam/bookbeam/internal/alerting"
	"github.com/bookbeam/bookbeam/internal/api"
	"github.com/bookbeam/bookbeam/internal/api/handler"
	"github.com/bookbeam/bookbeam/internal/api/middleware"
	"github.com/bookbeam/bookbeam/internal/cache"
	"github.com/bookbeam/bookbeam/internal/database"
	"github.com/bookbeam/bookbeam/internal/fallback"
	"github.com/bookbeam/bookbeam/internal/health"
	"github.com/bookbeam/bookbeam/internal/payments"
	"github.com/bookbeam/bookbeam/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "bookbeam-api"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting BookBeam API")

	// Get configuration from environment
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	otlpEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otlpEndpoint == "" {
		otlpEndpoint = "localhost:4317"
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	// Initialize OpenTelemetry
	ctx := context.Background()
	telemetryEnabled := os.Getenv("OTEL_ENABLED") == "true"

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    env,
		OTLPEndpoint:   otlpEndpoint,
		Enabled:        telemetryEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if telemetryEnabled {
		log.Info().
			Str("otlp_endpoint", otlpEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	// Connect to database
	dbConfig := database.ConfigFromEnv()
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	log.Info().
		Str("host", dbConfig.Host).
		Int("port", dbConfig.Port).
		Str("database", dbConfig.Database).
		Msg("database connected")

	// Cache backend (optional)
	var cacheClient *cache.Client
	var cacheDialer health.CacheDialer
	var cacheStore fallback.CacheStore
	if cacheCfg, ok := cache.ConfigFromEnv(); ok {
		cacheClient = cache.Dial(cacheCfg)
		defer cacheClient.Close()
		cacheStore = cacheClient

		// Probes open a fresh connection so a poisoned shared pool cannot
		// mask a dead backend.
		cacheDialer = func(_ context.Context) (health.CachePinger, error) {
			return cache.Dial(cacheCfg), nil
		}
		log.Info().Str("addr", cacheCfg.Addr).Msg("cache backend configured")
	} else {
		log.Warn().Msg("no cache backend configured - running without caching")
	}

	// Payment gateway (optional)
	var gateway *payments.Client
	var accountChecker health.AccountChecker
	if payCfg, ok := payments.ConfigFromEnv(log); ok {
		gateway = payments.NewClient(payCfg)
		accountChecker = gateway
		log.Info().Msg("payment gateway configured")
	} else {
		log.Warn().Msg("no payment gateway configured - payments will be deferred")
	}

	// Alerting: durable persistence always, Pub/Sub dispatch when configured
	store := alerting.NewStore(pool, log)
	var notifier *alerting.Notifier
	projectID := os.Getenv("PUBSUB_PROJECT_ID")
	alertsTopic := os.Getenv("ALERTS_TOPIC")
	if projectID != "" && alertsTopic != "" {
		psClient, psErr := pubsub.NewClient(ctx, projectID)
		if psErr != nil {
			log.Error().Err(psErr).Msg("failed to create pubsub client - critical alerts disabled")
		} else {
			defer psClient.Close()
			notifier = alerting.NewNotifier(alerting.NotifierConfig{
				Publisher: alerting.NewPubSubPublisher(psClient, alertsTopic),
				Logger:    log,
			})
			log.Info().Str("topic", alertsTopic).Msg("critical alert dispatch configured")
		}
	}
	sink := alerting.NewSink(store, notifier, log)

	// Health aggregator
	probeMetrics, err := health.NewProbeMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize probe metrics")
	}
	agg := health.NewAggregator(health.AggregatorConfig{
		Probers: []health.Prober{
			health.NewDatabaseProber(pool, 0),
			health.NewCacheProber(cacheDialer, 0),
			health.NewPaymentProber(accountChecker, 0),
			health.NewExternalAPIProber(os.Getenv("REACHABILITY_URL"), nil, 0),
		},
		Sink:    sink,
		Logger:  log,
		Metrics: probeMetrics,
	})
	agg.SetPoolStats(func() (total, idle, acquired, maxConns int32) {
		stat := pool.Stat()
		return stat.TotalConns(), stat.IdleConns(), stat.AcquiredConns(), stat.MaxConns()
	})
	log.Info().Msg("health aggregator initialized")

	executor := fallback.NewExecutor(agg, cacheStore, log)

	var charger handler.Charger
	if gateway != nil {
		charger = gateway
	}

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:     Version,
		BuildTime:   BuildTime,
		Logger:      log,
		ServiceName: serviceName,
		Metrics:     metrics,
		Aggregator:  agg,
		Executor:    executor,
		BookingDB:   pool,
		CatalogDB:   pool,
		Gateway:     charger,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}
