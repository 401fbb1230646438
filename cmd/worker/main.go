// Package main provides the entrypoint for the BookBeam worker.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/bookbeam/bookbeam/internal/alerting"
	"github.com/bookbeam/bookbeam/internal/cache"
	"github.com/bookbeam/bookbeam/internal/database"
	"github.com/bookbeam/bookbeam/internal/health"
	"github.com/bookbeam/bookbeam/internal/payments"
	"github.com/bookbeam/bookbeam/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "bookbeam-worker"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting BookBeam worker")

	// Worker also exposes a health endpoint for Cloud Run
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to database
	dbConfig := database.ConfigFromEnv()
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	// Cache backend (optional)
	var warmJob *worker.WarmJob
	var cacheDialer health.CacheDialer
	if cacheCfg, ok := cache.ConfigFromEnv(); ok {
		cacheClient := cache.Dial(cacheCfg)
		defer cacheClient.Close()
		warmJob = worker.NewWarmJob(pool, cacheClient, log)

		cacheDialer = func(_ context.Context) (health.CachePinger, error) {
			return cache.Dial(cacheCfg), nil
		}
	} else {
		log.Warn().Msg("no cache backend configured - catalog warm jobs will be skipped")
	}

	// Payment gateway (optional)
	var accountChecker health.AccountChecker
	if payCfg, ok := payments.ConfigFromEnv(log); ok {
		accountChecker = payments.NewClient(payCfg)
	}

	projectID := os.Getenv("PUBSUB_PROJECT_ID")
	subscription := os.Getenv("WORKER_SUBSCRIPTION")
	if projectID == "" || subscription == "" {
		log.Fatal().Msg("PUBSUB_PROJECT_ID and WORKER_SUBSCRIPTION are required")
	}

	// Alerting: durable persistence always, Pub/Sub dispatch when configured
	store := alerting.NewStore(pool, log)
	var notifier *alerting.Notifier
	if alertsTopic := os.Getenv("ALERTS_TOPIC"); alertsTopic != "" {
		psClient, psErr := pubsub.NewClient(ctx, projectID)
		if psErr != nil {
			log.Error().Err(psErr).Msg("failed to create pubsub client - critical alerts disabled")
		} else {
			defer psClient.Close()
			notifier = alerting.NewNotifier(alerting.NotifierConfig{
				Publisher: alerting.NewPubSubPublisher(psClient, alertsTopic),
				Logger:    log,
			})
		}
	}

	agg := health.NewAggregator(health.AggregatorConfig{
		Probers: []health.Prober{
			health.NewDatabaseProber(pool, 0),
			health.NewCacheProber(cacheDialer, 0),
			health.NewPaymentProber(accountChecker, 0),
			health.NewExternalAPIProber(os.Getenv("REACHABILITY_URL"), nil, 0),
		},
		Sink:   alerting.NewSink(store, notifier, log),
		Logger: log,
	})

	handler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
		ProjectID:        projectID,
		SubscriptionName: subscription,
		Aggregator:       agg,
		WarmJob:          warmJob,
		Logger:           log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create pubsub handler")
	}
	defer handler.Close()

	// Health check server for Cloud Run
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"healthy","version":"%s"}`, Version)
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health check server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	// Start message processing
	go func() {
		if err := handler.Start(ctx); err != nil && ctx.Err() == nil {
			log.Fatal().Err(err).Msg("pubsub receive failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}
