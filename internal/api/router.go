// Package api provides the HTTP API for BookBeam.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/bookbeam/bookbeam/internal/api/handler"
	"github.com/bookbeam/bookbeam/internal/api/middleware"
	"github.com/bookbeam/bookbeam/internal/catalog"
	"github.com/bookbeam/bookbeam/internal/fallback"
	"github.com/bookbeam/bookbeam/internal/health"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics

	// Aggregator backs the ops endpoints and the degradation gates.
	Aggregator *health.Aggregator

	// Executor carries the shared fallback dependencies for handlers.
	Executor *fallback.Executor

	// BookingDB and CatalogDB are the data access points the consumer
	// handlers write to and read from.
	BookingDB handler.BookingExecer
	CatalogDB catalog.Querier

	// Gateway captures payments. Nil when no gateway is configured.
	Gateway handler.Charger

	// StaticCatalog is served when both the cache and the database are
	// unreachable.
	StaticCatalog []catalog.ServiceOffering
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Set default service name if not provided
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "bookbeam-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))   // Structured logging
	r.Use(middleware.Recovery(cfg.Logger)) // Panic recovery
	r.Use(chimiddleware.RealIP)            // Real IP extraction
	r.Use(middleware.SecurityHeaders)      // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS)           // TLS enforcement (enabled via REQUIRE_TLS=true)
	r.Use(middleware.ContentTypeJSON)      // JSON content type

	// Initialize handlers
	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Aggregator)
	catalogHandler := handler.NewCatalogHandler(cfg.CatalogDB, cfg.Executor, cfg.StaticCatalog)
	bookingHandler := handler.NewBookingHandler(cfg.BookingDB, cfg.Gateway, cfg.Executor, cfg.Logger)

	// Create rate limit middleware for different endpoint categories
	adminRateLimit := middleware.RateLimitByIP(middleware.AdminRateLimit)         // 10 req/min
	expensiveRateLimit := middleware.RateLimitByIP(middleware.ExpensiveRateLimit) // 30 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)   // 100 req/min

	// Degradation gates. Bookings are hard-gated on the database and
	// payment gateway; the catalog degrades gracefully instead.
	bookingGate := middleware.Degradation(cfg.Aggregator, cfg.Logger, middleware.DegradationOptions{
		RequireDatabase:       true,
		RequirePaymentGateway: true,
	})
	catalogGate := middleware.Degradation(cfg.Aggregator, cfg.Logger, middleware.DegradationOptions{
		GracefulFallback: true,
	})

	// Load balancer health endpoints (unversioned)
	r.Get("/health", opsHandler.QuickHealth)
	r.With(expensiveRateLimit).Get("/health/detailed", opsHandler.DetailedHealth)

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints
		r.Route("/ops", func(r chi.Router) {
			r.With(standardRateLimit).Get("/status", opsHandler.SystemStatus)
			r.With(adminRateLimit).Post("/health-cache/invalidate", opsHandler.InvalidateHealthCache)
		})

		// Service catalog (public) - standard rate limiting
		r.Group(func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Use(catalogGate)
			r.Get("/services", catalogHandler.ListServices)
		})

		// Bookings - write path, rejected outright when critical
		// dependencies are down
		r.Group(func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Use(bookingGate)
			r.Post("/bookings", bookingHandler.CreateBooking)
		})
	})

	return r
}
