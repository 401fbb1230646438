package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/bookbeam/bookbeam/internal/api/models"
	"github.com/bookbeam/bookbeam/internal/health"
)

// AvailabilityChecker answers point-in-time service availability. The
// health aggregator satisfies it; checks go through its TTL cache, so
// per-request use is cheap.
type AvailabilityChecker interface {
	IsServiceAvailable(ctx context.Context, name health.ServiceName) bool
}

// DegradationOptions declares which backing services a route needs and how
// to behave when they are unavailable.
type DegradationOptions struct {
	RequireDatabase       bool
	RequireCache          bool
	RequirePaymentGateway bool
	RequireExternalAPIs   bool

	// GracefulFallback invokes the handler regardless of availability,
	// annotating the request context so the handler can branch itself.
	// When false (the default), a missing required service short-circuits
	// the request with a 503.
	GracefulFallback bool

	// FallbackResponse, when set, is returned with a 200 status if the
	// handler panics. This deliberately prioritizes availability over
	// correctness signaling; callers opt in knowingly per route.
	FallbackResponse any

	// RetryAfter is the hint sent with 503 rejections. Default: 30s.
	RetryAfter time.Duration
}

// availabilityKey is the context key for per-service availability signals.
type availabilityKey struct{}

// GetServiceAvailability reports the availability signal the degradation
// middleware recorded for a service. ok is false outside the middleware.
func GetServiceAvailability(ctx context.Context, name health.ServiceName) (available, ok bool) {
	signals, ok := ctx.Value(availabilityKey{}).(map[health.ServiceName]bool)
	if !ok {
		return false, false
	}
	available, ok = signals[name]
	return available, ok
}

// unavailableDetail maps a missing service to its machine-readable reason,
// in rejection priority order.
var unavailableDetail = []struct {
	name   health.ServiceName
	detail string
}{
	{health.ServiceDatabase, "Database service is currently unavailable"},
	{health.ServicePaymentGateway, "Payment service is currently unavailable"},
	{health.ServiceCache, "Cache service is currently unavailable"},
	{health.ServiceExternalAPIs, "External services are currently unavailable"},
}

// Degradation returns a middleware that gates a route on required service
// availability. Required checks run concurrently; non-required core
// services are checked opportunistically (they hit the TTL cache) so the
// response can always carry availability headers.
func Degradation(checker AvailabilityChecker, log zerolog.Logger, opts DegradationOptions) func(http.Handler) http.Handler {
	retryAfter := opts.RetryAfter
	if retryAfter <= 0 {
		retryAfter = 30 * time.Second
	}

	required := map[health.ServiceName]bool{
		health.ServiceDatabase:       opts.RequireDatabase,
		health.ServiceCache:          opts.RequireCache,
		health.ServicePaymentGateway: opts.RequirePaymentGateway,
		health.ServiceExternalAPIs:   opts.RequireExternalAPIs,
	}

	// The external reachability probe is a real network call on a cache
	// miss, so it is only checked when the route requires it.
	toCheck := []health.ServiceName{
		health.ServiceDatabase,
		health.ServiceCache,
		health.ServicePaymentGateway,
	}
	if opts.RequireExternalAPIs {
		toCheck = append(toCheck, health.ServiceExternalAPIs)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			signals := make(map[health.ServiceName]bool, len(toCheck))
			signalsMu := sync.Mutex{}
			wg := sync.WaitGroup{}

			for _, name := range toCheck {
				wg.Add(1)
				go func(name health.ServiceName) {
					defer wg.Done()
					available := checker.IsServiceAvailable(ctx, name)

					signalsMu.Lock()
					signals[name] = available
					signalsMu.Unlock()
				}(name)
			}
			wg.Wait()

			annotateHeaders(w, signals)

			if !opts.GracefulFallback {
				for _, entry := range unavailableDetail {
					if required[entry.name] && !signals[entry.name] {
						reject(w, r, entry.detail, retryAfter)
						return
					}
				}
			}

			ctx = context.WithValue(ctx, availabilityKey{}, signals)

			if opts.FallbackResponse != nil {
				// Track whether the handler already started the response:
				// the fallback status and body can only replace a response
				// that has not been written yet.
				started := &startedWriter{ResponseWriter: w}
				defer func() {
					if rec := recover(); rec != nil {
						log.Warn().
							Str("path", r.URL.Path).
							Interface("panic", rec).
							Bool("response_started", started.started).
							Msg("handler failed, serving fallback response")
						if !started.started {
							writeFallback(w, opts.FallbackResponse)
						}
					}
				}()
				w = started
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// annotateHeaders records per-service availability and the overall status
// on the response so clients can surface a degradation banner.
func annotateHeaders(w http.ResponseWriter, signals map[health.ServiceName]bool) {
	overall := "healthy"
	for _, name := range health.AllServices() {
		available, checked := signals[name]
		if !checked {
			continue
		}
		w.Header().Set("X-Service-"+string(name), strconv.FormatBool(available))
		if !available {
			overall = "degraded"
		}
	}

	w.Header().Set("X-System-Status", overall)
	if available, checked := signals[health.ServiceCache]; checked && !available {
		w.Header().Set("X-Cache-Status", "disabled")
	}
	if available, checked := signals[health.ServicePaymentGateway]; checked && !available {
		w.Header().Set("X-Payment-Status", "degraded")
	}
}

// reject short-circuits the request with a 503 and a retry hint. The
// wrapped handler is never invoked.
func reject(w http.ResponseWriter, r *http.Request, detail string, retryAfter time.Duration) {
	w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))

	problem := models.NewServiceUnavailable(GetRequestID(r.Context()), detail)
	problem.Instance = r.URL.Path
	problem.Write(w)
}

// startedWriter remembers whether the wrapped writer has begun the
// response.
type startedWriter struct {
	http.ResponseWriter
	started bool
}

func (s *startedWriter) WriteHeader(code int) {
	s.started = true
	s.ResponseWriter.WriteHeader(code)
}

func (s *startedWriter) Write(b []byte) (int, error) {
	s.started = true
	return s.ResponseWriter.Write(b)
}

// writeFallback serves the configured fallback body with a 200 status.
func writeFallback(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(body)
}
