// Package fallback provides "try primary, else fallback" combinators so
// request handlers can substitute degraded-but-functional behavior instead
// of failing outright. Every combinator returns a tagged result rather
// than throwing, and logs at warn level whenever a fallback fires so
// on-call triage can attribute it to a specific dependency.
//
// This layer never retries: distinguishing transient from permanent
// failures is a caller concern.
package fallback

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/bookbeam/bookbeam/internal/health"
)

// Func is a primary or fallback operation producing a value.
type Func[T any] func(ctx context.Context) (T, error)

// Availability answers point-in-time service availability. The health
// aggregator satisfies it.
type Availability interface {
	IsServiceAvailable(ctx context.Context, name health.ServiceName) bool
}

// CacheStore is the minimal cache contract used by the read-through
// combinator. Get reports an absent key with cache.ErrMiss; any other
// error means the backend itself is failing. cache.Client satisfies it.
type CacheStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// Executor carries the shared dependencies of the combinators.
type Executor struct {
	avail  Availability
	store  CacheStore
	logger zerolog.Logger
}

// NewExecutor creates an executor. store may be nil when no cache backend
// is configured; FetchWithCache then always goes straight to the fetcher.
func NewExecutor(avail Availability, store CacheStore, logger zerolog.Logger) *Executor {
	return &Executor{avail: avail, store: store, logger: logger}
}

func (e *Executor) warnFallback(label, reason string, err error) {
	evt := e.logger.Warn().Str("service", label).Str("reason", reason)
	if err != nil {
		evt = evt.Err(err)
	}
	evt.Msg("falling back")
}

// Data runs primary and returns its value; on failure the static fallback
// is returned verbatim and the error is only logged.
func Data[T any](ctx context.Context, e *Executor, primary Func[T], static T, label string) T {
	value, err := primary(ctx)
	if err != nil {
		e.warnFallback(label, "primary fetch failed", err)
		return static
	}
	return value
}

// Execute runs primary and, on failure, the fallback action. If both fail
// the primary error is propagated.
func Execute[T any](ctx context.Context, e *Executor, primary, fallbackFn Func[T], label string) (T, error) {
	value, primaryErr := primary(ctx)
	if primaryErr == nil {
		return value, nil
	}

	e.warnFallback(label, "primary action failed", primaryErr)

	value, err := fallbackFn(ctx)
	if err != nil {
		return value, primaryErr
	}
	return value, nil
}
