package alerting

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/bookbeam/bookbeam/internal/health"
)

// Sink combines durable persistence with critical-alert dispatch behind
// the aggregator's never-throw contract. Either half may be absent.
type Sink struct {
	store    *Store
	notifier *Notifier
	logger   zerolog.Logger
}

// NewSink creates a sink. store and notifier may each be nil when the
// corresponding backend is not configured.
func NewSink(store *Store, notifier *Notifier, logger zerolog.Logger) *Sink {
	return &Sink{store: store, notifier: notifier, logger: logger}
}

// Persist writes a non-healthy snapshot to durable storage, best-effort.
func (s *Sink) Persist(ctx context.Context, snapshot health.SystemHealth) {
	defer s.recoverPanic("persist")
	if s.store == nil {
		return
	}
	s.store.Persist(ctx, snapshot)
}

// Critical dispatches a paging-level notification, fire-and-forget.
func (s *Sink) Critical(ctx context.Context, snapshot health.SystemHealth) {
	defer s.recoverPanic("critical")
	if s.notifier == nil {
		return
	}
	s.notifier.Critical(ctx, snapshot)
}

func (s *Sink) recoverPanic(op string) {
	if r := recover(); r != nil {
		s.logger.Error().
			Str("op", op).
			Interface("panic", r).
			Msg("alert sink panicked")
	}
}
