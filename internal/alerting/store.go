// Package alerting persists degraded-state snapshots and dispatches
// critical notifications. Everything here is best-effort: failures are
// logged and swallowed, never surfaced to the request path.
package alerting

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"github.com/bookbeam/bookbeam/internal/health"
)

// Execer is the single database primitive the store needs.
// *pgxpool.Pool satisfies it.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store writes non-healthy snapshots to durable storage for later
// analysis.
type Store struct {
	db     Execer
	logger zerolog.Logger
}

// NewStore creates an alert store.
func NewStore(db Execer, logger zerolog.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Persist writes the snapshot. On failure it logs and continues; it never
// returns an error to its caller.
func (s *Store) Persist(ctx context.Context, snapshot health.SystemHealth) {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to encode health snapshot")
		return
	}

	query := `
		INSERT INTO health_alerts (id, status, snapshot, created_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err = s.db.Exec(ctx, query,
		uuid.New(),
		string(snapshot.Status),
		payload,
		time.Now(),
	)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("status", string(snapshot.Status)).
			Msg("failed to persist health alert")
	}
}
