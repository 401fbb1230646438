// Package worker runs background jobs triggered by Pub/Sub messages.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/bookbeam/bookbeam/internal/catalog"
)

// Store is the write half of the cache the warm job fills.
// cache.Client satisfies it.
type Store interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// WarmJob refreshes the service catalog cache so API reads stay cache-hot
// across deployments and cache restarts.
type WarmJob struct {
	db     catalog.Querier
	store  Store
	logger zerolog.Logger
}

// NewWarmJob creates a warm job.
func NewWarmJob(db catalog.Querier, store Store, logger zerolog.Logger) *WarmJob {
	return &WarmJob{db: db, store: store, logger: logger}
}

// Run fetches the catalog and writes it to the cache.
func (j *WarmJob) Run(ctx context.Context) error {
	offerings, err := catalog.Fetch(ctx, j.db)
	if err != nil {
		return fmt.Errorf("fetching catalog: %w", err)
	}

	raw, err := json.Marshal(offerings)
	if err != nil {
		return fmt.Errorf("encoding catalog: %w", err)
	}

	if err := j.store.Set(ctx, catalog.CacheKey, string(raw), catalog.CacheTTL); err != nil {
		return fmt.Errorf("writing catalog cache: %w", err)
	}

	j.logger.Info().
		Int("services", len(offerings)).
		Msg("catalog cache warmed")
	return nil
}
