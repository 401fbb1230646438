package health

import (
	"context"
	"time"
)

// DatabasePinger is the single primitive the database probe needs.
// *pgxpool.Pool satisfies it.
type DatabasePinger interface {
	Ping(ctx context.Context) error
}

// DatabaseProber checks the primary datastore with the cheapest possible
// round trip. The database is load-bearing for all functionality, so its
// failure is the one thing that makes the whole system unhealthy.
type DatabaseProber struct {
	db      DatabasePinger
	timeout time.Duration
}

// NewDatabaseProber creates a database prober. A zero timeout uses
// DefaultProbeTimeout.
func NewDatabaseProber(db DatabasePinger, timeout time.Duration) *DatabaseProber {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &DatabaseProber{db: db, timeout: timeout}
}

// Name returns the probed service name.
func (p *DatabaseProber) Name() ServiceName {
	return ServiceDatabase
}

// Probe pings the datastore within the probe timeout.
func (p *DatabaseProber) Probe(ctx context.Context) ServiceHealth {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	if err := p.db.Ping(ctx); err != nil {
		return unhealthy(start, err)
	}
	return healthy(start)
}
