package health

import (
	"context"
	"time"
)

// DefaultProbeTimeout bounds a single probe independently of any client
// timeout. Probes must return within this window plus a small grace margin.
const DefaultProbeTimeout = 3 * time.Second

// Prober performs one timeout-bounded liveness check against a dependency.
// A prober never returns an error and never panics past its boundary:
// failure is expressed as a ServiceHealth with StatusUnhealthy.
type Prober interface {
	Name() ServiceName
	Probe(ctx context.Context) ServiceHealth
}

// healthy builds a passing result with the probe's measured latency.
func healthy(start time.Time) ServiceHealth {
	return ServiceHealth{
		Status:         StatusHealthy,
		ResponseTimeMs: time.Since(start).Milliseconds(),
		LastChecked:    time.Now(),
	}
}

// unhealthy builds a failing result carrying the underlying error text.
func unhealthy(start time.Time, err error) ServiceHealth {
	return ServiceHealth{
		Status:         StatusUnhealthy,
		ResponseTimeMs: time.Since(start).Milliseconds(),
		LastChecked:    time.Now(),
		Error:          err.Error(),
	}
}

// notConfigured reports an intentionally absent optional dependency.
// Absence is not a fault, so the status is healthy.
func notConfigured() ServiceHealth {
	return ServiceHealth{
		Status:      StatusHealthy,
		LastChecked: time.Now(),
		Details:     "not configured",
	}
}
