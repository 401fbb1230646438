package health

import (
	"context"
	"time"
)

// CachePinger is a short-lived cache connection opened for a single probe.
type CachePinger interface {
	Ping(ctx context.Context) error
	Close() error
}

// CacheDialer opens a fresh cache connection. The prober closes it before
// returning, including on timeout, so repeated probing never leaks
// connections.
type CacheDialer func(ctx context.Context) (CachePinger, error)

// CacheProber checks the cache backend. The cache is optional: with no
// dialer configured the probe reports healthy with a "not configured"
// annotation rather than degrading the system.
type CacheProber struct {
	dial    CacheDialer
	timeout time.Duration
}

// NewCacheProber creates a cache prober. dial may be nil when no cache
// backend is configured.
func NewCacheProber(dial CacheDialer, timeout time.Duration) *CacheProber {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &CacheProber{dial: dial, timeout: timeout}
}

// Name returns the probed service name.
func (p *CacheProber) Name() ServiceName {
	return ServiceCache
}

// Probe dials, pings and disconnects within the probe timeout.
func (p *CacheProber) Probe(ctx context.Context) ServiceHealth {
	if p.dial == nil {
		return notConfigured()
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	conn, err := p.dial(ctx)
	if err != nil {
		return unhealthy(start, err)
	}
	defer conn.Close()

	if err := conn.Ping(ctx); err != nil {
		return unhealthy(start, err)
	}
	return healthy(start)
}
