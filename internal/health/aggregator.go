package health

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultSlowDatabaseThreshold is the quick-health latency above which a
// successful database ping is reported degraded instead of healthy. It is
// a tunable, not a hard invariant: slow-but-alive only trips degraded on
// the quick path.
const DefaultSlowDatabaseThreshold = 1000 * time.Millisecond

// AlertSink receives non-healthy snapshots. Implementations must never
// return an error to the caller path; failures are logged and swallowed.
type AlertSink interface {
	Persist(ctx context.Context, snapshot SystemHealth)
	Critical(ctx context.Context, snapshot SystemHealth)
}

// PoolStats reports connection-pool statistics for the snapshot metrics.
// Best-effort and non-authoritative.
type PoolStats func() (total, idle, acquired, maxConns int32)

// AggregatorConfig holds configuration for the health aggregator.
type AggregatorConfig struct {
	// Probers are the per-dependency liveness checks. One per ServiceName.
	Probers []Prober

	// ResultTTL is how long cached probe results are trusted.
	// Defaults to DefaultResultTTL.
	ResultTTL time.Duration

	// SlowDatabaseThreshold marks a successful but slow quick-health ping
	// as degraded. Defaults to DefaultSlowDatabaseThreshold.
	SlowDatabaseThreshold time.Duration

	// Sink receives non-healthy snapshots. Optional.
	Sink AlertSink

	// Logger for aggregator operations.
	Logger zerolog.Logger

	// Metrics records probe runs and result cache traffic. Optional.
	Metrics *ProbeMetrics

	// Now is the clock, injectable for tests. Defaults to time.Now.
	Now func() time.Time
}

// Aggregator owns the probe set and the result cache, and converts raw
// per-service health into system snapshots and degradation policy. It is
// constructed once at startup and passed explicitly to its consumers; the
// one shared cache is what makes it the single source of truth.
type Aggregator struct {
	probers       map[ServiceName]Prober
	cache         *ResultCache
	sink          AlertSink
	metrics       *ProbeMetrics
	logger        zerolog.Logger
	now           func() time.Time
	startedAt     time.Time
	slowThreshold time.Duration
	poolStats     PoolStats

	mu        sync.Mutex
	lastKnown *SystemHealth
}

// NewAggregator creates a health aggregator.
func NewAggregator(cfg AggregatorConfig) *Aggregator {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	slow := cfg.SlowDatabaseThreshold
	if slow <= 0 {
		slow = DefaultSlowDatabaseThreshold
	}

	probers := make(map[ServiceName]Prober, len(cfg.Probers))
	for _, p := range cfg.Probers {
		probers[p.Name()] = p
	}

	return &Aggregator{
		probers:       probers,
		cache:         NewResultCache(cfg.ResultTTL, now),
		sink:          cfg.Sink,
		metrics:       cfg.Metrics,
		logger:        cfg.Logger,
		now:           now,
		startedAt:     now(),
		slowThreshold: slow,
	}
}

// SetPoolStats wires the database pool statistics source for snapshot
// metrics.
func (a *Aggregator) SetPoolStats(stats PoolStats) {
	a.poolStats = stats
}

// SystemHealth runs every probe concurrently, bypassing the result cache,
// and builds the full snapshot. It never returns an error and never
// panics: on an internal failure the last known snapshot is returned
// marked degraded, and with no prior snapshot a synthesized all-unhealthy
// emergency snapshot is returned instead.
func (a *Aggregator) SystemHealth(ctx context.Context) SystemHealth {
	snapshot, ok := a.buildSnapshot(ctx)
	if !ok {
		return a.recoverSnapshot()
	}

	a.mu.Lock()
	a.lastKnown = &snapshot
	a.mu.Unlock()

	if snapshot.Status != StatusHealthy && a.sink != nil {
		// Alerting must never affect the caller's latency or outcome.
		bg := context.WithoutCancel(ctx)
		go a.sink.Persist(bg, snapshot)
		if snapshot.Status == StatusUnhealthy {
			go a.sink.Critical(bg, snapshot)
		}
	}

	return snapshot
}

// buildSnapshot fans out over all probers and joins the results. The
// second return is false if the aggregation itself panicked.
func (a *Aggregator) buildSnapshot(ctx context.Context) (snapshot SystemHealth, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error().
				Interface("panic", r).
				Msg("health aggregation failed")
			ok = false
		}
	}()

	results := make(map[ServiceName]ServiceHealth, len(a.probers))
	resultsMu := sync.Mutex{}
	wg := sync.WaitGroup{}

	for name, prober := range a.probers {
		wg.Add(1)
		go func(name ServiceName, p Prober) {
			defer wg.Done()

			result := a.safeProbe(ctx, name, p)

			resultsMu.Lock()
			results[name] = result
			resultsMu.Unlock()
		}(name, prober)
	}

	wg.Wait()

	modes := fallbackModes(
		results[ServiceDatabase].Available(),
		results[ServiceCache].Available(),
		results[ServicePaymentGateway].Available(),
	)

	snapshot = SystemHealth{
		Status:        overallStatus(results, modes),
		Timestamp:     a.now(),
		UptimeSeconds: int64(a.now().Sub(a.startedAt).Seconds()),
		Services:      results,
		Metrics:       a.collectMetrics(),
		FallbackModes: modes,
	}
	return snapshot, true
}

// overallStatus derives the system status from per-service results. The
// database is load-bearing: its failure alone makes the system unhealthy.
// Everything else, fallback modes included, caps at degraded.
func overallStatus(results map[ServiceName]ServiceHealth, modes []string) ServiceStatus {
	if results[ServiceDatabase].Status == StatusUnhealthy {
		return StatusUnhealthy
	}
	if len(modes) > 0 {
		return StatusDegraded
	}
	for _, result := range results {
		if result.Status != StatusHealthy {
			return StatusDegraded
		}
	}
	return StatusHealthy
}

// recoverSnapshot serves the emergency path after an aggregation failure.
func (a *Aggregator) recoverSnapshot() SystemHealth {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.lastKnown != nil {
		stale := *a.lastKnown
		stale.Status = StatusDegraded
		return stale
	}

	services := make(map[ServiceName]ServiceHealth, len(AllServices()))
	for _, name := range AllServices() {
		services[name] = ServiceHealth{
			Status:      StatusUnhealthy,
			LastChecked: a.now(),
			Error:       "health aggregation failed",
		}
	}
	return SystemHealth{
		Status:        StatusUnhealthy,
		Timestamp:     a.now(),
		UptimeSeconds: int64(a.now().Sub(a.startedAt).Seconds()),
		Services:      services,
	}
}

// QuickHealth is the datastore-only ping used by load-balancer liveness
// probes: a single query, no aggregation, no caching. A successful ping
// over the slow threshold reports degraded.
func (a *Aggregator) QuickHealth(ctx context.Context) QuickHealth {
	prober, ok := a.probers[ServiceDatabase]
	if !ok {
		return QuickHealth{Status: StatusUnhealthy}
	}

	result := a.safeProbe(ctx, ServiceDatabase, prober)

	status := result.Status
	if status == StatusHealthy && result.ResponseTimeMs > a.slowThreshold.Milliseconds() {
		status = StatusDegraded
	}
	return QuickHealth{Status: status, ResponseTimeMs: result.ResponseTimeMs}
}

// IsServiceAvailable reports whether a service is usable, consulting the
// result cache first and probing only on a miss. This is the hot-path
// entry point: within the TTL window repeated calls issue no probes.
func (a *Aggregator) IsServiceAvailable(ctx context.Context, name ServiceName) bool {
	if cached, ok := a.cache.Get(name); ok {
		if a.metrics != nil {
			a.metrics.RecordCacheHit(name)
		}
		return cached.Available()
	}
	if a.metrics != nil {
		a.metrics.RecordCacheMiss(name)
	}

	prober, ok := a.probers[name]
	if !ok {
		return false
	}

	// The result outlives this request: within the TTL every caller reuses
	// it, so the probe must not inherit the caller's cancellation. A client
	// disconnecting mid-probe would otherwise poison the cache with a false
	// unhealthy entry.
	result := a.safeProbe(context.WithoutCancel(ctx), name, prober)
	a.cache.Put(name, result)

	if !result.Available() {
		a.logger.Warn().
			Str("service", string(name)).
			Str("error", result.Error).
			Msg("service unavailable")
	}
	return result.Available()
}

// DegradationStatus applies the feature policy to cached availability:
//
//	canAcceptNewBookings  = database AND payment_gateway
//	canProcessPayments    = payment_gateway
//	canSendNotifications  = always (notifications fall back internally)
//	canUseCache           = cache
func (a *Aggregator) DegradationStatus(ctx context.Context) DegradationStatus {
	db := a.IsServiceAvailable(ctx, ServiceDatabase)
	cache := a.IsServiceAvailable(ctx, ServiceCache)
	payment := a.IsServiceAvailable(ctx, ServicePaymentGateway)

	return DegradationStatus{
		CanAcceptNewBookings: db && payment,
		CanProcessPayments:   payment,
		CanSendNotifications: true,
		CanUseCache:          cache,
		FallbackModes:        fallbackModes(db, cache, payment),
	}
}

// fallbackModes lists the active degradations in a stable order.
func fallbackModes(db, cache, payment bool) []string {
	modes := []string{}
	if !cache {
		modes = append(modes, FallbackNoCaching)
	}
	if !payment {
		modes = append(modes, FallbackPaymentDegraded)
	}
	if !db {
		modes = append(modes, FallbackReadOnlyMode)
	}
	return modes
}

// InvalidateCache drops all cached probe results, forcing fresh probes on
// the next availability checks.
func (a *Aggregator) InvalidateCache() {
	a.cache.Clear()
}

// CacheStats exposes the result cache contents for the ops surface.
func (a *Aggregator) CacheStats() CacheStats {
	return a.cache.Stats()
}

// safeProbe runs a probe, converting a panic into an unhealthy result so
// no probe failure can escape the health boundary. The name is passed in
// so a misbehaving Prober is never re-asked for it here.
func (a *Aggregator) safeProbe(ctx context.Context, name ServiceName, p Prober) (result ServiceHealth) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error().
				Str("service", string(name)).
				Interface("panic", r).
				Msg("probe panicked")
			result = ServiceHealth{
				Status:      StatusUnhealthy,
				LastChecked: a.now(),
				Error:       fmt.Sprintf("probe panicked: %v", r),
			}
		}
		if a.metrics != nil {
			a.metrics.RecordProbe(name, result.Status, time.Since(start))
		}
	}()
	return p.Probe(ctx)
}

// collectMetrics gathers best-effort process metrics.
func (a *Aggregator) collectMetrics() SystemMetrics {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	metrics := SystemMetrics{
		MemoryAllocBytes: mem.Alloc,
		Goroutines:       runtime.NumGoroutine(),
	}
	if a.poolStats != nil {
		metrics.DBTotalConns, metrics.DBIdleConns, metrics.DBAcquiredConns, metrics.DBMaxConns = a.poolStats()
	}
	return metrics
}
