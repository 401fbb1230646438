package health_test

import (
	"context"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookbeam/bookbeam/internal/health"
)

// stubProber reports a fixed result.
type stubProber struct {
	name   health.ServiceName
	result health.ServiceHealth
}

func (p stubProber) Name() health.ServiceName { return p.name }

func (p stubProber) Probe(_ context.Context) health.ServiceHealth { return p.result }

// countingProber counts probe invocations.
type countingProber struct {
	name   health.ServiceName
	result health.ServiceHealth
	calls  atomic.Int64
}

func (p *countingProber) Name() health.ServiceName { return p.name }

func (p *countingProber) Probe(_ context.Context) health.ServiceHealth {
	p.calls.Add(1)
	return p.result
}

// panickingProber panics on every probe.
type panickingProber struct {
	name health.ServiceName
}

func (p panickingProber) Name() health.ServiceName { return p.name }

func (p panickingProber) Probe(_ context.Context) health.ServiceHealth {
	panic("prober blew up")
}

// cancelSensitiveProber mirrors the real probers: it fails when the
// probe context is already done.
type cancelSensitiveProber struct {
	name  health.ServiceName
	calls atomic.Int64
}

func (p *cancelSensitiveProber) Name() health.ServiceName { return p.name }

func (p *cancelSensitiveProber) Probe(ctx context.Context) health.ServiceHealth {
	p.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return health.ServiceHealth{Status: health.StatusUnhealthy, LastChecked: time.Now(), Error: err.Error()}
	}
	return healthyResult()
}

// panickingPoolStats stands in for a stats source that fails mid
// aggregation.
func panickingPoolStats() (int32, int32, int32, int32) {
	panic("pool stats source failed")
}

// recordingSink captures sink invocations on channels so tests can wait
// for the async dispatch.
type recordingSink struct {
	persisted chan health.SystemHealth
	critical  chan health.SystemHealth
}

func newRecordingSink() *recordingSink {
	return &recordingSink{
		persisted: make(chan health.SystemHealth, 1),
		critical:  make(chan health.SystemHealth, 1),
	}
}

func (s *recordingSink) Persist(_ context.Context, snapshot health.SystemHealth) {
	s.persisted <- snapshot
}

func (s *recordingSink) Critical(_ context.Context, snapshot health.SystemHealth) {
	s.critical <- snapshot
}

func healthyResult() health.ServiceHealth {
	return health.ServiceHealth{Status: health.StatusHealthy, LastChecked: time.Now()}
}

func unhealthyResult(msg string) health.ServiceHealth {
	return health.ServiceHealth{Status: health.StatusUnhealthy, LastChecked: time.Now(), Error: msg}
}

func newAggregator(t *testing.T, cfg health.AggregatorConfig) *health.Aggregator {
	t.Helper()
	cfg.Logger = zerolog.New(io.Discard)
	return health.NewAggregator(cfg)
}

func allHealthyProbers() []health.Prober {
	probers := make([]health.Prober, 0, len(health.AllServices()))
	for _, name := range health.AllServices() {
		probers = append(probers, stubProber{name: name, result: healthyResult()})
	}
	return probers
}

func TestAggregator_SystemHealth_AllHealthy(t *testing.T) {
	agg := newAggregator(t, health.AggregatorConfig{Probers: allHealthyProbers()})

	snapshot := agg.SystemHealth(context.Background())

	assert.Equal(t, health.StatusHealthy, snapshot.Status)
	assert.Len(t, snapshot.Services, len(health.AllServices()))
	assert.Empty(t, snapshot.FallbackModes)
	assert.NotZero(t, snapshot.Metrics.Goroutines)
	assert.False(t, snapshot.Timestamp.IsZero())
}

func TestAggregator_SystemHealth_CacheDown(t *testing.T) {
	probers := []health.Prober{
		stubProber{name: health.ServiceDatabase, result: healthyResult()},
		stubProber{name: health.ServiceCache, result: unhealthyResult("connection refused")},
		stubProber{name: health.ServicePaymentGateway, result: healthyResult()},
		stubProber{name: health.ServiceExternalAPIs, result: healthyResult()},
	}
	agg := newAggregator(t, health.AggregatorConfig{Probers: probers})

	snapshot := agg.SystemHealth(context.Background())

	assert.Equal(t, health.StatusDegraded, snapshot.Status)
	assert.Equal(t, []string{health.FallbackNoCaching}, snapshot.FallbackModes)
}

func TestAggregator_SystemHealth_DatabaseDown(t *testing.T) {
	probers := []health.Prober{
		stubProber{name: health.ServiceDatabase, result: unhealthyResult("connection refused")},
		stubProber{name: health.ServiceCache, result: healthyResult()},
		stubProber{name: health.ServicePaymentGateway, result: healthyResult()},
		stubProber{name: health.ServiceExternalAPIs, result: healthyResult()},
	}
	agg := newAggregator(t, health.AggregatorConfig{Probers: probers})

	snapshot := agg.SystemHealth(context.Background())

	assert.Equal(t, health.StatusUnhealthy, snapshot.Status)
	assert.Contains(t, snapshot.FallbackModes, health.FallbackReadOnlyMode)
}

func TestAggregator_SystemHealth_PanickingProbe(t *testing.T) {
	probers := []health.Prober{
		stubProber{name: health.ServiceDatabase, result: healthyResult()},
		panickingProber{name: health.ServiceCache},
		stubProber{name: health.ServicePaymentGateway, result: healthyResult()},
		stubProber{name: health.ServiceExternalAPIs, result: healthyResult()},
	}
	agg := newAggregator(t, health.AggregatorConfig{Probers: probers})

	snapshot := agg.SystemHealth(context.Background())

	// A panicking probe becomes an unhealthy result, never an escape.
	assert.Equal(t, health.StatusDegraded, snapshot.Status)
	assert.Equal(t, health.StatusUnhealthy, snapshot.Services[health.ServiceCache].Status)
	assert.Contains(t, snapshot.Services[health.ServiceCache].Error, "probe panicked")
}

func TestAggregator_SystemHealth_SinkDispatch(t *testing.T) {
	sink := newRecordingSink()
	probers := []health.Prober{
		stubProber{name: health.ServiceDatabase, result: unhealthyResult("connection refused")},
		stubProber{name: health.ServiceCache, result: healthyResult()},
		stubProber{name: health.ServicePaymentGateway, result: healthyResult()},
		stubProber{name: health.ServiceExternalAPIs, result: healthyResult()},
	}
	agg := newAggregator(t, health.AggregatorConfig{Probers: probers, Sink: sink})

	snapshot := agg.SystemHealth(context.Background())
	require.Equal(t, health.StatusUnhealthy, snapshot.Status)

	select {
	case persisted := <-sink.persisted:
		assert.Equal(t, health.StatusUnhealthy, persisted.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("snapshot was never persisted")
	}
	select {
	case critical := <-sink.critical:
		assert.Equal(t, health.StatusUnhealthy, critical.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("critical alert was never dispatched")
	}
}

func TestAggregator_SystemHealth_HealthySkipsSink(t *testing.T) {
	sink := newRecordingSink()
	agg := newAggregator(t, health.AggregatorConfig{Probers: allHealthyProbers(), Sink: sink})

	agg.SystemHealth(context.Background())

	select {
	case <-sink.persisted:
		t.Fatal("healthy snapshot should not be persisted")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestAggregator_SystemHealth_FailureWithoutPriorSnapshot(t *testing.T) {
	agg := newAggregator(t, health.AggregatorConfig{Probers: allHealthyProbers()})
	agg.SetPoolStats(panickingPoolStats)

	snapshot := agg.SystemHealth(context.Background())

	assert.Equal(t, health.StatusUnhealthy, snapshot.Status)
	require.Len(t, snapshot.Services, len(health.AllServices()))
	for _, name := range health.AllServices() {
		assert.Equal(t, health.StatusUnhealthy, snapshot.Services[name].Status)
		assert.Equal(t, "health aggregation failed", snapshot.Services[name].Error)
	}
}

func TestAggregator_SystemHealth_FailureServesLastKnownDegraded(t *testing.T) {
	agg := newAggregator(t, health.AggregatorConfig{Probers: allHealthyProbers()})

	good := agg.SystemHealth(context.Background())
	require.Equal(t, health.StatusHealthy, good.Status)

	agg.SetPoolStats(panickingPoolStats)
	snapshot := agg.SystemHealth(context.Background())

	assert.Equal(t, health.StatusDegraded, snapshot.Status)
	// The per-service results are the last known good ones, not
	// synthesized failures.
	assert.Equal(t, health.StatusHealthy, snapshot.Services[health.ServiceDatabase].Status)
	assert.Equal(t, good.Timestamp, snapshot.Timestamp)
}

func TestAggregator_QuickHealth(t *testing.T) {
	agg := newAggregator(t, health.AggregatorConfig{
		Probers: []health.Prober{stubProber{name: health.ServiceDatabase, result: healthyResult()}},
	})

	quick := agg.QuickHealth(context.Background())

	assert.Equal(t, health.StatusHealthy, quick.Status)
}

func TestAggregator_QuickHealth_SlowIsDegraded(t *testing.T) {
	slow := healthyResult()
	slow.ResponseTimeMs = 1500
	agg := newAggregator(t, health.AggregatorConfig{
		Probers: []health.Prober{stubProber{name: health.ServiceDatabase, result: slow}},
	})

	quick := agg.QuickHealth(context.Background())

	assert.Equal(t, health.StatusDegraded, quick.Status)
	assert.Equal(t, int64(1500), quick.ResponseTimeMs)
}

func TestAggregator_QuickHealth_NoProber(t *testing.T) {
	agg := newAggregator(t, health.AggregatorConfig{})

	quick := agg.QuickHealth(context.Background())

	assert.Equal(t, health.StatusUnhealthy, quick.Status)
}

func TestAggregator_IsServiceAvailable_CachesResults(t *testing.T) {
	prober := &countingProber{name: health.ServiceDatabase, result: healthyResult()}
	agg := newAggregator(t, health.AggregatorConfig{
		Probers:   []health.Prober{prober},
		ResultTTL: time.Minute,
	})

	ctx := context.Background()
	assert.True(t, agg.IsServiceAvailable(ctx, health.ServiceDatabase))
	assert.True(t, agg.IsServiceAvailable(ctx, health.ServiceDatabase))
	assert.True(t, agg.IsServiceAvailable(ctx, health.ServiceDatabase))

	// Within the TTL only the first call probes.
	assert.Equal(t, int64(1), prober.calls.Load())
}

func TestAggregator_IsServiceAvailable_IgnoresCallerCancellation(t *testing.T) {
	prober := &cancelSensitiveProber{name: health.ServiceDatabase}
	agg := newAggregator(t, health.AggregatorConfig{
		Probers:   []health.Prober{prober},
		ResultTTL: time.Minute,
	})

	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	// A client disconnecting mid-request must not turn into a cached
	// unhealthy result that 503s every caller for the rest of the TTL.
	assert.True(t, agg.IsServiceAvailable(canceled, health.ServiceDatabase))
	assert.True(t, agg.IsServiceAvailable(context.Background(), health.ServiceDatabase),
		"fresh request should see the healthy database")
	assert.Equal(t, int64(1), prober.calls.Load())
}

func TestAggregator_IsServiceAvailable_ReprobesAfterTTL(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	prober := &countingProber{name: health.ServiceDatabase, result: healthyResult()}
	agg := newAggregator(t, health.AggregatorConfig{
		Probers:   []health.Prober{prober},
		ResultTTL: 30 * time.Second,
		Now:       clock.Now,
	})

	ctx := context.Background()
	agg.IsServiceAvailable(ctx, health.ServiceDatabase)
	clock.Advance(31 * time.Second)
	agg.IsServiceAvailable(ctx, health.ServiceDatabase)

	assert.Equal(t, int64(2), prober.calls.Load())
}

func TestAggregator_IsServiceAvailable_UnknownService(t *testing.T) {
	agg := newAggregator(t, health.AggregatorConfig{})

	assert.False(t, agg.IsServiceAvailable(context.Background(), health.ServicePaymentGateway))
}

func TestAggregator_InvalidateCache(t *testing.T) {
	prober := &countingProber{name: health.ServiceDatabase, result: healthyResult()}
	agg := newAggregator(t, health.AggregatorConfig{
		Probers:   []health.Prober{prober},
		ResultTTL: time.Minute,
	})

	ctx := context.Background()
	agg.IsServiceAvailable(ctx, health.ServiceDatabase)
	agg.InvalidateCache()
	agg.IsServiceAvailable(ctx, health.ServiceDatabase)

	assert.Equal(t, int64(2), prober.calls.Load())
	assert.Equal(t, 1, agg.CacheStats().Size)
}

func TestAggregator_DegradationStatus_PaymentDown(t *testing.T) {
	probers := []health.Prober{
		stubProber{name: health.ServiceDatabase, result: healthyResult()},
		stubProber{name: health.ServiceCache, result: healthyResult()},
		stubProber{name: health.ServicePaymentGateway, result: unhealthyResult("timeout")},
		stubProber{name: health.ServiceExternalAPIs, result: healthyResult()},
	}
	agg := newAggregator(t, health.AggregatorConfig{Probers: probers})

	status := agg.DegradationStatus(context.Background())

	assert.False(t, status.CanAcceptNewBookings)
	assert.False(t, status.CanProcessPayments)
	assert.True(t, status.CanSendNotifications)
	assert.True(t, status.CanUseCache)
	assert.Equal(t, []string{health.FallbackPaymentDegraded}, status.FallbackModes)
}

func TestAggregator_DegradationStatus_AllDown(t *testing.T) {
	probers := []health.Prober{
		stubProber{name: health.ServiceDatabase, result: unhealthyResult("down")},
		stubProber{name: health.ServiceCache, result: unhealthyResult("down")},
		stubProber{name: health.ServicePaymentGateway, result: unhealthyResult("down")},
	}
	agg := newAggregator(t, health.AggregatorConfig{Probers: probers})

	status := agg.DegradationStatus(context.Background())

	assert.False(t, status.CanAcceptNewBookings)
	assert.False(t, status.CanProcessPayments)
	assert.True(t, status.CanSendNotifications)
	assert.False(t, status.CanUseCache)
	// Stable order regardless of which checks failed first.
	assert.Equal(t, []string{
		health.FallbackNoCaching,
		health.FallbackPaymentDegraded,
		health.FallbackReadOnlyMode,
	}, status.FallbackModes)
}

func TestAggregator_NotConfiguredServicesStayHealthy(t *testing.T) {
	probers := []health.Prober{
		stubProber{name: health.ServiceDatabase, result: healthyResult()},
		health.NewCacheProber(nil, time.Second),
		health.NewPaymentProber(nil, time.Second),
		stubProber{name: health.ServiceExternalAPIs, result: healthyResult()},
	}
	agg := newAggregator(t, health.AggregatorConfig{Probers: probers})

	snapshot := agg.SystemHealth(context.Background())

	assert.Equal(t, health.StatusHealthy, snapshot.Status)
	assert.Empty(t, snapshot.FallbackModes)
	assert.Equal(t, "not configured", snapshot.Services[health.ServiceCache].Details)
}
