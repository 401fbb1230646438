package health_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/bookbeam/bookbeam/internal/health"
)

// fakePinger reports a fixed ping outcome.
type fakePinger struct {
	err error
}

func (p fakePinger) Ping(_ context.Context) error { return p.err }

// fakeCacheConn records whether it was closed.
type fakeCacheConn struct {
	pingErr error
	closed  bool
}

func (c *fakeCacheConn) Ping(_ context.Context) error { return c.pingErr }

func (c *fakeCacheConn) Close() error {
	c.closed = true
	return nil
}

// fakeAccountChecker reports a fixed gateway outcome.
type fakeAccountChecker struct {
	err error
}

func (c fakeAccountChecker) CheckAccount(_ context.Context) error { return c.err }

func TestDatabaseProber_Healthy(t *testing.T) {
	prober := health.NewDatabaseProber(fakePinger{}, time.Second)

	result := prober.Probe(context.Background())

	assert.Equal(t, health.ServiceDatabase, prober.Name())
	assert.Equal(t, health.StatusHealthy, result.Status)
	assert.Empty(t, result.Error)
	assert.False(t, result.LastChecked.IsZero())
}

func TestDatabaseProber_Unhealthy(t *testing.T) {
	prober := health.NewDatabaseProber(fakePinger{err: errors.New("connection refused")}, time.Second)

	result := prober.Probe(context.Background())

	assert.Equal(t, health.StatusUnhealthy, result.Status)
	assert.Equal(t, "connection refused", result.Error)
}

func TestCacheProber_NotConfigured(t *testing.T) {
	prober := health.NewCacheProber(nil, time.Second)

	result := prober.Probe(context.Background())

	// An absent optional dependency is healthy, not a fault.
	assert.Equal(t, health.StatusHealthy, result.Status)
	assert.Equal(t, "not configured", result.Details)
	assert.True(t, result.Available())
}

func TestCacheProber_DialError(t *testing.T) {
	dial := func(_ context.Context) (health.CachePinger, error) {
		return nil, errors.New("dial tcp: connection refused")
	}
	prober := health.NewCacheProber(dial, time.Second)

	result := prober.Probe(context.Background())

	assert.Equal(t, health.StatusUnhealthy, result.Status)
	assert.Contains(t, result.Error, "connection refused")
}

func TestCacheProber_ClosesConnection(t *testing.T) {
	conn := &fakeCacheConn{}
	dial := func(_ context.Context) (health.CachePinger, error) {
		return conn, nil
	}
	prober := health.NewCacheProber(dial, time.Second)

	result := prober.Probe(context.Background())

	assert.Equal(t, health.StatusHealthy, result.Status)
	assert.True(t, conn.closed)
}

func TestCacheProber_PingErrorStillCloses(t *testing.T) {
	conn := &fakeCacheConn{pingErr: errors.New("READONLY")}
	dial := func(_ context.Context) (health.CachePinger, error) {
		return conn, nil
	}
	prober := health.NewCacheProber(dial, time.Second)

	result := prober.Probe(context.Background())

	assert.Equal(t, health.StatusUnhealthy, result.Status)
	assert.True(t, conn.closed)
}

func TestPaymentProber_NotConfigured(t *testing.T) {
	prober := health.NewPaymentProber(nil, time.Second)

	result := prober.Probe(context.Background())

	assert.Equal(t, health.StatusHealthy, result.Status)
	assert.Equal(t, "not configured", result.Details)
}

func TestPaymentProber_GatewayDown(t *testing.T) {
	prober := health.NewPaymentProber(fakeAccountChecker{err: errors.New("401 unauthorized")}, time.Second)

	result := prober.Probe(context.Background())

	assert.Equal(t, health.StatusUnhealthy, result.Status)
	assert.Contains(t, result.Error, "401")
}

func TestExternalAPIProber_Reachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	prober := health.NewExternalAPIProber(srv.URL, srv.Client(), time.Second)

	result := prober.Probe(context.Background())

	assert.Equal(t, health.ServiceExternalAPIs, prober.Name())
	assert.Equal(t, health.StatusHealthy, result.Status)
}

func TestExternalAPIProber_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	prober := health.NewExternalAPIProber(srv.URL, srv.Client(), time.Second)

	result := prober.Probe(context.Background())

	assert.Equal(t, health.StatusUnhealthy, result.Status)
	assert.Contains(t, result.Error, "502")
}

func TestExternalAPIProber_Unreachable(t *testing.T) {
	// Closed server: the port is no longer listening.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	prober := health.NewExternalAPIProber(url, nil, time.Second)

	result := prober.Probe(context.Background())

	assert.Equal(t, health.StatusUnhealthy, result.Status)
	assert.NotEmpty(t, result.Error)
}
