package health

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// DefaultReachabilityURL is the endpoint used for the generic internet
// reachability check. It returns 204 with an empty body.
const DefaultReachabilityURL = "https://connectivitycheck.gstatic.com/generate_204"

// ExternalAPIProber checks general outbound internet connectivity on behalf
// of every external provider integration. Its failure is expected and
// tolerated: the aggregator never escalates it past a degraded system.
type ExternalAPIProber struct {
	url     string
	client  *http.Client
	timeout time.Duration
}

// NewExternalAPIProber creates a reachability prober. An empty url uses
// DefaultReachabilityURL; a nil client uses a dedicated probe client.
func NewExternalAPIProber(url string, client *http.Client, timeout time.Duration) *ExternalAPIProber {
	if url == "" {
		url = DefaultReachabilityURL
	}
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &ExternalAPIProber{url: url, client: client, timeout: timeout}
}

// Name returns the probed service name.
func (p *ExternalAPIProber) Name() ServiceName {
	return ServiceExternalAPIs
}

// Probe issues a single GET against the reachability endpoint.
func (p *ExternalAPIProber) Probe(ctx context.Context) ServiceHealth {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, http.NoBody)
	if err != nil {
		return unhealthy(start, err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return unhealthy(start, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return unhealthy(start, fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}
	return healthy(start)
}
