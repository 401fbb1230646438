// Package handler provides HTTP handlers for the bookbeam API.
package handler

import (
	"net/http"

	"github.com/bookbeam/bookbeam/internal/api/response"
	"github.com/bookbeam/bookbeam/internal/health"
)

// OpsHandler serves the operational health surface.
type OpsHandler struct {
	version   string
	buildTime string
	agg       *health.Aggregator
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(version, buildTime string, agg *health.Aggregator) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		agg:       agg,
	}
}

// QuickHealth handles GET /health - the load-balancer liveness probe.
// Single datastore ping, no aggregation; must respond well under a second.
func (h *OpsHandler) QuickHealth(w http.ResponseWriter, r *http.Request) {
	quick := h.agg.QuickHealth(r.Context())

	code := http.StatusOK
	if quick.Status == health.StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	response.JSON(w, r, code, quick)
}

// DetailedHealth handles GET /health/detailed - the full system snapshot.
// All probes run fresh; degraded still returns 200 because the system can
// serve.
func (h *OpsHandler) DetailedHealth(w http.ResponseWriter, r *http.Request) {
	snapshot := h.agg.SystemHealth(r.Context())

	code := http.StatusOK
	if snapshot.Status == health.StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	response.JSON(w, r, code, snapshot)
}

// statusResponse is the body served by the ops status endpoint.
type statusResponse struct {
	Version     string                   `json:"version"`
	BuildTime   string                   `json:"buildTime"`
	Degradation health.DegradationStatus `json:"degradation"`
	HealthCache health.CacheStats        `json:"healthCache"`
}

// SystemStatus handles GET /v1/ops/status - the degradation policy view.
// Cache-friendly: availability checks reuse the probe result TTL cache.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, statusResponse{
		Version:     h.version,
		BuildTime:   h.buildTime,
		Degradation: h.agg.DegradationStatus(r.Context()),
		HealthCache: h.agg.CacheStats(),
	})
}

// InvalidateHealthCache handles POST /v1/ops/health-cache/invalidate -
// administrative clear of the probe result cache.
func (h *OpsHandler) InvalidateHealthCache(w http.ResponseWriter, r *http.Request) {
	h.agg.InvalidateCache()
	response.NoContent(w, r)
}
