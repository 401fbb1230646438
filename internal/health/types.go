// Package health tracks the live availability of the platform's backing
// services and derives the feature flags request handlers use to degrade
// gracefully instead of failing outright.
package health

import "time"

// ServiceName identifies a probed backing service. The set is closed:
// adding a service means adding a prober and a policy entry, nothing else.
type ServiceName string

const (
	ServiceDatabase       ServiceName = "database"
	ServiceCache          ServiceName = "cache"
	ServicePaymentGateway ServiceName = "payment_gateway"
	ServiceExternalAPIs   ServiceName = "external_apis"
)

// AllServices returns every probed service in a stable order.
func AllServices() []ServiceName {
	return []ServiceName{
		ServiceDatabase,
		ServiceCache,
		ServicePaymentGateway,
		ServiceExternalAPIs,
	}
}

// ServiceStatus is the health of a single service or of the system overall.
type ServiceStatus string

const (
	StatusHealthy   ServiceStatus = "healthy"
	StatusDegraded  ServiceStatus = "degraded"
	StatusUnhealthy ServiceStatus = "unhealthy"
)

// ServiceHealth is the result of one probe run.
//
// Invariant: StatusUnhealthy implies Error is non-empty. An intentionally
// unconfigured optional dependency reports StatusHealthy with Details
// explaining why, and never degrades the system.
type ServiceHealth struct {
	Status         ServiceStatus `json:"status"`
	ResponseTimeMs int64         `json:"responseTimeMs"`
	LastChecked    time.Time     `json:"lastChecked"`
	Error          string        `json:"error,omitempty"`
	Details        string        `json:"details,omitempty"`
}

// Available reports whether the service can be used by request handlers.
func (h ServiceHealth) Available() bool {
	return h.Status == StatusHealthy
}

// SystemMetrics carries best-effort, non-authoritative process metrics
// included in the detailed snapshot.
type SystemMetrics struct {
	MemoryAllocBytes  uint64 `json:"memoryAllocBytes"`
	Goroutines        int    `json:"goroutines"`
	DBTotalConns      int32  `json:"dbTotalConns"`
	DBIdleConns       int32  `json:"dbIdleConns"`
	DBAcquiredConns   int32  `json:"dbAcquiredConns"`
	DBMaxConns        int32  `json:"dbMaxConns"`
}

// SystemHealth is the full system snapshot returned by the detailed
// health endpoint and persisted by the alert sink when not healthy.
type SystemHealth struct {
	Status        ServiceStatus                 `json:"status"`
	Timestamp     time.Time                     `json:"timestamp"`
	UptimeSeconds int64                         `json:"uptimeSeconds"`
	Services      map[ServiceName]ServiceHealth `json:"services"`
	Metrics       SystemMetrics                 `json:"metrics"`
	FallbackModes []string                      `json:"fallbackModes,omitempty"`
}

// QuickHealth is the lightweight response served to load-balancer probes.
type QuickHealth struct {
	Status         ServiceStatus `json:"status"`
	ResponseTimeMs int64         `json:"responseTimeMs"`
}

// Fallback mode labels surfaced in DegradationStatus and SystemHealth.
const (
	FallbackNoCaching       = "no_caching"
	FallbackPaymentDegraded = "payment_degraded"
	FallbackReadOnlyMode    = "read_only_mode"
)

// DegradationStatus is the coarse policy view of system health: which
// features the platform can currently offer.
type DegradationStatus struct {
	CanAcceptNewBookings bool     `json:"canAcceptNewBookings"`
	CanProcessPayments   bool     `json:"canProcessPayments"`
	CanSendNotifications bool     `json:"canSendNotifications"`
	CanUseCache          bool     `json:"canUseCache"`
	FallbackModes        []string `json:"fallbackModes"`
}
