package health

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/bookbeam/bookbeam/internal/health"

// ProbeMetrics holds instruments for dependency probes and the result
// cache.
type ProbeMetrics struct {
	probeDuration metric.Float64Histogram
	probeTotal    metric.Int64Counter
	cacheHits     metric.Int64Counter
	cacheMisses   metric.Int64Counter
}

// NewProbeMetrics creates metrics for monitoring dependency probes.
func NewProbeMetrics() (*ProbeMetrics, error) {
	meter := otel.Meter(meterName)

	probeDuration, err := meter.Float64Histogram(
		"health.probe.duration",
		metric.WithDescription("Duration of dependency probes in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	probeTotal, err := meter.Int64Counter(
		"health.probe.total",
		metric.WithDescription("Total number of dependency probes"),
		metric.WithUnit("{probe}"),
	)
	if err != nil {
		return nil, err
	}

	cacheHits, err := meter.Int64Counter(
		"health.cache.hit",
		metric.WithDescription("Number of probe result cache hits"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, err
	}

	cacheMisses, err := meter.Int64Counter(
		"health.cache.miss",
		metric.WithDescription("Number of probe result cache misses"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return nil, err
	}

	return &ProbeMetrics{
		probeDuration: probeDuration,
		probeTotal:    probeTotal,
		cacheHits:     cacheHits,
		cacheMisses:   cacheMisses,
	}, nil
}

// RecordProbe records one probe run with its outcome.
func (m *ProbeMetrics) RecordProbe(service ServiceName, status ServiceStatus, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.String("service.name", string(service)),
		attribute.String("probe.status", string(status)),
	}

	// Use background context for metrics to avoid context cancellation issues
	ctx := context.TODO()
	m.probeDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.probeTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordCacheHit records a result cache hit for a service.
func (m *ProbeMetrics) RecordCacheHit(service ServiceName) {
	attrs := []attribute.KeyValue{
		attribute.String("service.name", string(service)),
	}
	m.cacheHits.Add(context.TODO(), 1, metric.WithAttributes(attrs...))
}

// RecordCacheMiss records a result cache miss for a service.
func (m *ProbeMetrics) RecordCacheMiss(service ServiceName) {
	attrs := []attribute.KeyValue{
		attribute.String("service.name", string(service)),
	}
	m.cacheMisses.Add(context.TODO(), 1, metric.WithAttributes(attrs...))
}
