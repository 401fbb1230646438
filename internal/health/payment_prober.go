package health

import (
	"context"
	"time"
)

// AccountChecker performs a lightweight authenticated read against the
// payment gateway's account endpoint. payments.Client satisfies it.
type AccountChecker interface {
	CheckAccount(ctx context.Context) error
}

// PaymentProber checks the payment gateway. With no credentials configured
// the probe reports healthy with a "not configured" annotation.
type PaymentProber struct {
	gateway AccountChecker
	timeout time.Duration
}

// NewPaymentProber creates a payment gateway prober. gateway may be nil
// when no credentials are configured.
func NewPaymentProber(gateway AccountChecker, timeout time.Duration) *PaymentProber {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &PaymentProber{gateway: gateway, timeout: timeout}
}

// Name returns the probed service name.
func (p *PaymentProber) Name() ServiceName {
	return ServicePaymentGateway
}

// Probe reads the gateway account info within the probe timeout. Any
// non-success HTTP status or transport failure is unhealthy.
func (p *PaymentProber) Probe(ctx context.Context) ServiceHealth {
	if p.gateway == nil {
		return notConfigured()
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	if err := p.gateway.CheckAccount(ctx); err != nil {
		return unhealthy(start, err)
	}
	return healthy(start)
}
