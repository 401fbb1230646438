package fallback

import (
	"context"

	"github.com/bookbeam/bookbeam/internal/health"
)

// PaymentResult tags the outcome of a payment attempt so callers can
// present degraded-but-functional UX without exception handling.
type PaymentResult[T any] struct {
	Success  bool   `json:"success"`
	Fallback bool   `json:"fallback,omitempty"`
	Data     T      `json:"data,omitempty"`
	Error    string `json:"error,omitempty"`
}

// ProcessPayment attempts a payment with graceful degradation.
//
// If the gateway is unavailable and a fallback handler exists, the handler
// runs and the result is tagged {Success: true, Fallback: true}. If the
// gateway is unavailable with no fallback, {Success: false} is returned
// without any error propagation. If the gateway is available, the charge
// is attempted normally and falls back to the handler on failure too.
func ProcessPayment[T any](ctx context.Context, e *Executor, charge Func[T], fallbackHandler Func[T]) PaymentResult[T] {
	label := string(health.ServicePaymentGateway)

	if !e.avail.IsServiceAvailable(ctx, health.ServicePaymentGateway) {
		if fallbackHandler == nil {
			e.warnFallback(label, "gateway unavailable, no fallback handler", nil)
			return PaymentResult[T]{Success: false, Error: "payment gateway unavailable"}
		}
		e.warnFallback(label, "gateway unavailable", nil)
		return runPaymentFallback(ctx, e, fallbackHandler, "payment gateway unavailable")
	}

	data, err := charge(ctx)
	if err == nil {
		return PaymentResult[T]{Success: true, Data: data}
	}

	if fallbackHandler == nil {
		return PaymentResult[T]{Success: false, Error: err.Error()}
	}
	e.warnFallback(label, "charge failed", err)
	return runPaymentFallback(ctx, e, fallbackHandler, err.Error())
}

func runPaymentFallback[T any](ctx context.Context, e *Executor, handler Func[T], cause string) PaymentResult[T] {
	data, err := handler(ctx)
	if err != nil {
		e.warnFallback(string(health.ServicePaymentGateway), "fallback handler failed", err)
		return PaymentResult[T]{Success: false, Error: cause}
	}
	return PaymentResult[T]{Success: true, Fallback: true, Data: data}
}
