package fallback

import (
	"context"

	"github.com/bookbeam/bookbeam/internal/health"
)

// WriteResult tags the outcome of a datastore write attempt.
type WriteResult[T any] struct {
	Success  bool   `json:"success"`
	ReadOnly bool   `json:"readOnly,omitempty"`
	Data     T      `json:"data,omitempty"`
	Error    string `json:"error,omitempty"`
}

// DBWrite attempts a datastore write with a read-only degradation path.
//
// Datastore unavailable with a read-only fallback: the fallback runs and
// the result is tagged {ReadOnly: true}. Unavailable with no fallback:
// {Success: false} without error propagation. Available: the write is
// attempted, falling back to read-only on failure if a fallback exists.
func DBWrite[T any](ctx context.Context, e *Executor, write Func[T], readOnly Func[T]) WriteResult[T] {
	label := string(health.ServiceDatabase)

	if !e.avail.IsServiceAvailable(ctx, health.ServiceDatabase) {
		if readOnly == nil {
			e.warnFallback(label, "datastore unavailable, no read-only fallback", nil)
			return WriteResult[T]{Success: false, Error: "database unavailable"}
		}
		e.warnFallback(label, "datastore unavailable, entering read-only mode", nil)
		return runReadOnly(ctx, e, readOnly, "database unavailable")
	}

	data, err := write(ctx)
	if err == nil {
		return WriteResult[T]{Success: true, Data: data}
	}

	if readOnly == nil {
		return WriteResult[T]{Success: false, Error: err.Error()}
	}
	e.warnFallback(label, "write failed, entering read-only mode", err)
	return runReadOnly(ctx, e, readOnly, err.Error())
}

func runReadOnly[T any](ctx context.Context, e *Executor, readOnly Func[T], cause string) WriteResult[T] {
	data, err := readOnly(ctx)
	if err != nil {
		e.warnFallback(string(health.ServiceDatabase), "read-only fallback failed", err)
		return WriteResult[T]{Success: false, ReadOnly: true, Error: cause}
	}
	return WriteResult[T]{Success: true, ReadOnly: true, Data: data}
}
