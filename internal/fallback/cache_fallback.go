package fallback

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/bookbeam/bookbeam/internal/cache"
	"github.com/bookbeam/bookbeam/internal/health"
)

// FetchWithCache is a read-through cache with graceful degradation.
//
// Cache availability is checked first, via the TTL'd health cache: when the
// cache service is down the fetcher is called directly and the cache client
// is never touched (no connection attempts against a backend known to be
// unhealthy). When the cache is up: read, on miss fetch and write through
// with the given TTL. If the fetcher itself fails and a static fallback was
// supplied, the static value wins and the error is only logged.
func FetchWithCache[T any](ctx context.Context, e *Executor, key string, fetcher Func[T], static *T, ttl time.Duration) (T, error) {
	cacheUp := e.store != nil && e.avail.IsServiceAvailable(ctx, health.ServiceCache)

	if cacheUp {
		raw, err := e.store.Get(ctx, key)
		switch {
		case err == nil:
			var value T
			if err := json.Unmarshal([]byte(raw), &value); err == nil {
				return value, nil
			}
			// Corrupt entry: treat as a miss and refetch.
		case !errors.Is(err, cache.ErrMiss):
			// The backend is erroring, not reporting a missing key. Skip
			// the write-through as well rather than hand it a second
			// doomed round trip.
			e.warnFallback("cache", "cache read failed", err)
			cacheUp = false
		}
	}

	value, err := fetcher(ctx)
	if err != nil {
		if static != nil {
			e.warnFallback("cache", "fetcher failed, serving static fallback", err)
			return *static, nil
		}
		return value, err
	}

	if cacheUp {
		if raw, marshalErr := json.Marshal(value); marshalErr == nil {
			if setErr := e.store.Set(ctx, key, string(raw), ttl); setErr != nil {
				e.warnFallback("cache", "write-through failed", setErr)
			}
		}
	}
	return value, nil
}
