package health

import (
	"sync"
	"time"
)

// DefaultResultTTL is how long a probe result is trusted before the
// service is probed again.
const DefaultResultTTL = 30 * time.Second

// CacheStats describes the current contents of the result cache.
type CacheStats struct {
	Size int           `json:"size"`
	Keys []ServiceName `json:"keys"`
}

type cacheEntry struct {
	health    ServiceHealth
	fetchedAt time.Time
}

// ResultCache is a TTL cache of probe results keyed by service name. A hit
// short-circuits re-probing entirely: the cached status is returned as-is,
// stale error text included, until expiry. Callers needing guaranteed-fresh
// status use the quick-health path instead.
//
// The TTL is uniform across services. A race where two requests both miss
// and both re-probe the same service is acceptable: probes are idempotent
// and side-effect-free, and the window self-heals on the next TTL cycle.
type ResultCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[ServiceName]cacheEntry
}

// NewResultCache creates a result cache. A zero ttl uses DefaultResultTTL;
// a nil now uses time.Now (injectable for tests).
func NewResultCache(ttl time.Duration, now func() time.Time) *ResultCache {
	if ttl <= 0 {
		ttl = DefaultResultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &ResultCache{
		ttl:     ttl,
		now:     now,
		entries: make(map[ServiceName]cacheEntry),
	}
}

// Get returns the cached result for name, if present and within TTL.
func (c *ResultCache) Get(name ServiceName) (ServiceHealth, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[name]
	if !ok {
		return ServiceHealth{}, false
	}
	if c.now().Sub(entry.fetchedAt) >= c.ttl {
		return ServiceHealth{}, false
	}
	return entry.health, true
}

// Put stores a probe result, overwriting any previous entry.
func (c *ResultCache) Put(name ServiceName, health ServiceHealth) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[name] = cacheEntry{health: health, fetchedAt: c.now()}
}

// Clear drops all cached results. Used by the administrative
// cache-invalidation endpoint.
func (c *ResultCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[ServiceName]cacheEntry)
}

// Stats returns the cache size and the currently cached keys. Expired
// entries remain counted until overwritten or cleared.
func (c *ResultCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]ServiceName, 0, len(c.entries))
	for _, name := range AllServices() {
		if _, ok := c.entries[name]; ok {
			keys = append(keys, name)
		}
	}
	return CacheStats{Size: len(c.entries), Keys: keys}
}
