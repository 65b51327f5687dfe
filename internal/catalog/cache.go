package catalog

import (
	"sync"
	"time"
)

type cachedResult struct {
	items     []Item
	fetchedAt time.Time
}

// resultCache remembers search results per normalized query for a fixed TTL.
// Entries are checked for expiry on read and pruned on write.
type resultCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]cachedResult
}

func newResultCache(ttl time.Duration, now func() time.Time) *resultCache {
	return &resultCache{
		ttl:     ttl,
		now:     now,
		entries: make(map[string]cachedResult),
	}
}

func (c *resultCache) get(key string) ([]Item, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.fetchedAt) >= c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return e.items, true
}

// put stores items as fetched at the given time, which is when the request
// started rather than when it finished.
func (c *resultCache) put(key string, items []Item, fetchedAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, e := range c.entries {
		if now.Sub(e.fetchedAt) >= c.ttl {
			delete(c.entries, k)
		}
	}
	c.entries[key] = cachedResult{items: items, fetchedAt: fetchedAt}
}

func (c *resultCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
