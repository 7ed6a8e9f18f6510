package reviews

import (
	"sync"
	"time"

	"github.com/apsara-ai/derma/internal/domain/model"
)

type cacheEntry struct {
	reviews   []model.Review
	expiresAt time.Time
}

// ttlCache is a TTL-bounded cache of review results keyed by query string.
// Expired entries are dropped lazily on lookup. Concurrent stores of the
// same key are tolerated; the last write wins and values are idempotent
// per key within a TTL window.
type ttlCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
	now     func() time.Time
}

func newTTLCache(ttl time.Duration, now func() time.Time) *ttlCache {
	if now == nil {
		now = time.Now
	}
	return &ttlCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     now,
	}
}

func (c *ttlCache) get(key string) ([]model.Review, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		// Re-check under the write lock; another goroutine may have
		// refreshed the entry meanwhile.
		if current, ok := c.entries[key]; ok && c.now().After(current.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return entry.reviews, true
}

func (c *ttlCache) put(key string, reviews []model.Review) {
	c.mu.Lock()
	c.entries[key] = cacheEntry{
		reviews:   reviews,
		expiresAt: c.now().Add(c.ttl),
	}
	c.mu.Unlock()
}

func (c *ttlCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
