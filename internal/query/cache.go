package query

import (
	"strings"
	"sync"
	"time"

	"codegraph/internal/shared/observability"
)

// DefaultCacheCapacity and DefaultCacheTTL apply when the config leaves the
// cache section zeroed.
const (
	DefaultCacheCapacity = 256
	DefaultCacheTTL      = 5 * time.Minute
)

// Cache memoizes query results keyed by operation name plus canonicalized
// arguments. Correctness over hit rate: any store mutation advances the store
// epoch, and the first lookup that sees a new epoch drops every entry rather
// than guessing which results the mutation touched.
type Cache struct {
	mu    sync.Mutex
	lru   *lruCache
	epoch uint64
}

func NewCache(capacity int, ttl time.Duration) *Cache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{lru: newLRU(capacity, ttl)}
}

// Get returns the cached value for key if it was stored under the same store
// epoch and has not expired.
func (c *Cache) Get(key string, epoch uint64) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.syncEpochLocked(epoch)
	value, ok := c.lru.get(key)
	if ok {
		observability.QueryCacheHits.Inc()
	} else {
		observability.QueryCacheMisses.Inc()
	}
	return value, ok
}

// Put stores a result computed against the given store epoch. A result from
// a stale epoch is discarded instead of cached.
func (c *Cache) Put(key string, epoch uint64, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.syncEpochLocked(epoch)
	if c.epoch != epoch {
		return
	}
	c.lru.put(key, value)
}

// Len reports the current entry count.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.len()
}

func (c *Cache) syncEpochLocked(epoch uint64) {
	if epoch == c.epoch {
		return
	}
	c.lru.flush()
	if epoch > c.epoch {
		c.epoch = epoch
	}
}

// cacheKey joins the operation name and its canonicalized arguments.
func cacheKey(op string, args ...string) string {
	return op + "\x00" + strings.Join(args, "\x00")
}
