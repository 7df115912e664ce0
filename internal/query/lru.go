package query

import (
	"container/list"
	"time"
)

// lruCache is a fixed-capacity map-plus-list LRU with a per-entry TTL.
// Callers hold the surrounding Cache lock; this type is not safe on its own.
type lruCache struct {
	capacity int
	ttl      time.Duration
	entries  map[string]*list.Element
	order    *list.List // front = most recently used
	now      func() time.Time
}

type lruEntry struct {
	key      string
	value    any
	storedAt time.Time
}

func newLRU(capacity int, ttl time.Duration) *lruCache {
	return &lruCache{
		capacity: capacity,
		ttl:      ttl,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
		now:      time.Now,
	}
}

func (c *lruCache) get(key string) (any, bool) {
	elem, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	entry := elem.Value.(*lruEntry)
	if c.ttl > 0 && c.now().Sub(entry.storedAt) > c.ttl {
		c.remove(elem)
		return nil, false
	}
	c.order.MoveToFront(elem)
	return entry.value, true
}

func (c *lruCache) put(key string, value any) {
	if c.capacity <= 0 {
		return
	}
	if elem, ok := c.entries[key]; ok {
		entry := elem.Value.(*lruEntry)
		entry.value = value
		entry.storedAt = c.now()
		c.order.MoveToFront(elem)
		return
	}
	for len(c.entries) >= c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.remove(oldest)
	}
	c.entries[key] = c.order.PushFront(&lruEntry{key: key, value: value, storedAt: c.now()})
}

func (c *lruCache) remove(elem *list.Element) {
	entry := elem.Value.(*lruEntry)
	c.order.Remove(elem)
	delete(c.entries, entry.key)
}

func (c *lruCache) flush() {
	c.entries = make(map[string]*list.Element)
	c.order.Init()
}

func (c *lruCache) len() int { return len(c.entries) }
