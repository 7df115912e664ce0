package query

import (
	"fmt"
	"testing"
	"time"
)

func TestCacheHitWithinEpoch(t *testing.T) {
	cache := NewCache(8, time.Minute)
	cache.Put("digest\x00", 1, "result")

	v, ok := cache.Get("digest\x00", 1)
	if !ok || v.(string) != "result" {
		t.Fatalf("Get = %v, %v; want result, true", v, ok)
	}
}

func TestCacheFlushedOnEpochAdvance(t *testing.T) {
	cache := NewCache(8, time.Minute)
	cache.Put("digest\x00", 1, "stale")

	if _, ok := cache.Get("digest\x00", 2); ok {
		t.Fatal("entry from epoch 1 served at epoch 2")
	}
	if cache.Len() != 0 {
		t.Errorf("cache should be empty after epoch flush, has %d entries", cache.Len())
	}
}

func TestCacheDiscardsStaleEpochPut(t *testing.T) {
	cache := NewCache(8, time.Minute)
	if _, ok := cache.Get("k", 5); ok {
		t.Fatal("empty cache cannot hit")
	}
	// A result computed before the store moved on must not be cached.
	cache.Put("k", 4, "computed against old graph")
	if _, ok := cache.Get("k", 5); ok {
		t.Fatal("stale-epoch result was cached")
	}
}

func TestLRUEvictsOldest(t *testing.T) {
	lru := newLRU(2, time.Minute)
	lru.put("a", 1)
	lru.put("b", 2)
	lru.put("c", 3)

	if _, ok := lru.get("a"); ok {
		t.Error("oldest entry should have been evicted")
	}
	if _, ok := lru.get("b"); !ok {
		t.Error("b should survive")
	}
	if _, ok := lru.get("c"); !ok {
		t.Error("c should survive")
	}
}

func TestLRUGetRefreshesRecency(t *testing.T) {
	lru := newLRU(2, time.Minute)
	lru.put("a", 1)
	lru.put("b", 2)
	lru.get("a")
	lru.put("c", 3)

	if _, ok := lru.get("a"); !ok {
		t.Error("recently read entry was evicted")
	}
	if _, ok := lru.get("b"); ok {
		t.Error("least recently used entry should have been evicted")
	}
}

func TestLRUEntryExpires(t *testing.T) {
	now := time.Now()
	lru := newLRU(8, time.Minute)
	lru.now = func() time.Time { return now }
	lru.put("a", 1)

	now = now.Add(30 * time.Second)
	if _, ok := lru.get("a"); !ok {
		t.Fatal("entry expired before its TTL")
	}
	now = now.Add(31 * time.Second)
	if _, ok := lru.get("a"); ok {
		t.Fatal("entry served past its TTL")
	}
	if lru.len() != 0 {
		t.Error("expired entry should be dropped on read")
	}
}

func TestLRUCapacityBound(t *testing.T) {
	lru := newLRU(4, time.Minute)
	for i := 0; i < 32; i++ {
		lru.put(fmt.Sprintf("key-%d", i), i)
	}
	if lru.len() != 4 {
		t.Errorf("len = %d, want capacity bound 4", lru.len())
	}
}

func TestCacheKeySeparatesArguments(t *testing.T) {
	if cacheKey("path", "ab", "c") == cacheKey("path", "a", "bc") {
		t.Error("argument boundaries must survive key building")
	}
}
