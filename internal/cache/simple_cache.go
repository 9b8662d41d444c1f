package cache

import (
	"sync"
	"time"
)

// entry stores a cached value with its write time and absolute expiration.
type entry[V any] struct {
	value     V
	storedAt  time.Time
	expiresAt time.Time // zero means no expiration
}

func (e entry[V]) expired(at time.Time) bool {
	return !e.expiresAt.IsZero() && at.After(e.expiresAt)
}

// SimpleCache is a map-backed cache safe for concurrent use.
// It is not size bounded and has no janitor: expiry is only checked on read.
type SimpleCache[K comparable, V any] struct {
	mu    sync.RWMutex
	items map[K]entry[V]
	now   func() time.Time
}

// Options controls construction of a SimpleCache.
type Options struct {
	// Now overrides the clock used for write times and expiry checks.
	// Defaults to time.Now.
	Now func() time.Time
}

// NewSimpleCache constructs an empty SimpleCache with the given options.
func NewSimpleCache[K comparable, V any](opts Options) *SimpleCache[K, V] {
	clock := opts.Now
	if clock == nil {
		clock = time.Now
	}
	return &SimpleCache[K, V]{
		items: make(map[K]entry[V]),
		now:   clock,
	}
}

// Get implements Cache.Get.
func (c *SimpleCache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var zero V
	e, ok := c.items[key]
	if !ok || e.expired(c.now()) {
		return zero, false
	}
	return e.value, true
}

// Set implements Cache.Set. An existing entry is replaced, never merged.
func (c *SimpleCache[K, V]) Set(key K, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ts := c.now()
	var exp time.Time
	if ttl > 0 {
		exp = ts.Add(ttl)
	}
	c.items[key] = entry[V]{
		value:     value,
		storedAt:  ts,
		expiresAt: exp,
	}
}

// Len implements Cache.Len. It counts only non-expired entries.
func (c *SimpleCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ts := c.now()
	count := 0
	for _, e := range c.items {
		if !e.expired(ts) {
			count++
		}
	}
	return count
}

// Range implements Cache.Range. fn runs under the read lock and must not
// call back into the cache.
func (c *SimpleCache[K, V]) Range(fn func(key K, value V, storedAt time.Time) bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ts := c.now()
	for k, e := range c.items {
		if e.expired(ts) {
			continue
		}
		if !fn(k, e.value, e.storedAt) {
			return
		}
	}
}

// Ensure SimpleCache implements Cache at compile time.
var _ Cache[string, any] = (*SimpleCache[string, any])(nil)
