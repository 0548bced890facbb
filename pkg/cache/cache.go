// Package cache provides a small in-memory TTL cache. All operations are
// safe for concurrent use; iteration never happens while holding entries,
// so there is no iteration-while-mutating hazard for callers.
package cache

import (
	"sync"
	"time"
)

// Cache maps keys to timestamped values with a fixed TTL.
type Cache[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]entry[V]
	ttl     time.Duration

	clock func() time.Time
}

type entry[V any] struct {
	value    V
	storedAt time.Time
}

// New creates a cache with the given TTL.
func New[K comparable, V any](ttl time.Duration) *Cache[K, V] {
	return &Cache[K, V]{
		entries: make(map[K]entry[V]),
		ttl:     ttl,
		clock:   time.Now,
	}
}

// Get returns the cached value and its storage timestamp if one exists and
// has not expired.
func (c *Cache[K, V]) Get(key K) (V, time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stored, ok := c.entries[key]
	if !ok || c.clock().Sub(stored.storedAt) > c.ttl {
		var zero V
		return zero, time.Time{}, false
	}
	return stored.value, stored.storedAt, true
}

// Set stores a value, overwriting any previous entry for the key.
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry[V]{value: value, storedAt: c.clock()}
}

// Delete removes the entry for the key, if any.
func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
}

// Cleanup removes all expired entries. Call it from a caller-owned ticker;
// the cache deliberately starts no goroutines of its own.
func (c *Cache[K, V]) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock()
	for key, stored := range c.entries {
		if now.Sub(stored.storedAt) > c.ttl {
			delete(c.entries, key)
		}
	}
}

// Len returns the number of entries, counting expired ones not yet cleaned.
func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
