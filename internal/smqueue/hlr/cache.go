package hlr

import (
	"sync"
	"time"
)

// cacheEntry wraps a value with expiration metadata
type cacheEntry[T any] struct {
	value     T
	expiresAt time.Time
}

func (e *cacheEntry[T]) expired() bool {
	return time.Now().After(e.expiresAt)
}

// ttlCache is a generic in-memory cache with TTL support and automatic
// cleanup. Lookups that hit an expired entry behave as misses.
type ttlCache[K comparable, V any] struct {
	mu     sync.RWMutex
	items  map[K]*cacheEntry[V]
	stopCh chan struct{}
}

// newTTLCache creates a cache whose cleanup goroutine runs every
// cleanupInterval to remove expired entries.
func newTTLCache[K comparable, V any](cleanupInterval time.Duration) *ttlCache[K, V] {
	c := &ttlCache[K, V]{
		items:  make(map[K]*cacheEntry[V]),
		stopCh: make(chan struct{}),
	}
	go c.cleanupLoop(cleanupInterval)
	return c
}

// Set stores a value with the given TTL
func (c *ttlCache[K, V]) Set(key K, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = &cacheEntry[V]{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
}

// Get retrieves a value by key. Returns the value and true if found and
// not expired.
func (c *ttlCache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.items[key]
	if !exists || entry.expired() {
		var zero V
		return zero, false
	}
	return entry.value, true
}

// Delete removes a key from the cache
func (c *ttlCache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Len returns the number of non-expired items
func (c *ttlCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	count := 0
	for _, entry := range c.items {
		if !entry.expired() {
			count++
		}
	}
	return count
}

// Close stops the cleanup goroutine
func (c *ttlCache[K, V]) Close() {
	close(c.stopCh)
}

func (c *ttlCache[K, V]) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanup()
		case <-c.stopCh:
			return
		}
	}
}

func (c *ttlCache[K, V]) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, entry := range c.items {
		if entry.expired() {
			delete(c.items, key)
		}
	}
}
