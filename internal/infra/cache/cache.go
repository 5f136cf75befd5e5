// Package cache provides a simple in-memory TTL cache.
// Entries may carry their own TTL, and the clock is injectable so
// expiry can be driven by tests.
package cache

import (
	"sync"
	"time"
)

type entry[T any] struct {
	value     T
	expiresAt time.Time
}

// InMemory is a thread-safe in-memory cache with TTL.
type InMemory[T any] struct {
	mu    sync.RWMutex
	items map[string]entry[T]
	ttl   time.Duration
	now   func() time.Time
}

// Option configures an InMemory cache.
type Option func(*options)

type options struct {
	now     func() time.Time
	cleanup bool
}

// WithClock replaces time.Now as the source of the current time.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithoutCleanup disables the background sweeper. Expired entries are
// still invisible to Get; they are just not reclaimed until overwritten.
func WithoutCleanup() Option {
	return func(o *options) { o.cleanup = false }
}

// New creates a new in-memory cache with the given default TTL.
func New[T any](ttl time.Duration, opts ...Option) *InMemory[T] {
	o := options{now: time.Now, cleanup: true}
	for _, opt := range opts {
		opt(&o)
	}

	c := &InMemory[T]{
		items: make(map[string]entry[T]),
		ttl:   ttl,
		now:   o.now,
	}
	if o.cleanup && ttl > 0 {
		go c.cleanup()
	}
	return c
}

// Get retrieves a value from the cache. Returns false if not found or expired.
func (c *InMemory[T]) Get(key string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.items[key]
	if !ok || !c.now().Before(e.expiresAt) {
		var zero T
		return zero, false
	}
	return e.value, true
}

// Set stores a value in the cache with the configured TTL.
func (c *InMemory[T]) Set(key string, value T) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL stores a value that expires after ttl instead of the default.
func (c *InMemory[T]) SetWithTTL(key string, value T, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = entry[T]{
		value:     value,
		expiresAt: c.now().Add(ttl),
	}
}

// ExpiresAt returns when key expires, or false if it is absent or already expired.
func (c *InMemory[T]) ExpiresAt(key string) (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.items[key]
	if !ok || !c.now().Before(e.expiresAt) {
		return time.Time{}, false
	}
	return e.expiresAt, true
}

// Delete removes a value from the cache.
func (c *InMemory[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, key)
}

// cleanup periodically removes expired entries.
func (c *InMemory[T]) cleanup() {
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()

	for range ticker.C {
		c.mu.Lock()
		now := c.now()
		for k, v := range c.items {
			if !now.Before(v.expiresAt) {
				delete(c.items, k)
			}
		}
		c.mu.Unlock()
	}
}
