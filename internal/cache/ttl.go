// Package cache provides a TTL cache with single-flight refresh: many
// concurrent callers asking for the same key while it's cold collapse
// into one upstream fetch.
package cache

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// entry is one cached value plus its expiry.
type entry struct {
	value     interface{}
	err       error
	expiresAt time.Time
}

// TTLCache is a generic, concurrency-safe cache where every key carries
// its own expiry and refreshes are deduplicated across goroutines.
type TTLCache struct {
	mu    sync.RWMutex
	items map[string]entry
	group singleflight.Group
	ttl   time.Duration
}

// New creates a TTLCache whose entries expire after ttl; only SetWithTTL
// stores an entry with a different lifetime.
func New(ttl time.Duration) *TTLCache {
	return &TTLCache{
		items: make(map[string]entry),
		ttl:   ttl,
	}
}

// Get returns the cached value for key if present and unexpired.
func (c *TTLCache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.items[key]
	if !ok || time.Now().After(e.expiresAt) {
		return nil, false
	}
	return e.value, true
}

// Set stores value for key with the cache's default TTL.
func (c *TTLCache) Set(key string, value interface{}) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL stores value for key with a custom TTL.
func (c *TTLCache) SetWithTTL(key string, value interface{}, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = entry{value: value, expiresAt: time.Now().Add(ttl)}
}

// GetOrFill returns the cached value for key, or calls fill exactly once
// across all concurrent callers racing on the same key, caching its
// result (success or error) for the cache's TTL. A failed fill is cached
// too — this deliberately suppresses a thundering herd against a source
// that's currently erroring, at the cost of serving that failure back to
// callers for up to one TTL window.
func (c *TTLCache) GetOrFill(key string, fill func() (interface{}, error)) (interface{}, error) {
	if v, ok := c.Get(key); ok {
		if e, isErr := v.(cachedError); isErr {
			return nil, e.err
		}
		return v, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		// Re-check: another goroutine may have filled it while we waited
		// to enter Do for a *different* in-flight key collision window.
		if v, ok := c.Get(key); ok {
			if e, isErr := v.(cachedError); isErr {
				return nil, e.err
			}
			return v, nil
		}

		result, ferr := fill()
		if ferr != nil {
			c.Set(key, cachedError{err: ferr})
			return nil, ferr
		}
		c.Set(key, result)
		return result, nil
	})

	return v, err
}

// cachedError wraps a failed fill so it can be stored in the same map as
// successful values without widening entry's type to `any | error`.
type cachedError struct {
	err error
}

// Delete removes key's cached entry, if any.
func (c *TTLCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Len returns the number of entries currently stored, expired or not.
func (c *TTLCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
