package cache

import (
	"sync"
	"time"
)

// Value is one cached value with an explicit last-refresh timestamp and TTL,
// refreshed through a fill function when stale. Callers that must not block
// on a failed refresh keep the previous value.
type Value[T any] struct {
	mu        sync.Mutex
	v         T
	refreshed time.Time
	ttl       time.Duration
}

// NewValue creates an empty cache slot; the first Get always fills.
func NewValue[T any](ttl time.Duration) *Value[T] {
	return &Value[T]{ttl: ttl}
}

// Get returns the cached value, refreshing via fill when the TTL elapsed.
// On fill error the stale value is returned alongside the error.
func (c *Value[T]) Get(fill func() (T, error)) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.refreshed.IsZero() && time.Since(c.refreshed) < c.ttl {
		return c.v, nil
	}
	v, err := fill()
	if err != nil {
		return c.v, err
	}
	c.v = v
	c.refreshed = time.Now()
	return c.v, nil
}

// Invalidate forces the next Get to refresh.
func (c *Value[T]) Invalidate() {
	c.mu.Lock()
	c.refreshed = time.Time{}
	c.mu.Unlock()
}
