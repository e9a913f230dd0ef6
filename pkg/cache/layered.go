package cache

import (
	"context"
	"errors"
	"time"
)

// LayeredCache fronts Redis with a small in-process cache. Reads prefer the
// memory layer and promote Redis hits into it; writes go through to both.
// Existence checks consult Redis only, since the memory layer is a subset.
type LayeredCache struct {
	memory *MemoryCache
	redis  *RedisCache
}

func NewLayeredCache(redisCache *RedisCache, opts ...LayeredOption) *LayeredCache {
	cfg := &LayeredConfig{MemoryMaxSize: 1000}
	for _, opt := range opts {
		opt(cfg)
	}
	return &LayeredCache{
		memory: NewMemoryCache(WithMemoryMaxSize(cfg.MemoryMaxSize)),
		redis:  redisCache,
	}
}

func (c *LayeredCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if err := c.redis.Set(ctx, key, value, expiration); err != nil {
		return err
	}
	// Memory layer failure is not fatal, Redis already holds the value.
	_ = c.memory.Set(ctx, key, value, expiration)
	return nil
}

func (c *LayeredCache) Get(ctx context.Context, key string, dest interface{}) error {
	if err := c.memory.Get(ctx, key, dest); err == nil {
		return nil
	}
	if err := c.redis.Get(ctx, key, dest); err != nil {
		return err
	}
	_ = c.memory.Set(ctx, key, dest, time.Minute)
	return nil
}

func (c *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	_ = c.memory.Delete(ctx, keys...)
	return c.redis.Delete(ctx, keys...)
}

func (c *LayeredCache) Exists(ctx context.Context, key string) (bool, error) {
	return c.redis.Exists(ctx, key)
}

func (c *LayeredCache) Close() error {
	memErr := c.memory.Close()
	redisErr := c.redis.Close()
	return errors.Join(memErr, redisErr)
}
