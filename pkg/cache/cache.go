package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by Get when the key holds no value. Callers treat
// it as "unknown", not as a failure.
var ErrCacheMiss = errors.New("cache: key not found")

// Service is the small cache surface the application state layer needs.
// Values round-trip through JSON except plain strings, which are stored raw.
type Service interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
}
