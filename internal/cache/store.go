package cache

import (
	"context"
	"time"
)

// Store is the shared key/value interface used for small, expiring state such
// as the device-token registry. Redis backs it when configured; the primary
// database is the fallback.
type Store interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, keys ...string) error
}
