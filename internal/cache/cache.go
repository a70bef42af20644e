package cache

import (
	"context"
	"time"
)

// Cache is a minimal string cache with per-key expiry. A missing key is
// reported as an empty value with a nil error.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, expiration time.Duration) error
	Delete(ctx context.Context, key string) error
}
