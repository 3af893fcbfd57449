package cache

import (
	"context"
	"time"
)

// ListingKey fronts the full published-video listing. Processing completion
// and asset deletion both invalidate it; there is no per-video entry.
const ListingKey = "video:list:published"

// Cache is a byte-payload cache with TTL semantics.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Delete(ctx context.Context, key string)
	Close() error
}
