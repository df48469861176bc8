package cache

import (
	"context"
	"time"
)

// Cache stores rendered billing reports. Entries are namespaced by a
// generation counter; Invalidate bumps it so every older entry is orphaned
// at once and left to expire.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Generation(ctx context.Context) (int64, error)
	Invalidate(ctx context.Context) error
}
