package ratelimit

import (
	"context"
	"errors"
	"time"
)

// ErrStoreUnavailable wraps every failure to reach the counter store.
var ErrStoreUnavailable = errors.New("ratelimit: store unavailable")

// Store is the expiring counter store. A missing key means zero attempts.
type Store interface {
	// Get returns the current count, 0 when absent.
	Get(ctx context.Context, key string) (int64, error)
	// Incr atomically increments key and returns the post-increment count and
	// the remaining TTL. The window TTL is applied only when the key is created.
	Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	// TTL returns the remaining lifetime, 0 when absent. It never extends it.
	TTL(ctx context.Context, key string) (time.Duration, error)
	Delete(ctx context.Context, key string) error
}
