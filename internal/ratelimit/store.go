package ratelimit

import (
	"context"
	"time"
)

// CounterStore is the injected fixed-window counter. Increment atomically
// bumps the counter for key, starting a fresh window when none is active,
// and returns the post-increment count together with the instant the
// window resets. Single-instance deployments use MemoryStore; shared
// deployments use RedisStore.
type CounterStore interface {
	Increment(ctx context.Context, key string, window time.Duration) (count int64, resetAt time.Time, err error)
}
