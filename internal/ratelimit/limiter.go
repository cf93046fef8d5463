// Package ratelimit implements per-key fixed-window request throttling on
// top of an injected counter store.
package ratelimit

import (
	"context"
	"math"
	"time"
)

// Limiter enforces at most max requests per key inside one window. The
// scope keeps independently budgeted limiters (login, forgot-password)
// from sharing counters even for identical caller keys.
type Limiter struct {
	store  CounterStore
	scope  string
	window time.Duration
	max    int64
}

// Decision is the outcome of a single Allow call.
type Decision struct {
	Allowed    bool
	Count      int64
	ResetAt    time.Time
	RetryAfter time.Duration
}

// RetryAfterSeconds rounds the wait up to whole seconds, never below 1,
// matching the Retry-After response header semantics.
func (d Decision) RetryAfterSeconds() int {
	secs := int(math.Ceil(d.RetryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}

func New(store CounterStore, scope string, window time.Duration, max int64) *Limiter {
	return &Limiter{store: store, scope: scope, window: window, max: max}
}

// Allow counts the request against key and reports whether it may proceed.
// Store failures propagate so callers can fail closed.
func (l *Limiter) Allow(ctx context.Context, key string) (Decision, error) {
	count, resetAt, err := l.store.Increment(ctx, l.scope+":"+key, l.window)
	if err != nil {
		return Decision{}, err
	}

	d := Decision{Allowed: count <= l.max, Count: count, ResetAt: resetAt}
	if !d.Allowed {
		d.RetryAfter = time.Until(resetAt)
	}
	return d, nil
}
