// Package ratelimit provides a pluggable request rate limiter keyed by
// principal. The quota applies per fixed rolling window; implementations back
// the counter with Redis or process memory.
package ratelimit

import (
	"context"
	"time"
)

// Decision is the outcome of a limit check.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter answers whether one more request is allowed under key's quota.
// A hit is consumed even when the answer is no; window edges are fixed, so
// an off-by-one burst at the boundary is accepted.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}
