package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter is a process-local fixed-window limiter used when no Redis
// address is configured. Quotas are not shared across replicas.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	quota   int
	period  time.Duration
	now     func() time.Time
}

// NewMemoryLimiter creates a limiter allowing quota requests per period.
func NewMemoryLimiter(quota int, period time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		windows: make(map[string]*window),
		quota:   quota,
		period:  period,
		now:     time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || now.After(w.resetAt) {
		w = &window{resetAt: now.Add(l.period)}
		l.windows[key] = w
		l.sweepLocked(now)
	}

	w.count++
	if w.count > l.quota {
		return Decision{Allowed: false, RetryAfter: w.resetAt.Sub(now)}, nil
	}
	return Decision{Allowed: true, Remaining: l.quota - w.count}, nil
}

// sweepLocked drops expired windows so the map does not grow unbounded.
func (l *MemoryLimiter) sweepLocked(now time.Time) {
	for k, w := range l.windows {
		if now.After(w.resetAt) {
			delete(l.windows, k)
		}
	}
}
