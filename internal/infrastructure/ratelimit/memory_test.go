package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestMemoryLimiterQuota(t *testing.T) {
	l := NewMemoryLimiter(3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := l.Allow(ctx, "user-1")
		if err != nil {
			t.Fatalf("Allow() error = %v", err)
		}
		if !d.Allowed {
			t.Fatalf("request %d unexpectedly denied", i+1)
		}
		if d.Remaining != 3-(i+1) {
			t.Errorf("remaining = %d, want %d", d.Remaining, 3-(i+1))
		}
	}

	d, err := l.Allow(ctx, "user-1")
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if d.Allowed {
		t.Error("request over quota was allowed")
	}
	if d.RetryAfter <= 0 {
		t.Errorf("retry-after not set: %v", d.RetryAfter)
	}
}

func TestMemoryLimiterIsolatesKeys(t *testing.T) {
	l := NewMemoryLimiter(1, time.Minute)
	ctx := context.Background()

	if d, _ := l.Allow(ctx, "user-1"); !d.Allowed {
		t.Fatal("first request for user-1 denied")
	}
	if d, _ := l.Allow(ctx, "user-2"); !d.Allowed {
		t.Error("user-2 affected by user-1's quota")
	}
	if d, _ := l.Allow(ctx, "user-1"); d.Allowed {
		t.Error("user-1 over quota was allowed")
	}
}

func TestMemoryLimiterWindowReset(t *testing.T) {
	l := NewMemoryLimiter(1, time.Minute)
	ctx := context.Background()

	current := time.Now()
	l.now = func() time.Time { return current }

	if d, _ := l.Allow(ctx, "user-1"); !d.Allowed {
		t.Fatal("first request denied")
	}
	if d, _ := l.Allow(ctx, "user-1"); d.Allowed {
		t.Fatal("second request in window allowed")
	}

	current = current.Add(61 * time.Second)
	if d, _ := l.Allow(ctx, "user-1"); !d.Allowed {
		t.Error("request after window reset denied")
	}
}
