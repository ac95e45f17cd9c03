package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter counts hits in Redis so the quota holds across replicas.
// INCR creates the key on first hit; EXPIRE then fixes the window.
type RedisLimiter struct {
	client *redis.Client
	quota  int
	period time.Duration
	prefix string
}

// NewRedisLimiter creates a limiter backed by the given Redis client.
func NewRedisLimiter(client *redis.Client, quota int, period time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		quota:  quota,
		period: period,
		prefix: "ratelimit:",
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	redisKey := l.prefix + key

	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit incr: %w", err)
	}

	if count == 1 {
		if err := l.client.Expire(ctx, redisKey, l.period).Err(); err != nil {
			return Decision{}, fmt.Errorf("ratelimit expire: %w", err)
		}
	}

	if count > int64(l.quota) {
		ttl, err := l.client.PTTL(ctx, redisKey).Result()
		if err != nil || ttl < 0 {
			// Key without expiry, re-arm the window.
			_ = l.client.Expire(ctx, redisKey, l.period).Err()
			ttl = l.period
		}
		return Decision{Allowed: false, RetryAfter: ttl}, nil
	}

	return Decision{Allowed: true, Remaining: l.quota - int(count)}, nil
}
