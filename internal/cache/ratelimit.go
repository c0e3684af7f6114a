package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"user_backend/internal/apperror"
)

const rateLimitKeyPrefix = "ratelimit:"

// RateLimiter is a fixed-window request counter.
type RateLimiter struct {
	client redis.Cmdable
	limit  int
	window time.Duration
}

// NewRateLimiter allows limit hits per key within each window.
func NewRateLimiter(client redis.Cmdable, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{client: client, limit: limit, window: window}
}

// Allow records a hit for key. When the limit is exceeded it returns false and the
// time until the window resets.
func (l *RateLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	key = rateLimitKeyPrefix + key

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, apperror.ExternalService("redis", err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return false, 0, apperror.ExternalService("redis", err)
		}
	}
	if count <= int64(l.limit) {
		return true, 0, nil
	}

	ttl, err := l.client.TTL(ctx, key).Result()
	if err != nil {
		return false, 0, apperror.ExternalService("redis", err)
	}
	if ttl < 0 {
		// counter without expiry would block the key forever
		_ = l.client.Expire(ctx, key, l.window).Err()
		ttl = l.window
	}
	return false, ttl, nil
}

// Limit returns the configured number of hits per window.
func (l *RateLimiter) Limit() int {
	return l.limit
}

// Window returns the configured window length.
func (l *RateLimiter) Window() time.Duration {
	return l.window
}
