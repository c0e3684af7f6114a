package middleware

import (
	"context"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"user_backend/internal/apperror"
	"user_backend/internal/metrics"
)

// Limiter counts hits per key.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, time.Duration, error)
	Limit() int
}

// RateLimit rejects clients exceeding the limiter's quota for scope with 429.
// Requests pass when the limiter itself fails.
func RateLimit(limiter Limiter, scope string, m *metrics.Metrics, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, retryAfter, err := limiter.Allow(c.Request.Context(), scope+":"+c.ClientIP())
		if err != nil {
			apperror.LogError(logger, "rate limiter unavailable", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limiter.Limit()))
		if !allowed {
			m.RateLimited()
			seconds := max(int(math.Ceil(retryAfter.Seconds())), 1)
			c.Header("Retry-After", strconv.Itoa(seconds))
			AbortWithError(c, apperror.RateLimit("Too many requests", apperror.Details{"retry_after": seconds}))
			return
		}

		c.Next()
	}
}
