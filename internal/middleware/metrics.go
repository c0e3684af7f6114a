package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"user_backend/internal/metrics"
)

const unmatchedRoute = "unmatched"

// Instrument records request count and latency per route template.
func Instrument(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		m.ObserveRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
