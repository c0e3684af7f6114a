package middleware

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"user_backend/internal/apperror"
	"user_backend/internal/logging"
)

// AbortWithError writes the JSON error body for err and stops the handler chain.
// Server-side failures are logged with their code and context.
func AbortWithError(c *gin.Context, err error) {
	status, resp := apperror.Resolve(err)
	if status >= http.StatusInternalServerError {
		logger := slog.Default().With(
			"request_id", logging.RequestID(c.Request.Context()),
			"method", c.Request.Method,
			"route", c.FullPath(),
		)
		apperror.LogError(logger, "request failed", err)
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, resp)
}

// Recovery turns panics into a 500 error body.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, recovered any) {
		AbortWithError(c, apperror.Internal(fmt.Errorf("panic: %v", recovered)))
	})
}
