package apperror

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantMessage string
		wantDetails Details
	}{
		{
			name:        "not found with details",
			err:         NotFound("User not found", Details{"user_id": int64(7)}),
			wantStatus:  http.StatusNotFound,
			wantMessage: "User not found",
			wantDetails: Details{"user_id": int64(7)},
		},
		{
			name:        "already exists default message",
			err:         AlreadyExists("", nil),
			wantStatus:  http.StatusConflict,
			wantMessage: "Resource already exists",
		},
		{
			name:        "authentication",
			err:         Authentication("Invalid phone or password"),
			wantStatus:  http.StatusUnauthorized,
			wantMessage: "Invalid phone or password",
		},
		{
			name:        "permission denied",
			err:         PermissionDenied("nope"),
			wantStatus:  http.StatusForbidden,
			wantMessage: "nope",
		},
		{
			name:        "rate limit",
			err:         RateLimit("Too many login attempts", nil),
			wantStatus:  http.StatusTooManyRequests,
			wantMessage: "Too many login attempts",
		},
		{
			name:        "validation",
			err:         Validation("", Details{"phone_number": "phone"}),
			wantStatus:  http.StatusUnprocessableEntity,
			wantMessage: "Validation error",
			wantDetails: Details{"phone_number": "phone"},
		},
		{
			name:        "database error hides details",
			err:         Database("insert user", errors.New("connection reset")),
			wantStatus:  http.StatusInternalServerError,
			wantMessage: "Database error",
		},
		{
			name:        "external service",
			err:         ExternalService("redis", errors.New("dial tcp")),
			wantStatus:  http.StatusServiceUnavailable,
			wantMessage: "External service unavailable",
		},
		{
			name:        "plain error is internal",
			err:         errors.New("boom"),
			wantStatus:  http.StatusInternalServerError,
			wantMessage: "Internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, resp := Resolve(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantMessage, resp.Message)
			assert.Equal(t, tt.wantDetails, resp.Details)
		})
	}
}

func TestCode_SurvivesWrapping(t *testing.T) {
	base := NotFound("User not found", nil)
	wrapped := oops.With("caller", "service").Wrap(base)

	assert.Equal(t, CodeNotFound, Code(wrapped))
	assert.True(t, Is(wrapped, CodeNotFound))
	assert.False(t, Is(wrapped, CodeAlreadyExists))
	assert.False(t, Is(nil, CodeNotFound))
	assert.Empty(t, Code(errors.New("plain")))
}

func TestDatabase_PreservesCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Database("insert user", cause)

	require.ErrorIs(t, err, cause)
	assert.Equal(t, CodeDatabase, Code(err))
}

func TestLogError(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	LogError(logger, "request failed", Database("list users", errors.New("timeout")))
	assert.Contains(t, buf.String(), `"code":"DATABASE_ERROR"`)
	assert.Contains(t, buf.String(), `"operation":"list users"`)

	buf.Reset()
	LogError(logger, "request failed", errors.New("plain"))
	assert.Contains(t, buf.String(), `"error":"plain"`)
	assert.NotContains(t, buf.String(), `"code"`)
}
