// Package apperror defines the application error taxonomy on top of samber/oops.
// Every domain error carries a machine code, a public message and optional details;
// the HTTP layer maps the code to a status with Resolve.
package apperror

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/samber/oops"
)

// Error codes.
const (
	CodeNotFound         = "NOT_FOUND"
	CodeAlreadyExists    = "ALREADY_EXISTS"
	CodeValidation       = "VALIDATION_ERROR"
	CodeBadRequest       = "BAD_REQUEST"
	CodeAuthentication   = "AUTHENTICATION_ERROR"
	CodePermissionDenied = "PERMISSION_DENIED_ERROR"
	CodeRateLimit        = "RATE_LIMIT_EXCEEDED"
	CodeExternalService  = "EXTERNAL_SERVICE_ERROR"
	CodeDatabase         = "DATABASE_ERROR"
	CodeInternal         = "INTERNAL_ERROR"
)

type kind struct {
	status  int
	message string
}

var kinds = map[string]kind{
	CodeNotFound:         {http.StatusNotFound, "Resource not found"},
	CodeAlreadyExists:    {http.StatusConflict, "Resource already exists"},
	CodeValidation:       {http.StatusUnprocessableEntity, "Validation error"},
	CodeBadRequest:       {http.StatusBadRequest, "Bad request"},
	CodeAuthentication:   {http.StatusUnauthorized, "Authentication failed"},
	CodePermissionDenied: {http.StatusForbidden, "Insufficient permissions"},
	CodeRateLimit:        {http.StatusTooManyRequests, "Rate limit exceeded"},
	CodeExternalService:  {http.StatusServiceUnavailable, "External service unavailable"},
	CodeDatabase:         {http.StatusInternalServerError, "Database error"},
	CodeInternal:         {http.StatusInternalServerError, "Internal server error"},
}

// Details is the optional structured payload attached to an error.
type Details map[string]any

func build(code, message string, details Details) oops.OopsErrorBuilder {
	if message == "" {
		message = kinds[code].message
	}
	b := oops.Code(code).Public(message)
	for k, v := range details {
		b = b.With(k, v)
	}
	return b
}

func newError(code, message string, details Details) error {
	return build(code, message, details).New(message)
}

// NotFound reports a missing resource (404).
func NotFound(message string, details Details) error {
	return newError(CodeNotFound, message, details)
}

// AlreadyExists reports a uniqueness conflict (409).
func AlreadyExists(message string, details Details) error {
	return newError(CodeAlreadyExists, message, details)
}

// Validation reports invalid input that was well-formed (422).
func Validation(message string, details Details) error {
	return newError(CodeValidation, message, details)
}

// BadRequest reports a malformed request (400).
func BadRequest(message string, details Details) error {
	return newError(CodeBadRequest, message, details)
}

// Authentication reports missing or invalid credentials (401).
func Authentication(message string) error {
	return newError(CodeAuthentication, message, nil)
}

// PermissionDenied reports an authenticated principal lacking rights (403).
func PermissionDenied(message string) error {
	return newError(CodePermissionDenied, message, nil)
}

// RateLimit reports too many requests (429).
func RateLimit(message string, details Details) error {
	return newError(CodeRateLimit, message, details)
}

// ExternalService wraps a failure of a collaborator such as Redis or S3 (503).
func ExternalService(service string, err error) error {
	return build(CodeExternalService, "", Details{"service": service}).Wrap(err)
}

// Database wraps a store failure (500).
func Database(operation string, err error) error {
	return build(CodeDatabase, "", nil).With("operation", operation).Wrap(err)
}

// Internal wraps an unexpected failure (500).
func Internal(err error) error {
	return build(CodeInternal, "", nil).Wrap(err)
}

// Code returns the error code carried by err, or "" when err is not coded.
func Code(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	code, _ := oopsErr.Code().(string)
	return code
}

// Is reports whether err carries the given code.
func Is(err error, code string) bool {
	return err != nil && Code(err) == code
}

// Response is the JSON error body returned to clients.
type Response struct {
	Message string  `json:"message"`
	Details Details `json:"details"`
}

// Resolve maps err to an HTTP status and response body. Server-side failures never
// expose their details.
func Resolve(err error) (int, Response) {
	code := Code(err)
	k, ok := kinds[code]
	if !ok {
		k = kinds[CodeInternal]
	}
	resp := Response{Message: k.message}
	if k.status >= http.StatusInternalServerError {
		return k.status, resp
	}

	oopsErr, _ := oops.AsOops(err)
	if public := oopsErr.Public(); public != "" {
		resp.Message = public
	}
	if ctx := oopsErr.Context(); len(ctx) > 0 {
		resp.Details = Details(ctx)
	}
	return k.status, resp
}

// LogError logs err with its code and context when it is an oops error.
func LogError(logger *slog.Logger, msg string, err error) {
	if oopsErr, ok := oops.AsOops(err); ok {
		attrs := []any{"error", oopsErr.Error()}
		if code := oopsErr.Code(); code != nil {
			attrs = append(attrs, "code", fmt.Sprint(code))
		}
		if ctx := oopsErr.Context(); len(ctx) > 0 {
			attrs = append(attrs, "context", ctx)
		}
		logger.Error(msg, attrs...)
		return
	}
	logger.Error(msg, "error", err)
}
