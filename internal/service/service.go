package service

import (
	"context"
	"time"
)

// TaskPublisher enqueues background tasks.
type TaskPublisher interface {
	Enqueue(ctx context.Context, name string, payload any) error
}

// TokenRevoker tracks revoked token ids.
type TokenRevoker interface {
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(ctx context.Context, password string) (string, error)
	Verify(ctx context.Context, password, hash string) bool
	DummyVerify(ctx context.Context, password string)
}

// AuthRecorder receives authentication outcomes for metrics.
type AuthRecorder interface {
	AuthEvent(event string, err error)
}

type noopRecorder struct{}

func (noopRecorder) AuthEvent(string, error) {}
