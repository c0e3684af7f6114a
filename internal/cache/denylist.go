package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"user_backend/internal/apperror"
)

const revokedKeyPrefix = "revoked:jti:"

// TokenDenylist records revoked token ids until the tokens would have expired anyway.
type TokenDenylist struct {
	client redis.Cmdable
	now    func() time.Time
}

// NewTokenDenylist creates a new TokenDenylist
func NewTokenDenylist(client redis.Cmdable) *TokenDenylist {
	return &TokenDenylist{client: client, now: time.Now}
}

// Revoke marks jti as revoked until expiresAt. Already expired tokens are ignored.
func (d *TokenDenylist) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(d.now())
	if jti == "" || ttl <= 0 {
		return nil
	}
	if err := d.client.Set(ctx, revokedKeyPrefix+jti, 1, ttl).Err(); err != nil {
		return apperror.ExternalService("redis", err)
	}
	return nil
}

// IsRevoked reports whether jti has been revoked.
func (d *TokenDenylist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}
	n, err := d.client.Exists(ctx, revokedKeyPrefix+jti).Result()
	if err != nil {
		return false, apperror.ExternalService("redis", err)
	}
	return n > 0, nil
}
