package service

import (
	"context"
	"errors"
	"time"

	"user_backend/internal/apperror"
	"user_backend/internal/model"
	"user_backend/internal/repository"
	"user_backend/internal/utils"
)

// AccessControl resolves the principal of a request and enforces roles.
type AccessControl struct {
	tokens  *TokenService
	users   repository.UserRepository
	revoker TokenRevoker
}

// NewAccessControl creates a new AccessControl
func NewAccessControl(tokens *TokenService, users repository.UserRepository, revoker TokenRevoker) *AccessControl {
	return &AccessControl{tokens: tokens, users: users, revoker: revoker}
}

// Authenticate resolves the user behind an Authorization header value.
func (a *AccessControl) Authenticate(ctx context.Context, header string) (*model.User, *utils.Claims, error) {
	claims, err := a.tokens.PayloadFromBearerHeader(header)
	if err != nil {
		return nil, nil, err
	}
	user, err := a.CurrentUser(ctx, claims)
	if err != nil {
		return nil, nil, err
	}
	return user, claims, nil
}

// CurrentUser resolves the user an access token was issued to.
func (a *AccessControl) CurrentUser(ctx context.Context, claims *utils.Claims) (*model.User, error) {
	if _, err := RequireType(claims, model.TokenTypeAccess); err != nil {
		return nil, err
	}
	userID, err := SubjectID(claims)
	if err != nil {
		return nil, err
	}

	revoked, err := a.revoker.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, apperror.Authentication("Token has been revoked")
	}

	user, err := a.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.Authentication("Invalid token (user not found)")
		}
		return nil, err
	}
	return user, nil
}

// RequireAdmin returns user when it holds the admin role.
func RequireAdmin(user *model.User) (*model.User, error) {
	if !user.IsAdmin() {
		return nil, apperror.PermissionDenied("You are not authorized to perform this action")
	}
	return user, nil
}

// RequireRole returns user when its role is one of roles.
func RequireRole(user *model.User, roles ...string) (*model.User, error) {
	if user != nil {
		for _, role := range roles {
			if user.Role == role {
				return user, nil
			}
		}
	}
	return nil, apperror.PermissionDenied("You are not authorized to perform this action")
}

func expiry(claims *utils.Claims) time.Time {
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}
