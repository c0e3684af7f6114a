package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"user_backend/internal/apperror"
	"user_backend/internal/model"
)

func TestAccessControl_Authenticate(t *testing.T) {
	ctx := context.Background()
	tokens := newTestTokenService(t)

	t.Run("resolves user", func(t *testing.T) {
		users := new(mockUserRepository)
		users.On("FindByID", mock.Anything, int64(9)).Return(&model.User{ID: 9, Role: model.RoleUser}, nil)
		ac := NewAccessControl(tokens, users, newMemoryRevoker())

		access, err := tokens.IssueAccess(9, model.RoleUser)
		require.NoError(t, err)

		user, claims, err := ac.Authenticate(ctx, "Bearer "+access)
		require.NoError(t, err)
		assert.Equal(t, int64(9), user.ID)
		assert.Equal(t, "9", claims.Subject)
	})

	t.Run("refresh token is not accepted", func(t *testing.T) {
		ac := NewAccessControl(tokens, new(mockUserRepository), newMemoryRevoker())
		refresh, err := tokens.IssueRefresh(9, model.RoleUser)
		require.NoError(t, err)

		_, _, err = ac.Authenticate(ctx, "Bearer "+refresh)
		require.Error(t, err)
		_, resp := apperror.Resolve(err)
		assert.Equal(t, `Invalid token type "refresh" expected "access"`, resp.Message)
	})

	t.Run("revoked token", func(t *testing.T) {
		revoker := newMemoryRevoker()
		ac := NewAccessControl(tokens, new(mockUserRepository), revoker)
		access, err := tokens.IssueAccess(9, model.RoleUser)
		require.NoError(t, err)
		claims, err := tokens.Decode(access)
		require.NoError(t, err)
		require.NoError(t, revoker.Revoke(ctx, claims.ID, claims.ExpiresAt.Time))

		_, _, err = ac.Authenticate(ctx, "Bearer "+access)
		assert.True(t, apperror.Is(err, apperror.CodeAuthentication))
	})

	t.Run("deleted user", func(t *testing.T) {
		users := new(mockUserRepository)
		users.On("FindByID", mock.Anything, int64(9)).Return(nil, wrappedNotFound())
		ac := NewAccessControl(tokens, users, newMemoryRevoker())
		access, err := tokens.IssueAccess(9, model.RoleUser)
		require.NoError(t, err)

		_, _, err = ac.Authenticate(ctx, "Bearer "+access)
		require.Error(t, err)
		_, resp := apperror.Resolve(err)
		assert.Equal(t, "Invalid token (user not found)", resp.Message)
	})

	t.Run("missing header", func(t *testing.T) {
		ac := NewAccessControl(tokens, new(mockUserRepository), newMemoryRevoker())
		_, _, err := ac.Authenticate(ctx, "")
		assert.True(t, apperror.Is(err, apperror.CodeAuthentication))
	})
}

func TestRequireAdmin(t *testing.T) {
	admin := &model.User{ID: 1, Role: model.RoleAdmin}
	got, err := RequireAdmin(admin)
	require.NoError(t, err)
	assert.Same(t, admin, got)

	_, err = RequireAdmin(&model.User{ID: 2, Role: model.RoleUser})
	require.Error(t, err)
	status, resp := apperror.Resolve(err)
	assert.Equal(t, 403, status)
	assert.Equal(t, "You are not authorized to perform this action", resp.Message)
}

func TestRequireRole(t *testing.T) {
	user := &model.User{Role: model.RoleUser}
	_, err := RequireRole(user, model.RoleUser, model.RoleAdmin)
	assert.NoError(t, err)

	_, err = RequireRole(user, model.RoleAdmin)
	assert.True(t, apperror.Is(err, apperror.CodePermissionDenied))

	_, err = RequireRole(nil, model.RoleUser)
	assert.Error(t, err)
}
