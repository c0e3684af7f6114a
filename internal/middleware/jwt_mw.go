package middleware

import (
	"github.com/gin-gonic/gin"

	"user_backend/internal/apperror"
	"user_backend/internal/model"
	"user_backend/internal/service"
	"user_backend/internal/utils"
)

const (
	AuthUserKey   = "authUser"
	AuthClaimsKey = "authClaims"
)

// JWTAuthMiddleware resolves the bearer access token to a user and stores the
// user and its claims in the context.
func JWTAuthMiddleware(ac *service.AccessControl) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, claims, err := ac.Authenticate(c.Request.Context(), c.GetHeader("Authorization"))
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Set(AuthUserKey, user)
		c.Set(AuthClaimsKey, claims)

		c.Next()
	}
}

// AuthUser returns the authenticated user set by JWTAuthMiddleware.
func AuthUser(c *gin.Context) (*model.User, error) {
	val, exists := c.Get(AuthUserKey)
	if !exists {
		return nil, apperror.Authentication("Not authenticated")
	}
	user, ok := val.(*model.User)
	if !ok || user == nil {
		return nil, apperror.Authentication("Not authenticated")
	}
	return user, nil
}

// AuthClaims returns the access token claims set by JWTAuthMiddleware.
func AuthClaims(c *gin.Context) (*utils.Claims, error) {
	val, exists := c.Get(AuthClaimsKey)
	if !exists {
		return nil, apperror.Authentication("Not authenticated")
	}
	claims, ok := val.(*utils.Claims)
	if !ok || claims == nil {
		return nil, apperror.Authentication("Not authenticated")
	}
	return claims, nil
}
