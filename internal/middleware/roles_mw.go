package middleware

import (
	"github.com/gin-gonic/gin"

	"user_backend/internal/model"
	"user_backend/internal/service"
)

// RoleMiddleware creates a middleware to check for specific user roles
func RoleMiddleware(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := AuthUser(c)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		if _, err := service.RequireRole(user, allowedRoles...); err != nil {
			AbortWithError(c, err)
			return
		}

		c.Next()
	}
}

// AdminMiddleware checks if the user is an admin
func AdminMiddleware() gin.HandlerFunc {
	return RoleMiddleware(model.RoleAdmin)
}

// UserMiddleware allows both users and admins
func UserMiddleware() gin.HandlerFunc {
	return RoleMiddleware(model.RoleUser, model.RoleAdmin)
}
