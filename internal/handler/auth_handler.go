package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"user_backend/internal/middleware"
	"user_backend/internal/model"
	"user_backend/internal/service"
)

// AuthHandler handles authentication requests
type AuthHandler struct {
	service service.AuthService
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(s service.AuthService) *AuthHandler {
	return &AuthHandler{service: s}
}

func (h *AuthHandler) Signup(c *gin.Context) {
	var req model.SignupRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.service.Register(c.Request.Context(), req.PhoneNumber, req.Password, req.FullName)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	pair, err := h.service.Login(c.Request.Context(), req.PhoneNumber, req.Password)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, pair)
}

// Refresh exchanges a refresh token for a new access token. An empty body is
// treated as a missing token.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req model.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		middleware.AbortWithError(c, bindingError(err))
		return
	}

	pair, err := h.service.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, pair)
}

// Logout revokes the caller's access token and, when given, its refresh token.
// The body is optional.
func (h *AuthHandler) Logout(c *gin.Context) {
	claims, err := middleware.AuthClaims(c)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	var req model.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		middleware.AbortWithError(c, bindingError(err))
		return
	}

	if err := h.service.Logout(c.Request.Context(), claims, req.RefreshToken); err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RegisterAuthRoutes registers auth routes. loginGuards run before the login
// handler.
func (h *AuthHandler) RegisterAuthRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc, loginGuards ...gin.HandlerFunc) {
	authGroup := rg.Group("/auth")
	{
		authGroup.POST("/signup", h.Signup)
		authGroup.POST("/login", append(loginGuards, h.Login)...)
		authGroup.POST("/refresh", h.Refresh)
		authGroup.POST("/logout", authMW, h.Logout)
	}
}
