package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"user_backend/internal/config"
	"user_backend/internal/metrics"
	"user_backend/internal/middleware"
	"user_backend/internal/service"
)

// RouterDeps groups everything the HTTP layer needs.
type RouterDeps struct {
	Config   *config.Config
	Auth     service.AuthService
	Users    service.UserService
	Access   *service.AccessControl
	Limiter  middleware.Limiter
	Metrics  *metrics.Metrics
	Registry *prometheus.Registry
	Health   map[string]CheckFunc
	Logger   *slog.Logger
}

// NewRouter builds the gin engine with the middleware chain and all routes.
func NewRouter(deps RouterDeps) *gin.Engine {
	RegisterValidators()
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	r := gin.New()
	r.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.RequestLogger(deps.Logger),
		middleware.Instrument(deps.Metrics),
		middleware.CORS(deps.Config.CORS),
	)

	r.GET("/health", NewHealthHandler(deps.Health).Health)
	if deps.Registry != nil {
		r.GET("/metrics", gin.WrapH(metrics.Handler(deps.Registry)))
	}

	api := r.Group(deps.Config.API.Prefix)
	authMW := middleware.JWTAuthMiddleware(deps.Access)

	var loginGuards []gin.HandlerFunc
	if deps.Limiter != nil && deps.Config.RateLimiter.Enabled {
		loginGuards = append(loginGuards, middleware.RateLimit(deps.Limiter, "login", deps.Metrics, deps.Logger))
	}

	NewAuthHandler(deps.Auth).RegisterAuthRoutes(api, authMW, loginGuards...)
	NewUserHandler(deps.Users).RegisterUserRoutes(api, authMW)

	return r
}
