package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"user_backend/internal/cache"
	"user_backend/internal/config"
	"user_backend/internal/handler"
	"user_backend/internal/metrics"
	"user_backend/internal/repository"
	"user_backend/internal/service"
	"user_backend/internal/utils"
)

const readHeaderTimeout = 10 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long:  `Start the HTTP API server. Pass --migrate to apply pending migrations first.`,
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.DB.AutoMigrate {
		if err := migrateUp(cfg.DB.URL()); err != nil {
			return err
		}
		logger.Info("database migrations applied")
	}

	pool, err := config.ConnectDB(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer pool.Close()

	rdb, err := cache.NewClient(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer func() { _ = rdb.Close() }()

	jwtUtil, err := utils.LoadJWTUtil(cfg.Security.PrivateKeyPath, cfg.Security.PublicKeyPath, cfg.Security.Algorithm, cfg.Security.AccessTokenTTL)
	if err != nil {
		return oops.Code("JWT_KEYS_INVALID").Wrap(err)
	}

	store, err := newObjectStore(ctx, cfg.S3, logger)
	if err != nil {
		return err
	}

	tasks := newTaskPublisher(cfg.Kafka, logger)
	defer func() { _ = tasks.Close() }()

	registry := metrics.NewRegistry()
	m := metrics.NewMetrics(registry)

	users := repository.NewUserRepository(pool)
	tx := repository.NewTxManager(pool)
	hasher := newHasher(cfg.Security)
	tokens := service.NewTokenService(jwtUtil, cfg.Security.AccessTokenTTL, cfg.Security.RefreshTokenTTL)
	denylist := cache.NewTokenDenylist(rdb)

	authService := service.NewAuthService(service.AuthDeps{
		Users:    users,
		Tx:       tx,
		Hasher:   hasher,
		Tokens:   tokens,
		Revoker:  denylist,
		Tasks:    tasks,
		Recorder: m,
		Logger:   logger,
	})
	userService := newUserService(pool, hasher, store, logger)

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handler.NewRouter(handler.RouterDeps{
		Config:   cfg,
		Auth:     authService,
		Users:    userService,
		Access:   service.NewAccessControl(tokens, users, denylist),
		Limiter:  cache.NewRateLimiter(rdb, cfg.RateLimiter.Requests, cfg.RateLimiter.Window),
		Metrics:  m,
		Registry: registry,
		Health: map[string]handler.CheckFunc{
			"database": pool.Ping,
			"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		},
		Logger: logger,
	})

	srv := &http.Server{
		Addr:              cfg.Run.Addr(),
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", srv.Addr, "prefix", cfg.API.Prefix)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return oops.Code("SERVER_FAILED").With("addr", srv.Addr).Wrap(err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Run.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return oops.Code("SHUTDOWN_FAILED").Wrap(err)
	}

	logger.Info("server exited")
	return nil
}
