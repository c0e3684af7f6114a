package main

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"user_backend/internal/config"
	"user_backend/internal/repository"
	"user_backend/internal/service"
	"user_backend/internal/storage"
	"user_backend/internal/utils"
	"user_backend/internal/worker"
)

// taskPublisher is a service.TaskPublisher that may hold a connection.
type taskPublisher interface {
	service.TaskPublisher
	Close() error
}

type logPublisher struct {
	worker.LogPublisher
}

func (logPublisher) Close() error { return nil }

// newTaskPublisher returns the Kafka producer, or a publisher that only logs
// when Kafka is disabled.
func newTaskPublisher(cfg config.KafkaConfig, logger *slog.Logger) taskPublisher {
	if !cfg.Enabled {
		return logPublisher{worker.LogPublisher{Logger: logger}}
	}
	return worker.NewProducer(cfg)
}

// newObjectStore connects to S3 and makes sure the bucket exists. Avatar uploads
// fail with 503 when S3 is disabled.
func newObjectStore(ctx context.Context, cfg config.S3Config, logger *slog.Logger) (storage.ObjectStore, error) {
	if !cfg.Enabled {
		logger.Info("object storage disabled")
		return storage.Disabled{}, nil
	}
	store, err := storage.NewS3Store(cfg)
	if err != nil {
		return nil, err
	}
	if err := store.EnsureBucket(ctx, cfg.Region); err != nil {
		return nil, err
	}
	return store, nil
}

// newHasher builds the process-wide password hasher. Its concurrency limit only
// holds when every service shares the one instance.
func newHasher(cfg config.SecurityConfig) *utils.PasswordHasher {
	return utils.NewPasswordHasher(cfg.BcryptCost, cfg.HashConcurrency)
}

// newUserService wires the user service on top of pool.
func newUserService(pool *pgxpool.Pool, hasher service.PasswordHasher, store storage.ObjectStore, logger *slog.Logger) service.UserService {
	return service.NewUserService(service.UserDeps{
		Users:  repository.NewUserRepository(pool),
		Roles:  repository.NewRoleRepository(pool),
		Tx:     repository.NewTxManager(pool),
		Hasher: hasher,
		Store:  store,
		Logger: logger,
	})
}
