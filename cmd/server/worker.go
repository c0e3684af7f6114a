package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"user_backend/internal/config"
	"user_backend/internal/service"
	"user_backend/internal/worker"
)

// NewWorkerCmd creates the worker subcommand.
func NewWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run background tasks",
		Long: `Consume tasks from Kafka and schedule the periodic cleanup of unverified
users. Without Kafka the cleanup runs in process.`,
		Args: cobra.NoArgs,
		RunE: runWorker,
	}
}

func runWorker(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := config.ConnectDB(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer pool.Close()

	store, err := newObjectStore(ctx, cfg.S3, logger)
	if err != nil {
		return err
	}
	users := newUserService(pool, newHasher(cfg.Security), store, logger)

	tasks := newTaskPublisher(cfg.Kafka, logger)
	defer func() { _ = tasks.Close() }()

	scheduler := worker.NewScheduler(logger)
	if err := scheduler.Add(ctx, worker.TaskDeleteUnverifiedUsers, cfg.Worker.CleanupSchedule,
		cleanupJob(cfg, users, tasks, logger)); err != nil {
		return err
	}
	scheduler.Start()
	defer scheduler.Stop()

	if !cfg.Kafka.Enabled {
		logger.Info("kafka disabled, running scheduled jobs only")
		<-ctx.Done()
		return nil
	}

	consumer := worker.NewConsumer(cfg.Kafka, worker.Handlers(users, cfg.Worker.UnverifiedAge, logger), logger)
	defer func() { _ = consumer.Close() }()

	logger.Info("worker started", "topic", cfg.Kafka.Topic, "group", cfg.Kafka.GroupID)
	return consumer.Run(ctx)
}

// cleanupJob enqueues the cleanup task when Kafka is enabled and otherwise runs
// it directly.
func cleanupJob(cfg *config.Config, users worker.UserCleaner, tasks service.TaskPublisher, logger *slog.Logger) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if cfg.Kafka.Enabled {
			return tasks.Enqueue(ctx, worker.TaskDeleteUnverifiedUsers, worker.CleanupPayload{OlderThan: cfg.Worker.UnverifiedAge.String()})
		}
		n, err := users.DeleteUnverified(ctx, cfg.Worker.UnverifiedAge)
		if err != nil {
			return err
		}
		logger.InfoContext(ctx, "deleted unverified users", "count", n)
		return nil
	}
}
