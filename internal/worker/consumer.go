package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/samber/oops"
	"github.com/segmentio/kafka-go"

	"user_backend/internal/apperror"
	"user_backend/internal/config"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// HandlerFunc processes one task.
type HandlerFunc func(ctx context.Context, task Task) error

// Consumer reads tasks from the task topic and dispatches them by name.
type Consumer struct {
	reader   messageReader
	handlers map[string]HandlerFunc
	logger   *slog.Logger
}

// NewConsumer creates a consumer-group reader for cfg.Topic.
func NewConsumer(cfg config.KafkaConfig, handlers map[string]HandlerFunc, logger *slog.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return newConsumer(reader, handlers, logger)
}

func newConsumer(r messageReader, handlers map[string]HandlerFunc, logger *slog.Logger) *Consumer {
	return &Consumer{reader: r, handlers: handlers, logger: logger}
}

// Run consumes until ctx is cancelled. Messages are committed after their handler
// returns, whether or not it failed; failures are logged.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return oops.Code("TASK_FETCH_FAILED").Wrap(err)
		}

		c.dispatch(ctx, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			apperror.LogError(c.logger, "failed to commit task", err)
		}
	}
}

func (c *Consumer) dispatch(ctx context.Context, msg kafka.Message) {
	var task Task
	if err := json.Unmarshal(msg.Value, &task); err != nil {
		c.logger.WarnContext(ctx, "discarding malformed task", "offset", msg.Offset, "error", err)
		return
	}

	handler, ok := c.handlers[task.Name]
	if !ok {
		c.logger.WarnContext(ctx, "no handler for task", "task", task.Name)
		return
	}

	if err := handler(ctx, task); err != nil {
		apperror.LogError(c.logger, "task failed", oops.With("task", task.Name).Wrap(err))
		return
	}
	c.logger.DebugContext(ctx, "task done", "task", task.Name)
}

// Close closes the reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
