package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"github.com/segmentio/kafka-go"

	"user_backend/internal/apperror"
	"user_backend/internal/config"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes tasks to the task topic.
type Producer struct {
	writer messageWriter
	now    func() time.Time
}

// NewProducer creates a Producer writing to cfg.Topic.
func NewProducer(cfg config.KafkaConfig) *Producer {
	return newProducer(&kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.LeastBytes{},
		RequiredAcks:           kafka.RequireAll,
		WriteTimeout:           10 * time.Second,
		AllowAutoTopicCreation: true,
	})
}

func newProducer(w messageWriter) *Producer {
	return &Producer{writer: w, now: time.Now}
}

// Enqueue publishes a task with the JSON encoding of payload.
func (p *Producer) Enqueue(ctx context.Context, name string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return oops.Code("TASK_ENCODE_FAILED").With("task", name).Wrap(err)
	}
	value, err := json.Marshal(Task{Name: name, Payload: raw, EnqueuedAt: p.now().UTC()})
	if err != nil {
		return oops.Code("TASK_ENCODE_FAILED").With("task", name).Wrap(err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(name), Value: value}); err != nil {
		return apperror.ExternalService("kafka", err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}

// LogPublisher stands in for the producer when Kafka is disabled; it only logs.
type LogPublisher struct {
	Logger *slog.Logger
}

func (l LogPublisher) Enqueue(ctx context.Context, name string, _ any) error {
	l.Logger.InfoContext(ctx, "task queue disabled, dropping task", "task", name)
	return nil
}
