package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

// fakeReader serves queued messages, then blocks until the context ends.
type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []kafka.Message
	fetchErr  error
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if r.fetchErr != nil {
		err := r.fetchErr
		r.mu.Unlock()
		return kafka.Message{}, err
	}
	if len(r.queue) > 0 {
		msg := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error { return nil }

func (r *fakeReader) committedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.committed)
}

func taskMessage(t *testing.T, name string, payload any) kafka.Message {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	value, err := json.Marshal(Task{Name: name, Payload: raw, EnqueuedAt: time.Now().UTC()})
	require.NoError(t, err)
	return kafka.Message{Key: []byte(name), Value: value}
}

func TestProducer_Enqueue(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	err := p.Enqueue(context.Background(), TaskSendVerificationToken, VerificationPayload{UserID: 1, PhoneNumber: "998991234567", Token: "abc"})
	require.NoError(t, err)

	require.Len(t, w.msgs, 1)
	assert.Equal(t, TaskSendVerificationToken, string(w.msgs[0].Key))

	var task Task
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &task))
	assert.Equal(t, TaskSendVerificationToken, task.Name)
	assert.Equal(t, fixed, task.EnqueuedAt)
	assert.JSONEq(t, `{"user_id":1,"phone_number":"998991234567","token":"abc"}`, string(task.Payload))

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestProducer_Enqueue_WriteError(t *testing.T) {
	p := newProducer(&fakeWriter{err: errors.New("broker down")})
	err := p.Enqueue(context.Background(), TaskSendVerificationToken, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}

func TestConsumer_DispatchesAndStopsOnCancel(t *testing.T) {
	reader := &fakeReader{}
	reader.queue = []kafka.Message{
		taskMessage(t, "first", map[string]int{"n": 1}),
		{Value: []byte("not json")},
		taskMessage(t, "unknown", nil),
		taskMessage(t, "second", map[string]int{"n": 2}),
	}

	var (
		mu   sync.Mutex
		seen []string
	)
	record := func(ctx context.Context, task Task) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, task.Name)
		return nil
	}
	consumer := newConsumer(reader, map[string]HandlerFunc{
		"first":  record,
		"second": func(ctx context.Context, task Task) error { _ = record(ctx, task); return errors.New("handler failed") },
	}, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- consumer.Run(ctx) }()

	require.Eventually(t, func() bool { return reader.committedCount() == 4 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop after cancel")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"first", "second"}, seen)
	require.NoError(t, consumer.Close())
}

func TestConsumer_FetchError(t *testing.T) {
	consumer := newConsumer(&fakeReader{fetchErr: errors.New("coordinator unavailable")}, nil, discardLogger())
	err := consumer.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "coordinator unavailable")
}

type fakeCleaner struct {
	olderThan time.Duration
	deleted   int64
	err       error
}

func (f *fakeCleaner) DeleteUnverified(_ context.Context, olderThan time.Duration) (int64, error) {
	f.olderThan = olderThan
	return f.deleted, f.err
}

func TestDeleteUnverifiedUsers(t *testing.T) {
	cleaner := &fakeCleaner{deleted: 3}
	handler := DeleteUnverifiedUsers(cleaner, 48*time.Hour, discardLogger())

	require.NoError(t, handler(context.Background(), Task{Name: TaskDeleteUnverifiedUsers}))
	assert.Equal(t, 48*time.Hour, cleaner.olderThan)

	payload, _ := json.Marshal(CleanupPayload{OlderThan: "1h"})
	require.NoError(t, handler(context.Background(), Task{Payload: payload}))
	assert.Equal(t, time.Hour, cleaner.olderThan)

	assert.Error(t, handler(context.Background(), Task{Payload: json.RawMessage(`{"older_than":"soon"}`)}))

	cleaner.err = errors.New("db down")
	assert.Error(t, handler(context.Background(), Task{}))
}

func TestSendVerificationToken_Logs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	handler := SendVerificationToken(logger)

	payload, _ := json.Marshal(VerificationPayload{UserID: 9, PhoneNumber: "998991234567", Token: "tok"})
	require.NoError(t, handler(context.Background(), Task{Payload: payload}))
	assert.Contains(t, buf.String(), `"user_id":9`)
	assert.Contains(t, buf.String(), "verification token issued")

	assert.Error(t, handler(context.Background(), Task{Payload: json.RawMessage(`[`)}))
}

func TestHandlers_Registered(t *testing.T) {
	h := Handlers(&fakeCleaner{}, time.Hour, discardLogger())
	assert.Contains(t, h, TaskSendVerificationToken)
	assert.Contains(t, h, TaskDeleteUnverifiedUsers)
}

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	pub := LogPublisher{Logger: slog.New(slog.NewTextHandler(&buf, nil))}
	require.NoError(t, pub.Enqueue(context.Background(), TaskSendVerificationToken, nil))
	assert.Contains(t, buf.String(), "task queue disabled")
}

func TestScheduler(t *testing.T) {
	s := NewScheduler(discardLogger())
	assert.Error(t, s.Add(context.Background(), "bad", "not a schedule", nil))

	ran := make(chan struct{}, 1)
	require.NoError(t, s.Add(context.Background(), "tick", "@every 10ms", func(context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	}))
	s.Start()
	defer s.Stop()

	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("scheduled job did not run")
	}
}
