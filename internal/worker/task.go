// Package worker runs background tasks: a Kafka-backed task queue and the cron
// schedule for periodic cleanup.
package worker

import (
	"encoding/json"
	"time"
)

// Task names.
const (
	TaskSendVerificationToken = "send_verification_token"
	TaskDeleteUnverifiedUsers = "delete_unverified_users"
)

// Task is the message published to the task topic. The Kafka message key is the
// task name.
type Task struct {
	Name       string          `json:"name"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// VerificationPayload is the payload of TaskSendVerificationToken.
type VerificationPayload struct {
	UserID      int64  `json:"user_id"`
	PhoneNumber string `json:"phone_number"`
	Token       string `json:"token"`
}

// CleanupPayload is the payload of TaskDeleteUnverifiedUsers.
type CleanupPayload struct {
	OlderThan string `json:"older_than"`
}
