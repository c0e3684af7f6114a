package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/samber/oops"
)

// UserCleaner deletes users that never completed verification.
type UserCleaner interface {
	DeleteUnverified(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Handlers returns the task handlers served by the worker.
func Handlers(cleaner UserCleaner, defaultAge time.Duration, logger *slog.Logger) map[string]HandlerFunc {
	return map[string]HandlerFunc{
		TaskSendVerificationToken: SendVerificationToken(logger),
		TaskDeleteUnverifiedUsers: DeleteUnverifiedUsers(cleaner, defaultAge, logger),
	}
}

// SendVerificationToken logs the token instead of delivering it; no SMS gateway
// is wired.
func SendVerificationToken(logger *slog.Logger) HandlerFunc {
	return func(ctx context.Context, task Task) error {
		var p VerificationPayload
		if err := json.Unmarshal(task.Payload, &p); err != nil {
			return oops.Code("TASK_PAYLOAD_INVALID").Wrap(err)
		}
		logger.InfoContext(ctx, "verification token issued",
			"user_id", p.UserID, "phone_number", p.PhoneNumber, "token", p.Token)
		return nil
	}
}

// DeleteUnverifiedUsers removes inactive accounts older than the payload's
// older_than, or defaultAge when it is absent.
func DeleteUnverifiedUsers(cleaner UserCleaner, defaultAge time.Duration, logger *slog.Logger) HandlerFunc {
	return func(ctx context.Context, task Task) error {
		age := defaultAge
		if len(task.Payload) > 0 && string(task.Payload) != "null" {
			var p CleanupPayload
			if err := json.Unmarshal(task.Payload, &p); err != nil {
				return oops.Code("TASK_PAYLOAD_INVALID").Wrap(err)
			}
			if p.OlderThan != "" {
				d, err := time.ParseDuration(p.OlderThan)
				if err != nil {
					return oops.Code("TASK_PAYLOAD_INVALID").With("older_than", p.OlderThan).Wrap(err)
				}
				age = d
			}
		}

		n, err := cleaner.DeleteUnverified(ctx, age)
		if err != nil {
			return err
		}
		logger.InfoContext(ctx, "deleted unverified users", "count", n, "older_than", age.String())
		return nil
	}
}
