package worker

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
	"github.com/samber/oops"
)

// Scheduler runs jobs on cron schedules.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
}

// NewScheduler creates an idle Scheduler.
func NewScheduler(logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger: logger,
	}
}

// Add registers job under name on spec (standard cron syntax or descriptors such
// as @daily). Each run gets ctx.
func (s *Scheduler) Add(ctx context.Context, name, spec string, job func(ctx context.Context) error) error {
	_, err := s.cron.AddFunc(spec, func() {
		s.logger.InfoContext(ctx, "running scheduled job", "job", name)
		if err := job(ctx); err != nil {
			s.logger.ErrorContext(ctx, "scheduled job failed", "job", name, "error", err)
		}
	})
	if err != nil {
		return oops.Code("SCHEDULE_INVALID").With("job", name, "spec", spec).Wrap(err)
	}
	return nil
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
