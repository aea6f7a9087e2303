package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs the retention cleanup on a standard five-field cron
// schedule, interpreted in UTC.
type Scheduler struct {
	cron    *cron.Cron
	cleanup *Cleanup
	logger  *slog.Logger
	timeout time.Duration
}

func NewScheduler(spec string, cleanup *Cleanup, logger *slog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(cron.WithLocation(time.UTC), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		cleanup: cleanup,
		logger:  logger,
		timeout: 30 * time.Minute,
	}
	if _, err := s.cron.AddFunc(spec, s.runCleanup); err != nil {
		return nil, fmt.Errorf("invalid cleanup schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) runCleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if _, err := s.cleanup.Run(ctx); err != nil {
		s.logger.Error("scheduled cleanup failed", "error", err)
	}
}

// Next reports when the cleanup will fire next; zero before Start.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// Run blocks until ctx is done, then waits for a running cleanup to finish.
func (s *Scheduler) Run(ctx context.Context) {
	s.cron.Start()
	s.logger.Info("cleanup scheduled", "next", s.Next().Format(time.RFC3339))
	<-ctx.Done()
	<-s.cron.Stop().Done()
}
