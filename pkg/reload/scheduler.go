package reload

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs a job on a cron schedule.
//
// Common expressions:
//   - "*/15 * * * *" every 15 minutes
//   - "0 * * * *"    hourly
//   - "@every 30s"   fixed interval
type Scheduler struct {
	schedule string
	cron     *cron.Cron
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
}

// NewScheduler creates a scheduler. An empty schedule never runs.
func NewScheduler(schedule string, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		schedule: schedule,
		cron:     cron.New(),
		logger:   logger.With("component", "reload.scheduler"),
	}
}

// Start schedules job and returns immediately. The scheduler stops when ctx
// is done.
func (s *Scheduler) Start(ctx context.Context, job func(context.Context)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == "" {
		s.logger.Debug("reload schedule not configured")
		return nil
	}
	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	if _, err := s.cron.AddFunc(s.schedule, func() { job(ctx) }); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.schedule, err)
	}
	s.cron.Start()
	s.running = true
	s.logger.Info("reload scheduler started", "schedule", s.schedule)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop stops the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
	s.logger.Info("reload scheduler stopped")
}

// Running reports whether the scheduler is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled run, or the zero time when idle.
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}
