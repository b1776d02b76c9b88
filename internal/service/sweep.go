package service

import (
	"context"
	"log/slog"
	"time"

	"ridecore/internal/tasks"
)

// SweepService periodically auto-cancels pending rides nobody accepted.
type SweepService struct {
	rides    *RideService
	interval time.Duration
	logger   *slog.Logger
}

// NewSweepService creates a new SweepService.
func NewSweepService(rides *RideService, interval time.Duration, logger *slog.Logger) *SweepService {
	if interval <= 0 {
		interval = time.Minute
	}
	return &SweepService{rides: rides, interval: interval, logger: logger}
}

// Run sweeps on every tick until ctx is cancelled.
func (s *SweepService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs a single sweep and returns how many rides were cancelled.
func (s *SweepService) SweepOnce(ctx context.Context) int {
	n, err := s.rides.AutoCancelStale(ctx)
	if err != nil {
		s.logger.Error("stale ride sweep failed", "error", err)
		return 0
	}
	if n > 0 {
		s.logger.Info("stale rides auto-cancelled", "count", n)
	}
	return n
}

// RegisterJobs binds the background job kinds to their handlers.
// The incentive reset re-enqueues itself every period.
func RegisterJobs(pool *tasks.Pool, queue tasks.Queue, dispatch *DispatchService, incentives *IncentiveService, resetEvery time.Duration, logger *slog.Logger) {
	pool.Handle(tasks.KindDispatchScheduledRide, dispatch.DispatchScheduledRide)
	pool.Handle(tasks.KindResetIncentives, func(ctx context.Context, job tasks.Job) error {
		if _, err := incentives.ResetProgress(ctx); err != nil {
			return err
		}
		if resetEvery <= 0 {
			return nil
		}
		runAt := job.RunAt.Add(resetEvery)
		for !runAt.After(time.Now()) {
			runAt = runAt.Add(resetEvery)
		}
		next := IncentiveResetJob(runAt)
		if err := queue.Enqueue(ctx, next); err != nil {
			logger.Error("schedule next incentive reset failed", "run_at", next.RunAt, "error", err)
		}
		return nil
	})
}

// IncentiveResetJob builds the singleton reset job. Its ID is fixed so
// scheduling it again replaces the pending copy.
func IncentiveResetJob(runAt time.Time) tasks.Job {
	job := tasks.NewJob(tasks.KindResetIncentives, "", runAt)
	job.ID = string(tasks.KindResetIncentives)
	return job
}
