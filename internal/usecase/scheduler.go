package usecase

import (
	"context"
	"log/slog"
	"time"

	"NewsCollector/internal/domain"
	"NewsCollector/internal/ports"
)

// Runner is the unit of work a Scheduler triggers.
type Runner interface {
	Run(ctx context.Context) domain.RunReport
}

// Scheduler wires the cron-like driver with the collection task.
type Scheduler struct {
	driver ports.Scheduler
	task   Runner
	logger *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring jobs.
func NewScheduler(driver ports.Scheduler, task Runner, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{driver: driver, task: task, logger: logger}
}

// Start registers the task with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.task == nil {
		return nil
	}

	job := func(trigger time.Time) {
		s.logger.Info("scheduled run triggered", "at", trigger)
		_ = s.task.Run(ctx)
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
