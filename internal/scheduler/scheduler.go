// Package scheduler runs the recurring trading jobs on cron schedules:
// strategy execution, order confirmation, and position revaluation.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/fundpilot/trading-backend/internal/execution"
	"github.com/fundpilot/trading-backend/internal/metrics"
	"github.com/fundpilot/trading-backend/internal/position"
	"github.com/fundpilot/trading-backend/pkg/types"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler owns the cron runner and the three recurring jobs.
type Scheduler struct {
	logger    *zap.Logger
	cron      *cron.Cron
	executor  *execution.Executor
	confirmer *execution.Confirmer
	positions *position.Service
}

// New creates a scheduler. Specs use the six-field cron format with a
// leading seconds field.
func New(logger *zap.Logger, executor *execution.Executor, confirmer *execution.Confirmer, positions *position.Service) *Scheduler {
	return &Scheduler{
		logger:    logger.Named("scheduler"),
		cron:      cron.New(cron.WithSeconds()),
		executor:  executor,
		confirmer: confirmer,
		positions: positions,
	}
}

// Start registers the jobs and starts the cron runner.
func (s *Scheduler) Start(cfg types.SchedulerConfig) error {
	jobs := []struct {
		name string
		spec string
		run  func(context.Context) error
	}{
		{"execute-strategies", cfg.ExecuteSpec, func(ctx context.Context) error {
			return s.executor.ExecuteAll(ctx, time.Now())
		}},
		{"confirm-orders", cfg.ConfirmSpec, func(ctx context.Context) error {
			return s.confirmer.ConfirmAll(ctx)
		}},
		{"refresh-positions", cfg.RefreshSpec, func(ctx context.Context) error {
			err := s.positions.RefreshAll(ctx, time.Now())
			metrics.RefreshCycles.Inc()
			return err
		}},
	}

	for _, job := range jobs {
		job := job
		_, err := s.cron.AddFunc(job.spec, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()

			start := time.Now()
			if err := job.run(ctx); err != nil {
				s.logger.Error("scheduled job finished with errors",
					zap.String("job", job.name), zap.Error(err))
				return
			}
			s.logger.Debug("scheduled job done",
				zap.String("job", job.name),
				zap.Duration("elapsed", time.Since(start)))
		})
		if err != nil {
			return fmt.Errorf("register job %s (%q): %w", job.name, job.spec, err)
		}
	}

	s.cron.Start()
	s.logger.Info("scheduler started",
		zap.String("execute", cfg.ExecuteSpec),
		zap.String("confirm", cfg.ConfirmSpec),
		zap.String("refresh", cfg.RefreshSpec))
	return nil
}

// Stop stops the cron runner and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}
