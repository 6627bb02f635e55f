// Package cron runs the periodic maintenance jobs of the kiosk fleet under a
// single-worker lock.
package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/vendkiosk/kiosk-backend/pkg/logger"
	"github.com/vendkiosk/kiosk-backend/pkg/metrics"
	"go.uber.org/multierr"
)

const defaultInterval = time.Minute

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	Interval time.Duration
}

// Service runs every registered job once per interval.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	lock     Lock
	metrics  *metrics.CronJobMetrics
	interval time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
	}
	if params.Registry == nil {
		return nil, fmt.Errorf("registry required")
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Service{
		logg:     params.Logger,
		registry: params.Registry,
		lock:     params.Lock,
		metrics:  params.Metrics,
		interval: interval,
	}, nil
}

// Run loops until ctx is cancelled. A failed cycle is logged, never fatal.
func (s *Service) Run(ctx context.Context) error {
	s.cycle(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron.stopped")
			return ctx.Err()
		case <-ticker.C:
			s.cycle(ctx)
		}
	}
}

// RunOnce executes a single cycle and returns the combined job errors.
func (s *Service) RunOnce(ctx context.Context) error {
	return s.runCycle(ctx)
}

func (s *Service) cycle(ctx context.Context) {
	if err := s.runCycle(ctx); err != nil {
		s.logg.Error(ctx, "cron.cycle_failed", err)
	}
}

func (s *Service) runCycle(ctx context.Context) (err error) {
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		s.logg.Info(ctx, "cron.skipped_locked")
		return nil
	}
	defer func() {
		if relErr := s.lock.Release(ctx); relErr != nil {
			err = multierr.Append(err, fmt.Errorf("lock release: %w", relErr))
		}
	}()

	for _, job := range s.registry.Jobs() {
		err = multierr.Append(err, s.runJob(ctx, job))
	}
	return err
}

func (s *Service) runJob(ctx context.Context, job Job) error {
	jobCtx := s.logg.WithField(ctx, "job", job.Name())
	start := time.Now()
	err := job.Run(jobCtx)
	took := time.Since(start)
	s.metrics.ObserveRun(job.Name(), took, err)

	jobCtx = s.logg.WithField(jobCtx, "duration_ms", took.Milliseconds())
	if err != nil {
		s.logg.Error(jobCtx, "cron.job_failed", err)
		return fmt.Errorf("%s: %w", job.Name(), err)
	}
	s.logg.Info(jobCtx, "cron.job_completed")
	return nil
}
