package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/crm-backend/pkg/logger"
	"github.com/angelmondragon/crm-backend/pkg/metrics"
)

const (
	defaultInterval   = 15 * time.Minute
	defaultJobTimeout = 5 * time.Minute
)

// ServiceParams configure the cron service.
type ServiceParams struct {
	Logger     *logger.Logger
	Registry   *Registry
	Lock       Lock
	Metrics    *metrics.CronJobMetrics
	Interval   time.Duration
	JobTimeout time.Duration
}

// Service runs the billing compensation jobs on a fixed cadence. Only one
// replica executes a cycle at a time; the others skip while the lock is held.
type Service struct {
	logg       *logger.Logger
	registry   *Registry
	lock       Lock
	metrics    *metrics.CronJobMetrics
	interval   time.Duration
	jobTimeout time.Duration
}

// NewService builds a cron service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
	}
	registry := params.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	jobTimeout := params.JobTimeout
	if jobTimeout <= 0 {
		jobTimeout = defaultJobTimeout
	}
	return &Service{
		logg:       params.Logger,
		registry:   registry,
		lock:       params.Lock,
		metrics:    params.Metrics,
		interval:   interval,
		jobTimeout: jobTimeout,
	}, nil
}

// Run executes a cycle immediately and then once per interval until ctx is
// canceled.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.logg.Info(s.logg.WithField(ctx, "interval", s.interval.String()), "cron service started")
	if _, err := s.RunOnce(ctx); err != nil {
		s.logg.Error(ctx, "scheduled run failed", err)
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service context canceled")
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				s.logg.Error(ctx, "scheduled run failed", err)
			}
		}
	}
}

// RunOnce executes a single cycle. It reports whether this instance held the
// lock and actually ran the jobs.
func (s *Service) RunOnce(ctx context.Context) (bool, error) {
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		s.logg.Info(ctx, "another cron instance is running; skipping this cycle")
		s.metrics.IncSkipped()
		return false, nil
	}
	defer func() {
		if relErr := s.lock.Release(ctx); relErr != nil {
			s.logg.Error(ctx, "failed to release cron lock", relErr)
		}
	}()

	jobs := s.registry.Jobs()
	s.logg.Info(s.logg.WithField(ctx, "jobs", len(jobs)), "scheduled run starting")
	failed := 0
	for _, job := range jobs {
		if ctx.Err() != nil {
			return true, ctx.Err()
		}
		if !s.runJob(ctx, job) {
			failed++
		}
	}
	s.logg.Info(s.logg.WithField(ctx, "failed_jobs", failed), "scheduled run complete")
	return true, nil
}

func (s *Service) runJob(ctx context.Context, job Job) (ok bool) {
	jobCtx := s.logg.WithFields(ctx, map[string]any{
		"job":   job.Name(),
		"event": "cron.job",
	})
	runCtx, cancel := context.WithTimeout(jobCtx, s.jobTimeout)
	defer cancel()

	s.logg.Info(jobCtx, "job start")
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			s.finish(jobCtx, job.Name(), time.Since(start), fmt.Errorf("job panic: %v", rec))
			ok = false
		}
	}()
	err := job.Run(runCtx)
	s.finish(jobCtx, job.Name(), time.Since(start), err)
	return err == nil
}

func (s *Service) finish(ctx context.Context, job string, duration time.Duration, err error) {
	ctx = s.logg.WithField(ctx, "duration_ms", duration.Milliseconds())
	s.metrics.ObserveDuration(job, duration)
	if err != nil {
		s.logg.Error(ctx, "job failed", err)
		s.metrics.IncFailure(job)
		return
	}
	s.logg.Info(ctx, "job completed")
	s.metrics.IncSuccess(job, time.Now())
}
