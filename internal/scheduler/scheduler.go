// Package scheduler runs periodic maintenance jobs.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/kirinyoku/tourgo/internal/service/booking"
)

// Sweeper is the job the scheduler drives.
type Sweeper interface {
	SweepUnpaidExpired(ctx context.Context) (booking.SweepResult, error)
}

type Config struct {
	Interval time.Duration
	// Timeout bounds a single sweep run.
	Timeout time.Duration
	// RunOnStart triggers a sweep as soon as the scheduler starts.
	RunOnStart bool
}

type Scheduler struct {
	s      gocron.Scheduler
	logger *slog.Logger
}

// New registers the unpaid-expiry sweep. Runs never overlap: a tick that
// fires while a sweep is still running is skipped and rescheduled.
func New(ctx context.Context, sweeper Sweeper, logger *slog.Logger, cfg Config) (*Scheduler, error) {
	const op = "scheduler.New"

	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}

	if cfg.Timeout <= 0 || cfg.Timeout > cfg.Interval {
		cfg.Timeout = cfg.Interval
	}

	if logger == nil {
		logger = slog.Default()
	}

	s, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	opts := []gocron.JobOption{
		gocron.WithName("sweep-unpaid-expired"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	}
	if cfg.RunOnStart {
		opts = append(opts, gocron.WithStartAt(gocron.WithStartImmediately()))
	}

	_, err = s.NewJob(
		gocron.DurationJob(cfg.Interval),
		gocron.NewTask(func() {
			runCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
			defer cancel()

			res, err := sweeper.SweepUnpaidExpired(runCtx)
			if err != nil {
				logger.Error("sweep failed", slog.String("error", err.Error()))
				return
			}

			if res.Cancelled > 0 || res.Failed > 0 {
				logger.Info("sweep", slog.Int("cancelled", res.Cancelled), slog.Int("failed", res.Failed))
			}
		}),
		opts...,
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &Scheduler{s: s, logger: logger}, nil
}

func (s *Scheduler) Start() {
	s.s.Start()
}

// Shutdown stops scheduling and waits for a running job to finish.
func (s *Scheduler) Shutdown() error {
	return s.s.Shutdown()
}
