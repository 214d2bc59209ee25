package booking

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/tourgo/internal/metrics"
	"github.com/kirinyoku/tourgo/internal/repository"
	"github.com/kirinyoku/tourgo/internal/service/refund"
	"github.com/kirinyoku/tourgo/internal/uow"
)

const (
	sweepCancelledBy = "system"
	sweepReason      = "Tour started without full payment"
)

type SweepResult struct {
	Scanned   int `json:"scanned"`
	Cancelled int `json:"cancelled"`
	Failed    int `json:"failed"`
}

// SweepUnpaidExpired cancels live bookings whose tour has started before they
// were paid in full, refunding whatever was paid. Each booking runs in its own
// transaction and is re-checked under lock, so running the sweep twice is a
// no-op the second time.
func (s *Service) SweepUnpaidExpired(ctx context.Context) (SweepResult, error) {
	const op = "service.booking.SweepUnpaidExpired"

	started := time.Now()
	defer func() {
		metrics.SweepDuration.Observe(time.Since(started).Seconds())
	}()

	var res SweepResult

	now := s.cfg.Now().UTC()

	candidates, err := s.uow.Repos().Bookings().ListStartedLive(ctx, now)
	if err != nil {
		return res, fmt.Errorf("%s:%w", op, err)
	}

	for i := range candidates {
		b := &candidates[i]
		if b.TotalPaid() >= b.TotalCents {
			continue
		}

		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("%s:%w", op, err)
		}

		res.Scanned++

		cancelled, err := s.sweepOne(ctx, b.ID, now)
		if err != nil {
			res.Failed++
			level := slog.LevelError
			if IsFinal(err) {
				level = slog.LevelWarn
			}
			s.logger.Log(ctx, level, "sweep: cancel failed",
				slog.String("booking_id", b.ID.String()),
				slog.String("error", err.Error()),
			)
			continue
		}

		if cancelled {
			res.Cancelled++
		}
	}

	s.logger.InfoContext(ctx, "sweep finished",
		slog.Int("scanned", res.Scanned),
		slog.Int("cancelled", res.Cancelled),
		slog.Int("failed", res.Failed),
	)

	return res, nil
}

func (s *Service) sweepOne(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	var cancelled bool

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		r repository.Repos,
		after func(uow.AfterCommit),
	) error {
		cancelled = false

		b, err := r.Bookings().GetForUpdate(ctx, id)
		if err != nil {
			return mapErr(err)
		}

		paid := b.TotalPaid()
		if !b.Status.Live() || b.StartDate.After(now) || paid >= b.TotalCents {
			return nil
		}

		if err := s.cancelIn(ctx, r, after, b, sweepCancelledBy, sweepReason, refund.PolicyFullPartialRefund(paid)); err != nil {
			return err
		}

		cancelled = true

		return nil
	})

	return cancelled, err
}
