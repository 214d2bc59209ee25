// Package datechange arbitrates customer requests to move a booking's dates.
// A booking carries at most one PENDING request; approval rewrites the dates,
// rejection leaves them alone.
package datechange

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/tourgo/internal/domain"
	"github.com/kirinyoku/tourgo/internal/metrics"
	"github.com/kirinyoku/tourgo/internal/notify"
	"github.com/kirinyoku/tourgo/internal/repository"
	"github.com/kirinyoku/tourgo/internal/uow"
)

var (
	ErrBookingNotFound       = fmt.Errorf("booking not found: %w", domain.ErrNotFound)
	ErrPackageNotFound       = fmt.Errorf("package not found: %w", domain.ErrNotFound)
	ErrRequestAlreadyPending = fmt.Errorf("a date change request is already pending: %w", domain.ErrConflict)
	ErrInvalidDate           = fmt.Errorf("invalid date: %w", domain.ErrValidation)
	ErrBookingClosed         = fmt.Errorf("booking can no longer change dates: %w", domain.ErrIllegalState)
	ErrNoPendingRequest      = fmt.Errorf("no pending date change request: %w", domain.ErrIllegalState)
)

const dateLayout = "2006-01-02"

type Config struct {
	Now func() time.Time
}

type Service struct {
	uow      *uow.UoW
	notifier notify.Gateway
	logger   *slog.Logger
	cfg      Config
}

func New(u *uow.UoW, notifier notify.Gateway, logger *slog.Logger, cfg Config) *Service {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		uow:      u,
		notifier: notifier,
		logger:   logger,
		cfg:      cfg,
	}
}

// ParseDate accepts RFC3339 or a bare 2006-01-02 date (midnight UTC).
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}

	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is not RFC3339 or %s: %w", s, dateLayout, ErrInvalidDate)
	}

	return t, nil
}

// Request files a date change for a live booking.
//
// Parameters:
//   - ctx: request-scoped context.
//   - bookingID: the booking.
//   - userID: the requesting customer.
//   - requestedDate: new start date, RFC3339 or 2006-01-02.
//   - reason: free text.
//
// Returns:
//   - *domain.Booking: the booking carrying the PENDING request.
//   - error: datechange.ErrInvalidDate if the date is malformed or in the past.
//   - error: datechange.ErrRequestAlreadyPending if a request is already open.
//   - error: datechange.ErrBookingClosed if the booking is CANCELLED, REFUNDED or COMPLETED.
func (s *Service) Request(
	ctx context.Context,
	bookingID uuid.UUID,
	userID int64,
	requestedDate string,
	reason string,
) (*domain.Booking, error) {
	const op = "service.datechange.Request"

	date, err := ParseDate(requestedDate)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	now := s.cfg.Now().UTC()
	if date.Before(now) {
		return nil, fmt.Errorf("%s: %s is in the past: %w", op, requestedDate, ErrInvalidDate)
	}

	var out *domain.Booking

	err = s.uow.Do(ctx, func(
		ctx context.Context,
		r repository.Repos,
		after func(uow.AfterCommit),
	) error {
		b, err := r.Bookings().GetForUpdate(ctx, bookingID)
		if err != nil {
			return mapErr(err)
		}

		if !b.Status.Live() {
			return ErrBookingClosed
		}

		if b.PendingDateChange() != nil {
			return ErrRequestAlreadyPending
		}

		b.DateChangeRequest = &domain.DateChangeRequest{
			RequestedDate: date,
			Reason:        reason,
			RequestedBy:   userID,
			RequestedAt:   now,
			Status:        domain.DateChangePending,
		}
		b.UpdatedAt = now

		if err := r.Bookings().Save(ctx, b); err != nil {
			return err
		}

		out = b

		after(func(ctx context.Context) {
			s.logger.InfoContext(ctx, "date change requested",
				slog.String("booking_id", b.ID.String()),
				slog.Time("requested_date", date),
			)
			s.notify(ctx, b.CustomerID, fmt.Sprintf(
				"We received your request to move booking %s to %s.", b.ID, date.Format(dateLayout),
			))
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// Approve accepts the pending request. A zero newStartDate takes the
// requested date; the end date follows from the package's default length.
//
// Returns:
//   - error: datechange.ErrNoPendingRequest if nothing is pending.
//   - error: datechange.ErrBookingClosed if the booking is no longer PENDING or CONFIRMED.
//   - error: datechange.ErrInvalidDate if newStartDate is in the past.
func (s *Service) Approve(
	ctx context.Context,
	bookingID uuid.UUID,
	adminID string,
	newStartDate time.Time,
	notes string,
) (*domain.Booking, error) {
	const op = "service.datechange.Approve"

	if !newStartDate.IsZero() && newStartDate.Before(s.cfg.Now().UTC()) {
		return nil, fmt.Errorf("%s: %s is in the past: %w", op, newStartDate.Format(dateLayout), ErrInvalidDate)
	}

	var out *domain.Booking

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		r repository.Repos,
		after func(uow.AfterCommit),
	) error {
		b, err := r.Bookings().GetForUpdate(ctx, bookingID)
		if err != nil {
			return mapErr(err)
		}

		// A request filed before the booking was cancelled or completed can
		// only be rejected.
		if !b.Status.Live() {
			return ErrBookingClosed
		}

		req := b.PendingDateChange()
		if req == nil {
			return ErrNoPendingRequest
		}

		start := newStartDate
		if start.IsZero() {
			start = req.RequestedDate
		}

		pkg, err := r.Packages().Get(ctx, b.PackageID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrPackageNotFound
			}
			return err
		}

		days := pkg.DefaultDays
		if days <= 0 {
			days = int(b.EndDate.Sub(b.StartDate).Hours() / 24)
		}

		now := s.cfg.Now().UTC()
		b.StartDate = start
		b.EndDate = start.AddDate(0, 0, max(days, 1))
		req.Status = domain.DateChangeApproved
		req.ReviewedBy = adminID
		req.ReviewedAt = &now
		req.ReviewNotes = notes
		b.UpdatedAt = now

		if err := r.Bookings().Save(ctx, b); err != nil {
			return err
		}

		out = b

		after(func(ctx context.Context) {
			metrics.DateChangesReviewed.WithLabelValues(string(domain.DateChangeApproved)).Inc()
			s.notify(ctx, b.CustomerID, fmt.Sprintf(
				"Your date change for booking %s was approved. New dates: %s to %s.",
				b.ID, b.StartDate.Format(dateLayout), b.EndDate.Format(dateLayout),
			))
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// Reject declines the pending request and keeps the booking dates.
//
// Returns:
//   - error: datechange.ErrNoPendingRequest if nothing is pending.
func (s *Service) Reject(ctx context.Context, bookingID uuid.UUID, adminID, notes string) (*domain.Booking, error) {
	const op = "service.datechange.Reject"

	var out *domain.Booking

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		r repository.Repos,
		after func(uow.AfterCommit),
	) error {
		b, err := r.Bookings().GetForUpdate(ctx, bookingID)
		if err != nil {
			return mapErr(err)
		}

		req := b.PendingDateChange()
		if req == nil {
			return ErrNoPendingRequest
		}

		now := s.cfg.Now().UTC()
		req.Status = domain.DateChangeRejected
		req.ReviewedBy = adminID
		req.ReviewedAt = &now
		req.ReviewNotes = notes
		b.UpdatedAt = now

		if err := r.Bookings().Save(ctx, b); err != nil {
			return err
		}

		out = b

		after(func(ctx context.Context) {
			metrics.DateChangesReviewed.WithLabelValues(string(domain.DateChangeRejected)).Inc()
			msg := fmt.Sprintf("Your date change for booking %s was declined.", b.ID)
			if notes != "" {
				msg += " " + notes
			}
			s.notify(ctx, b.CustomerID, msg)
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

func (s *Service) notify(ctx context.Context, userID int64, message string) {
	if s.notifier == nil {
		return
	}

	if err := s.notifier.Notify(ctx, userID, message); err != nil {
		s.logger.WarnContext(ctx, "notification failed",
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}

func mapErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrBookingNotFound
	}
	return err
}
