package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"
	"github.com/kirinyoku/tourgo/internal/domain"
	"github.com/kirinyoku/tourgo/internal/metrics"
	"github.com/kirinyoku/tourgo/internal/repository"
	"github.com/kirinyoku/tourgo/internal/service/refund"
	"github.com/kirinyoku/tourgo/internal/uow"
)

// Cancel cancels a PENDING or CONFIRMED booking under the tiered refund
// policy and releases its seats in the same transaction.
//
// Parameters:
//   - ctx: request-scoped context.
//   - id: the booking.
//   - userID: who cancels; recorded on the cancellation.
//   - reason: free text.
//
// Returns:
//   - *domain.Booking: the CANCELLED booking.
//   - error: booking.ErrAlreadyCancelled if already CANCELLED or REFUNDED.
//   - error: booking.ErrAlreadyCompleted if COMPLETED.
//   - error: booking.ErrBookingNotFound if the booking does not exist.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, userID int64, reason string) (*domain.Booking, error) {
	const op = "service.booking.Cancel"

	var out *domain.Booking

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		r repository.Repos,
		after func(uow.AfterCommit),
	) error {
		b, err := r.Bookings().GetForUpdate(ctx, id)
		if err != nil {
			return mapErr(err)
		}

		switch b.Status {
		case domain.BookingCancelled, domain.BookingRefunded:
			return ErrAlreadyCancelled
		case domain.BookingCompleted:
			return ErrAlreadyCompleted
		}

		decision := refund.PolicyTieredRefund(s.cfg.Now().UTC(), b.StartDate, b.TotalPaid())

		if err := s.cancelIn(ctx, r, after, b, strconv.FormatInt(userID, 10), reason, decision); err != nil {
			return err
		}

		out = b

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// cancelIn moves a live booking to CANCELLED. The caller holds the booking
// lock and has checked the status.
func (s *Service) cancelIn(
	ctx context.Context,
	r repository.Repos,
	after func(uow.AfterCommit),
	b *domain.Booking,
	cancelledBy, reason string,
	decision refund.Decision,
) error {
	if b.Type == domain.BookingGroup && b.GroupDepartureID != nil {
		if _, err := s.capacity.ReleaseIn(ctx, r, *b.GroupDepartureID, b.NumTravelers, b.ReservedSeats); err != nil {
			return err
		}
		s.capacity.Changed(after, *b.GroupDepartureID)
	}

	now := s.cfg.Now().UTC()
	from := b.Status

	b.Status = domain.BookingCancelled
	b.Cancellation = &domain.CancellationRecord{
		Reason:      reason,
		CancelledBy: cancelledBy,
		CancelledAt: now,
		RefundCents: decision.AmountCents,
		Policy:      decision.Policy,
	}

	if decision.AmountCents > 0 {
		b.Payments = append(b.Payments, domain.Payment{
			ID:          uuid.New(),
			AmountCents: decision.AmountCents,
			Method:      domain.MethodRefund,
			Status:      domain.PaymentPending,
			CreatedAt:   now,
		})
	}

	if s.cfg.RestorePointsOnCancel && b.PointsUsed > 0 {
		if err := s.rewards.RestoreIn(ctx, r, b.CustomerID, b.PointsUsed, b.ID); err != nil {
			return err
		}
		b.Cancellation.PointsRestored = b.PointsUsed
	}

	b.UpdatedAt = now

	if err := r.Bookings().Save(ctx, b); err != nil {
		return err
	}

	after(func(ctx context.Context) {
		metrics.BookingTransitions.WithLabelValues(string(domain.BookingCancelled)).Inc()
		metrics.RefundsIssued.WithLabelValues(decision.Policy).Add(float64(decision.AmountCents))
		s.logger.InfoContext(ctx, "booking cancelled",
			slog.String("booking_id", b.ID.String()),
			slog.String("from", string(from)),
			slog.String("cancelled_by", cancelledBy),
			slog.String("policy", decision.Policy),
			slog.Int64("refund_cents", decision.AmountCents),
		)

		msg := fmt.Sprintf("Your booking %s has been cancelled.", b.ID)
		if decision.AmountCents > 0 {
			msg = fmt.Sprintf("Your booking %s has been cancelled. A refund of %s will be processed.",
				b.ID, formatMoney(decision.AmountCents, b.Currency))
		}
		s.notify(ctx, b.CustomerID, msg)
	})

	return nil
}

// AddPayment records a successful payment. A PENDING booking becomes
// CONFIRMED once the effective paid sum reaches the booking total.
//
// Returns:
//   - error: booking.ErrInvalidPayment on a non-positive amount or unusable method.
//   - error: booking.ErrBookingClosed if the booking is CANCELLED or REFUNDED.
func (s *Service) AddPayment(
	ctx context.Context,
	id uuid.UUID,
	amountCents int64,
	method domain.PaymentMethod,
	txRef string,
) (*domain.Booking, error) {
	const op = "service.booking.AddPayment"

	switch {
	case amountCents <= 0:
		return nil, fmt.Errorf("%s: amount must be positive: %w", op, ErrInvalidPayment)
	case !method.Valid() || method == domain.MethodRefund:
		return nil, fmt.Errorf("%s: unsupported method %q: %w", op, method, ErrInvalidPayment)
	}

	var out *domain.Booking

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		r repository.Repos,
		after func(uow.AfterCommit),
	) error {
		b, err := r.Bookings().GetForUpdate(ctx, id)
		if err != nil {
			return mapErr(err)
		}

		if b.Status == domain.BookingCancelled || b.Status == domain.BookingRefunded {
			return ErrBookingClosed
		}

		now := s.cfg.Now().UTC()
		b.Payments = append(b.Payments, domain.Payment{
			ID:             uuid.New(),
			AmountCents:    amountCents,
			Method:         method,
			Status:         domain.PaymentSuccess,
			TransactionRef: txRef,
			CreatedAt:      now,
		})

		confirmed := b.Status == domain.BookingPending && b.TotalPaid() >= b.TotalCents
		if confirmed {
			b.Status = domain.BookingConfirmed
		}

		b.UpdatedAt = now

		if err := r.Bookings().Save(ctx, b); err != nil {
			return err
		}

		out = b

		if confirmed {
			after(func(ctx context.Context) {
				metrics.BookingTransitions.WithLabelValues(string(domain.BookingConfirmed)).Inc()
				s.logger.InfoContext(ctx, "booking confirmed", slog.String("booking_id", b.ID.String()))
				s.notify(ctx, b.CustomerID, fmt.Sprintf("Your booking %s is confirmed. Thank you for your payment.", b.ID))
			})
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// Complete marks the tour as taken and awards completion points once.
//
// Returns:
//   - error: booking.ErrAlreadyCancelled if CANCELLED or REFUNDED.
//   - error: booking.ErrAlreadyCompleted if COMPLETED.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	const op = "service.booking.Complete"

	var out *domain.Booking

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		r repository.Repos,
		after func(uow.AfterCommit),
	) error {
		b, err := r.Bookings().GetForUpdate(ctx, id)
		if err != nil {
			return mapErr(err)
		}

		switch b.Status {
		case domain.BookingCancelled, domain.BookingRefunded:
			return ErrAlreadyCancelled
		case domain.BookingCompleted:
			return ErrAlreadyCompleted
		}

		// Read through the transaction; the package category picks the bonus.
		pkg, err := r.Packages().Get(ctx, b.PackageID)
		if err != nil {
			return err
		}

		earned, err := s.rewards.EarnIn(ctx, r, b.CustomerID, pkg.Category, b.FinalCents, b.ID)
		if err != nil {
			return err
		}

		b.Status = domain.BookingCompleted
		b.PointsEarned = earned
		b.UpdatedAt = s.cfg.Now().UTC()

		if err := r.Bookings().Save(ctx, b); err != nil {
			return err
		}

		out = b

		after(func(ctx context.Context) {
			metrics.BookingTransitions.WithLabelValues(string(domain.BookingCompleted)).Inc()
			s.notify(ctx, b.CustomerID, fmt.Sprintf(
				"Thanks for travelling with us. You earned %d reward points.", earned,
			))
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// ProcessRefund settles the refund of a CANCELLED booking. A refund recorded
// as zero is recomputed with the tiered policy as of the cancellation time.
//
// Parameters:
//   - ctx: request-scoped context.
//   - id: the booking.
//   - adminID: the operator processing the refund.
//
// Returns:
//   - *domain.Booking: the REFUNDED booking.
//   - error: booking.ErrRefundAlreadyProcessed if it was already refunded.
//   - error: booking.ErrNotCancelled for any status other than CANCELLED.
//   - error: booking.ErrNoRefundApplicable if nothing was paid or nothing is due.
func (s *Service) ProcessRefund(ctx context.Context, id uuid.UUID, adminID string) (*domain.Booking, error) {
	const op = "service.booking.ProcessRefund"

	var out *domain.Booking

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		r repository.Repos,
		after func(uow.AfterCommit),
	) error {
		b, err := r.Bookings().GetForUpdate(ctx, id)
		if err != nil {
			return mapErr(err)
		}

		switch b.Status {
		case domain.BookingCancelled:
		case domain.BookingRefunded:
			return ErrRefundAlreadyProcessed
		default:
			return ErrNotCancelled
		}

		c := b.Cancellation
		if c == nil {
			c = &domain.CancellationRecord{CancelledAt: b.UpdatedAt}
			b.Cancellation = c
		}

		if c.RefundProcessed {
			return ErrRefundAlreadyProcessed
		}

		paid := b.TotalPaid()
		if paid == 0 {
			return ErrNoRefundApplicable
		}

		if c.RefundCents == 0 {
			d := refund.PolicyTieredRefund(c.CancelledAt, b.StartDate, paid)
			c.RefundCents = d.AmountCents
			c.Policy = d.Policy
		}

		if c.RefundCents == 0 {
			return ErrNoRefundApplicable
		}

		now := s.cfg.Now().UTC()
		c.RefundProcessed = true
		c.RefundProcessedAt = &now
		c.RefundProcessedBy = adminID

		b.Payments = append(b.Payments, domain.Payment{
			ID:             uuid.New(),
			AmountCents:    c.RefundCents,
			Method:         domain.MethodRefund,
			Status:         domain.PaymentSuccess,
			TransactionRef: "refund:" + b.ID.String(),
			CreatedAt:      now,
		})
		b.Status = domain.BookingRefunded
		b.UpdatedAt = now

		if err := r.Bookings().Save(ctx, b); err != nil {
			return err
		}

		out = b

		after(func(ctx context.Context) {
			metrics.BookingTransitions.WithLabelValues(string(domain.BookingRefunded)).Inc()
			s.logger.InfoContext(ctx, "refund processed",
				slog.String("booking_id", b.ID.String()),
				slog.String("admin_id", adminID),
				slog.Int64("refund_cents", c.RefundCents),
			)
			s.notify(ctx, b.CustomerID, fmt.Sprintf(
				"Your refund of %s for booking %s has been processed.",
				formatMoney(c.RefundCents, b.Currency), b.ID,
			))
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// IsFinal reports whether err is a state error that retrying cannot fix.
func IsFinal(err error) bool {
	return errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrIllegalState)
}
