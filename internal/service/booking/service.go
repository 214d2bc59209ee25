package booking

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
	"github.com/kirinyoku/tourgo/internal/service/capacity"
	"github.com/kirinyoku/tourgo/internal/service/catalog"
	"github.com/kirinyoku/tourgo/internal/service/rewards"
	"github.com/kirinyoku/tourgo/internal/uow"
)

type Config struct {
	// RestorePointsOnCancel credits redeemed points back when a booking is
	// cancelled. Off by default: redeemed points are spent at creation.
	RestorePointsOnCancel bool
	DefaultListLimit      int
	MaxListLimit          int
	Now                   func() time.Time
}

type Service struct {
	uow      *uow.UoW
	catalog  *catalog.Service
	capacity *capacity.Service
	rewards  *rewards.Service
	notifier notify.Gateway
	logger   *slog.Logger
	cfg      Config
}

func New(
	u *uow.UoW,
	catalog *catalog.Service,
	capacity *capacity.Service,
	rewards *rewards.Service,
	notifier notify.Gateway,
	logger *slog.Logger,
	cfg Config,
) *Service {
	if cfg.DefaultListLimit <= 0 {
		cfg.DefaultListLimit = 50
	}

	if cfg.MaxListLimit <= 0 || cfg.MaxListLimit < cfg.DefaultListLimit {
		cfg.MaxListLimit = 500
	}

	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		uow:      u,
		catalog:  catalog,
		capacity: capacity,
		rewards:  rewards,
		notifier: notifier,
		logger:   logger,
		cfg:      cfg,
	}
}

type CreateInput struct {
	CustomerID       int64
	PackageID        int64
	Type             domain.BookingType
	GroupDepartureID *int64
	StartDate        time.Time
	EndDate          time.Time
	NumTravelers     int
	Travelers        []domain.Traveler
	TotalCents       int64
	Currency         string
	ReservedSeats    []string
	PointsToUse      int64
	Notes            string
}

func (in CreateInput) validate() error {
	switch {
	case !in.Type.Valid():
		return fmt.Errorf("unknown booking type %q: %w", in.Type, ErrInvalidBooking)
	case in.NumTravelers < 1:
		return fmt.Errorf("at least one traveler is required: %w", ErrInvalidBooking)
	case len(in.Travelers) != in.NumTravelers:
		return fmt.Errorf("%d travelers listed for %d: %w", len(in.Travelers), in.NumTravelers, ErrInvalidBooking)
	case !in.EndDate.After(in.StartDate):
		return fmt.Errorf("end date must be after start date: %w", ErrInvalidBooking)
	case in.TotalCents <= 0:
		return fmt.Errorf("total amount must be positive: %w", ErrInvalidBooking)
	case in.Currency == "":
		return fmt.Errorf("currency is required: %w", ErrInvalidBooking)
	case in.PointsToUse < 0:
		return fmt.Errorf("points must not be negative: %w", ErrInvalidBooking)
	case in.Type == domain.BookingGroup && in.GroupDepartureID == nil:
		return fmt.Errorf("group booking requires a departure: %w", ErrInvalidBooking)
	case in.Type != domain.BookingGroup && (in.GroupDepartureID != nil || len(in.ReservedSeats) > 0):
		return fmt.Errorf("only group bookings reserve departure seats: %w", ErrInvalidBooking)
	}
	return nil
}

// Create books a package. For GROUP bookings seats are reserved on the
// departure, and requested points are redeemed, in the same transaction as
// the booking insert; any failure leaves every store unchanged.
//
// Parameters:
//   - ctx: request-scoped context.
//   - in: booking request.
//
// Returns:
//   - *domain.Booking: the PENDING booking.
//   - error: booking.ErrInvalidBooking or booking.ErrPackageInactive on bad input.
//   - error: catalog.ErrPackageNotFound if the package does not exist.
//   - error: capacity.ErrDepartureNotOpen, ErrInsufficientSeats or ErrSeatConflict for GROUP bookings.
//   - error: rewards.ErrInsufficientPoints if the customer cannot cover PointsToUse.
func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.Booking, error) {
	const op = "service.booking.Create"

	if err := in.validate(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	pkg, err := s.catalog.GetPackage(ctx, in.PackageID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if !pkg.IsActive {
		return nil, fmt.Errorf("%s:%w", op, ErrPackageInactive)
	}

	now := s.cfg.Now().UTC()
	b := &domain.Booking{
		ID:               uuid.New(),
		CustomerID:       in.CustomerID,
		PackageID:        in.PackageID,
		Type:             in.Type,
		GroupDepartureID: in.GroupDepartureID,
		StartDate:        in.StartDate,
		EndDate:          in.EndDate,
		NumTravelers:     in.NumTravelers,
		Travelers:        in.Travelers,
		Notes:            in.Notes,
		TotalCents:       in.TotalCents,
		Currency:         in.Currency,
		Status:           domain.BookingPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	err = s.uow.Do(ctx, func(
		ctx context.Context,
		r repository.Repos,
		after func(uow.AfterCommit),
	) error {
		if b.Type == domain.BookingGroup {
			d, err := s.capacity.ReserveIn(ctx, r, *b.GroupDepartureID, b.NumTravelers, in.ReservedSeats)
			if err != nil {
				return err
			}

			if d.PackageID != b.PackageID {
				return ErrDepartureMismatch
			}

			b.ReservedSeats = in.ReservedSeats
			s.capacity.Changed(after, d.ID)
		}

		if in.PointsToUse > 0 {
			red, err := s.rewards.RedeemIn(ctx, r, b.CustomerID, in.PointsToUse, b.TotalCents, b.ID)
			if err != nil {
				return err
			}

			b.PointsUsed = red.Points
			b.DiscountCents = red.DiscountCents
		}

		b.FinalCents = b.TotalCents - b.DiscountCents

		if err := r.Bookings().Create(ctx, b); err != nil {
			return err
		}

		after(func(ctx context.Context) {
			metrics.BookingsCreated.WithLabelValues(string(b.Type)).Inc()
			s.logger.InfoContext(ctx, "booking created",
				slog.String("booking_id", b.ID.String()),
				slog.Int64("customer_id", b.CustomerID),
				slog.String("type", string(b.Type)),
				slog.Int64("final_cents", b.FinalCents),
			)
			s.notify(ctx, b.CustomerID, fmt.Sprintf(
				"Your booking %s for %s is received. Amount due: %s.",
				b.ID, pkg.Name, formatMoney(b.FinalCents, b.Currency),
			))
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return b, nil
}

// Get returns a booking.
//
// Returns:
//   - error: booking.ErrBookingNotFound if the booking does not exist.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	const op = "service.booking.Get"

	b, err := s.uow.Repos().Bookings().Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, mapErr(err))
	}

	return b, nil
}

// List returns bookings matching the filter, newest first. Limit defaults to
// DefaultListLimit and is capped at MaxListLimit.
func (s *Service) List(ctx context.Context, f domain.BookingFilter) ([]domain.Booking, error) {
	const op = "service.booking.List"

	if f.Limit <= 0 {
		f.Limit = s.cfg.DefaultListLimit
	}

	if f.Limit > s.cfg.MaxListLimit {
		f.Limit = s.cfg.MaxListLimit
	}

	if f.Offset < 0 {
		f.Offset = 0
	}

	if f.StartFrom != nil && f.StartTo != nil && f.StartTo.Before(*f.StartFrom) {
		return nil, fmt.Errorf("%s: empty date range: %w", op, ErrInvalidBooking)
	}

	list, err := s.uow.Repos().Bookings().List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return list, nil
}

type UpdateInput struct {
	Travelers *[]domain.Traveler
	Notes     *string
}

// Update edits travelers or notes on a PENDING booking. The traveler count is
// fixed at creation because it drives the seat reservation.
//
// Returns:
//   - error: booking.ErrNotEditable unless the booking is PENDING.
//   - error: booking.ErrInvalidBooking if the traveler list changes length.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*domain.Booking, error) {
	const op = "service.booking.Update"

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

		if b.Status != domain.BookingPending {
			return ErrNotEditable
		}

		if in.Travelers != nil {
			if len(*in.Travelers) != b.NumTravelers {
				return fmt.Errorf("%d travelers listed for %d: %w", len(*in.Travelers), b.NumTravelers, ErrInvalidBooking)
			}
			b.Travelers = append([]domain.Traveler(nil), (*in.Travelers)...)
		}

		if in.Notes != nil {
			b.Notes = *in.Notes
		}

		b.UpdatedAt = s.cfg.Now().UTC()

		if err := r.Bookings().Save(ctx, b); err != nil {
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

func formatMoney(cents int64, currency string) string {
	return fmt.Sprintf("%s %d.%02d", currency, cents/100, cents%100)
}

func mapErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrBookingNotFound
	}
	return err
}
