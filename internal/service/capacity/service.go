package capacity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirinyoku/tourgo/internal/domain"
	"github.com/kirinyoku/tourgo/internal/metrics"
	"github.com/kirinyoku/tourgo/internal/repository"
	redisrepo "github.com/kirinyoku/tourgo/internal/repository/redis"
	"github.com/kirinyoku/tourgo/internal/uow"
	"github.com/samber/lo"
)

// Publisher fans out departure changes to other instances.
type Publisher interface {
	PublishDepartureChanged(ctx context.Context, departureID int64) error
	PublishDepartureCancelled(ctx context.Context, departureID int64) error
}

type Config struct {
	Now func() time.Time
}

type Service struct {
	uow    *uow.UoW
	cache  *redisrepo.Cache
	pubsub Publisher
	logger *slog.Logger
	cfg    Config
}

func New(
	u *uow.UoW,
	cache *redisrepo.Cache,
	pubsub Publisher,
	logger *slog.Logger,
	cfg Config,
) *Service {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		uow:    u,
		cache:  cache,
		pubsub: pubsub,
		logger: logger,
		cfg:    cfg,
	}
}

// Reserve books seats on a departure in its own transaction.
//
// Parameters:
//   - ctx: request-scoped context.
//   - departureID: the departure to reserve on.
//   - seatCount: number of seats.
//   - seatIDs: optional explicit seats; when given, len(seatIDs) must equal seatCount.
//
// Returns:
//   - *domain.GroupDeparture: the departure after the reservation.
//   - error: capacity.ErrDepartureNotFound, ErrDepartureNotOpen, ErrInsufficientSeats,
//     ErrSeatConflict or ErrInvalidSeats.
func (s *Service) Reserve(
	ctx context.Context,
	departureID int64,
	seatCount int,
	seatIDs []string,
) (*domain.GroupDeparture, error) {
	const op = "service.capacity.Reserve"

	var out *domain.GroupDeparture

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		r repository.Repos,
		after func(uow.AfterCommit),
	) error {
		d, err := s.ReserveIn(ctx, r, departureID, seatCount, seatIDs)
		if err != nil {
			return err
		}

		out = d
		s.Changed(after, departureID)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// ReserveIn is Reserve inside the caller's transaction. The departure row is
// locked before the seat-conflict read, and the increment itself is guarded
// by the store, so concurrent callers can never overbook.
func (s *Service) ReserveIn(
	ctx context.Context,
	r repository.Repos,
	departureID int64,
	seatCount int,
	seatIDs []string,
) (*domain.GroupDeparture, error) {
	const op = "service.capacity.ReserveIn"

	if seatCount <= 0 {
		return nil, fmt.Errorf("%s: seat count must be positive: %w", op, ErrInvalidSeats)
	}

	d, err := r.Departures().GetForUpdate(ctx, departureID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, mapErr(err))
	}

	// A FULL departure is open for business with no headroom left.
	if d.Status == domain.DepartureFull {
		s.rejected("insufficient_seats")
		return nil, fmt.Errorf("%s:%w", op, ErrInsufficientSeats)
	}

	if d.Status != domain.DepartureOpen {
		s.rejected("not_open")
		return nil, fmt.Errorf("%s:%w", op, ErrDepartureNotOpen)
	}

	if d.AvailableSeats() < seatCount {
		s.rejected("insufficient_seats")
		return nil, fmt.Errorf("%s:%w", op, ErrInsufficientSeats)
	}

	if len(seatIDs) > 0 {
		if err := s.checkSeats(ctx, r, d, seatCount, seatIDs); err != nil {
			return nil, fmt.Errorf("%s:%w", op, err)
		}
	}

	updated, err := r.Departures().IncrementBooked(ctx, departureID, seatCount)
	if err != nil {
		if errors.Is(err, repository.ErrCapacityExceeded) {
			s.rejected("insufficient_seats")
			return nil, fmt.Errorf("%s:%w", op, ErrInsufficientSeats)
		}

		return nil, fmt.Errorf("%s:%w", op, mapErr(err))
	}

	if len(seatIDs) > 0 && updated.SeatMap != nil {
		if err := r.Departures().SetSeatStates(ctx, departureID, seatIDs, domain.SeatBooked); err != nil {
			return nil, fmt.Errorf("%s:%w", op, err)
		}
		for _, id := range seatIDs {
			updated.SeatMap[id] = domain.SeatBooked
		}
	}

	return updated, nil
}

func (s *Service) checkSeats(
	ctx context.Context,
	r repository.Repos,
	d *domain.GroupDeparture,
	seatCount int,
	seatIDs []string,
) error {
	if len(seatIDs) != seatCount {
		return fmt.Errorf("%d seats requested for %d travelers: %w", len(seatIDs), seatCount, ErrInvalidSeats)
	}

	if dup := lo.FindDuplicates(seatIDs); len(dup) > 0 {
		return fmt.Errorf("duplicate seats %v: %w", dup, ErrInvalidSeats)
	}

	var taken []string

	if d.SeatMap != nil {
		unknown := lo.Filter(seatIDs, func(id string, _ int) bool {
			_, ok := d.SeatMap[id]
			return !ok
		})
		if len(unknown) > 0 {
			return fmt.Errorf("unknown seats %v: %w", unknown, ErrInvalidSeats)
		}

		taken = lo.Filter(seatIDs, func(id string, _ int) bool {
			return d.SeatMap[id] != domain.SeatAvailable
		})
	}

	held, err := r.Bookings().HeldSeats(ctx, d.ID)
	if err != nil {
		return err
	}

	taken = lo.Uniq(append(taken, lo.Intersect(held, seatIDs)...))
	if len(taken) > 0 {
		s.rejected("seat_conflict")
		return SeatConflictError{SeatIDs: taken}
	}

	return nil
}

// Release returns seats to a departure in its own transaction.
func (s *Service) Release(
	ctx context.Context,
	departureID int64,
	seatCount int,
	seatIDs []string,
) (*domain.GroupDeparture, error) {
	const op = "service.capacity.Release"

	var out *domain.GroupDeparture

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		r repository.Repos,
		after func(uow.AfterCommit),
	) error {
		d, err := s.ReleaseIn(ctx, r, departureID, seatCount, seatIDs)
		if err != nil {
			return err
		}

		out = d
		s.Changed(after, departureID)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// ReleaseIn decrements booked seats (never below zero) and reopens a FULL
// departure, inside the caller's transaction.
func (s *Service) ReleaseIn(
	ctx context.Context,
	r repository.Repos,
	departureID int64,
	seatCount int,
	seatIDs []string,
) (*domain.GroupDeparture, error) {
	const op = "service.capacity.ReleaseIn"

	if seatCount <= 0 {
		return nil, fmt.Errorf("%s: seat count must be positive: %w", op, ErrInvalidSeats)
	}

	if _, err := r.Departures().GetForUpdate(ctx, departureID); err != nil {
		return nil, fmt.Errorf("%s:%w", op, mapErr(err))
	}

	d, err := r.Departures().DecrementBooked(ctx, departureID, seatCount)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, mapErr(err))
	}

	if len(seatIDs) > 0 && d.SeatMap != nil {
		if err := r.Departures().SetSeatStates(ctx, departureID, seatIDs, domain.SeatAvailable); err != nil {
			return nil, fmt.Errorf("%s:%w", op, err)
		}
		for _, id := range seatIDs {
			d.SeatMap[id] = domain.SeatAvailable
		}
	}

	return d, nil
}

// SetStatus is an admin override. Cancelling a departure only publishes the
// event; cascading to bookings is handled by the subscriber.
func (s *Service) SetStatus(ctx context.Context, departureID int64, status domain.DepartureStatus) (*domain.GroupDeparture, error) {
	const op = "service.capacity.SetStatus"

	if !status.Valid() {
		return nil, fmt.Errorf("%s: unknown status %q: %w", op, status, ErrInvalidDeparture)
	}

	var out *domain.GroupDeparture

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		r repository.Repos,
		after func(uow.AfterCommit),
	) error {
		if _, err := r.Departures().GetForUpdate(ctx, departureID); err != nil {
			return mapErr(err)
		}

		d, err := r.Departures().SetStatus(ctx, departureID, status)
		if err != nil {
			return mapErr(err)
		}

		out = d
		s.Changed(after, departureID)

		if status == domain.DepartureCancelled {
			after(func(ctx context.Context) {
				s.logger.InfoContext(ctx, "departure cancelled", slog.Int64("departure_id", departureID))
				if s.pubsub != nil {
					_ = s.pubsub.PublishDepartureCancelled(ctx, departureID)
				}
			})
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// Changed registers the after-commit cache invalidation and change
// notification for a departure.
func (s *Service) Changed(after func(uow.AfterCommit), departureID int64) {
	after(func(ctx context.Context) {
		if err := s.cache.InvalidateDeparture(ctx, departureID); err != nil {
			s.logger.WarnContext(ctx, "departure cache invalidation failed",
				slog.Int64("departure_id", departureID),
				slog.String("error", err.Error()),
			)
		}
		if s.pubsub != nil {
			_ = s.pubsub.PublishDepartureChanged(ctx, departureID)
		}
	})
}

func (s *Service) rejected(reason string) {
	metrics.ReservationsRejected.WithLabelValues(reason).Inc()
}

func mapErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrDepartureNotFound
	}
	return err
}
