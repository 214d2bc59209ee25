package capacity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kirinyoku/tourgo/internal/domain"
	"github.com/kirinyoku/tourgo/internal/repository"
	"github.com/kirinyoku/tourgo/internal/uow"
)

type CreateDepartureInput struct {
	PackageID           int64
	StartDate           time.Time
	EndDate             time.Time
	TotalSeats          int
	PricePerPersonCents int64
	Currency            string
	Operators           []string
	Itinerary           []string
	// SeatIDs, when set, enables per-seat tracking with every seat AVAILABLE.
	SeatIDs []string
}

func (s *Service) Get(ctx context.Context, departureID int64) (*domain.GroupDeparture, error) {
	const op = "service.capacity.Get"

	d, err := s.uow.Repos().Departures().Get(ctx, departureID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, mapErr(err))
	}

	return d, nil
}

// Create schedules a new OPEN departure for a package.
//
// Returns:
//   - error: capacity.ErrInvalidDeparture on bad dates, seats or operators.
//   - error: capacity.ErrPackageNotFound if the package does not exist.
func (s *Service) Create(ctx context.Context, in CreateDepartureInput) (*domain.GroupDeparture, error) {
	const op = "service.capacity.Create"

	switch {
	case !in.EndDate.After(in.StartDate):
		return nil, fmt.Errorf("%s: end date must be after start date: %w", op, ErrInvalidDeparture)
	case in.TotalSeats <= 0:
		return nil, fmt.Errorf("%s: total seats must be positive: %w", op, ErrInvalidDeparture)
	case len(in.Operators) == 0:
		return nil, fmt.Errorf("%s: at least one operator is required: %w", op, ErrInvalidDeparture)
	case in.PricePerPersonCents < 0:
		return nil, fmt.Errorf("%s: price must not be negative: %w", op, ErrInvalidDeparture)
	case len(in.SeatIDs) > 0 && len(in.SeatIDs) != in.TotalSeats:
		return nil, fmt.Errorf("%s: seat map must list every seat: %w", op, ErrInvalidDeparture)
	}

	now := s.cfg.Now().UTC()
	d := &domain.GroupDeparture{
		PackageID:           in.PackageID,
		StartDate:           in.StartDate,
		EndDate:             in.EndDate,
		TotalSeats:          in.TotalSeats,
		PricePerPersonCents: in.PricePerPersonCents,
		Currency:            in.Currency,
		Status:              domain.DepartureOpen,
		Operators:           in.Operators,
		Itinerary:           in.Itinerary,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if d.Currency == "" {
		d.Currency = "BDT"
	}
	if len(in.SeatIDs) > 0 {
		d.SeatMap = make(map[string]domain.SeatState, len(in.SeatIDs))
		for _, id := range in.SeatIDs {
			d.SeatMap[id] = domain.SeatAvailable
		}
		if len(d.SeatMap) != len(in.SeatIDs) {
			return nil, fmt.Errorf("%s: duplicate seat IDs: %w", op, ErrInvalidDeparture)
		}
	}

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		r repository.Repos,
		after func(uow.AfterCommit),
	) error {
		if _, err := r.Packages().Get(ctx, in.PackageID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrPackageNotFound
			}
			return err
		}

		return r.Departures().Create(ctx, d)
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return d, nil
}

// Update applies a typed partial update. Booked seats never change here; a
// capacity change that crosses the booked count flips FULL and OPEN.
//
// Returns:
//   - error: capacity.ErrInvalidDeparture if the result would break an invariant.
//   - error: capacity.ErrDepartureNotFound if the departure does not exist.
func (s *Service) Update(ctx context.Context, departureID int64, upd domain.DepartureUpdate) (*domain.GroupDeparture, error) {
	const op = "service.capacity.Update"

	var out *domain.GroupDeparture

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		r repository.Repos,
		after func(uow.AfterCommit),
	) error {
		d, err := r.Departures().GetForUpdate(ctx, departureID)
		if err != nil {
			return mapErr(err)
		}

		if err := applyUpdate(d, upd); err != nil {
			return err
		}

		d.UpdatedAt = s.cfg.Now().UTC()

		if err := r.Departures().Update(ctx, d); err != nil {
			return mapErr(err)
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

func applyUpdate(d *domain.GroupDeparture, upd domain.DepartureUpdate) error {
	if upd.StartDate != nil {
		d.StartDate = *upd.StartDate
	}
	if upd.EndDate != nil {
		d.EndDate = *upd.EndDate
	}
	if !d.EndDate.After(d.StartDate) {
		return fmt.Errorf("end date must be after start date: %w", ErrInvalidDeparture)
	}

	if upd.TotalSeats != nil {
		if *upd.TotalSeats <= 0 || *upd.TotalSeats < d.BookedSeats {
			return fmt.Errorf("total seats %d below booked %d: %w", *upd.TotalSeats, d.BookedSeats, ErrInvalidDeparture)
		}
		d.TotalSeats = *upd.TotalSeats
	}

	if upd.PricePerPersonCents != nil {
		if *upd.PricePerPersonCents < 0 {
			return fmt.Errorf("price must not be negative: %w", ErrInvalidDeparture)
		}
		d.PricePerPersonCents = *upd.PricePerPersonCents
	}

	if upd.Operators != nil {
		if len(*upd.Operators) == 0 {
			return fmt.Errorf("at least one operator must remain assigned: %w", ErrInvalidDeparture)
		}
		d.Operators = append([]string(nil), (*upd.Operators)...)
	}

	if upd.Itinerary != nil {
		d.Itinerary = append([]string(nil), (*upd.Itinerary)...)
	}

	if upd.SeatMap != nil {
		d.SeatMap = *upd.SeatMap
	}

	if upd.Status != nil {
		if !upd.Status.Valid() {
			return fmt.Errorf("unknown status %q: %w", *upd.Status, ErrInvalidDeparture)
		}
		d.Status = *upd.Status
	} else if upd.TotalSeats != nil {
		switch {
		case d.Status == domain.DepartureFull && d.BookedSeats < d.TotalSeats:
			d.Status = domain.DepartureOpen
		case d.Status == domain.DepartureOpen && d.BookedSeats >= d.TotalSeats:
			d.Status = domain.DepartureFull
		}
	}

	return nil
}
