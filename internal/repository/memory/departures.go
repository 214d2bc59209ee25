package memory

import (
	"context"
	"time"

	"github.com/kirinyoku/tourgo/internal/domain"
	"github.com/kirinyoku/tourgo/internal/repository"
)

type departureRepo struct {
	v view
}

func (r *departureRepo) Create(_ context.Context, d *domain.GroupDeparture) error {
	return r.v.do(func(st *state) error {
		st.departureSeq++
		d.ID = st.departureSeq
		st.departures[d.ID] = d.Clone()
		return nil
	})
}

func (r *departureRepo) Get(_ context.Context, id int64) (*domain.GroupDeparture, error) {
	var out *domain.GroupDeparture
	err := r.v.do(func(st *state) error {
		d, ok := st.departures[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = d.Clone()
		return nil
	})
	return out, err
}

func (r *departureRepo) GetForUpdate(ctx context.Context, id int64) (*domain.GroupDeparture, error) {
	return r.Get(ctx, id)
}

func (r *departureRepo) IncrementBooked(_ context.Context, id int64, n int) (*domain.GroupDeparture, error) {
	return r.mutate(id, func(d *domain.GroupDeparture) error {
		if d.Status != domain.DepartureOpen || d.BookedSeats+n > d.TotalSeats {
			return repository.ErrCapacityExceeded
		}
		d.BookedSeats += n
		if d.BookedSeats >= d.TotalSeats {
			d.Status = domain.DepartureFull
		}
		return nil
	})
}

func (r *departureRepo) DecrementBooked(_ context.Context, id int64, n int) (*domain.GroupDeparture, error) {
	return r.mutate(id, func(d *domain.GroupDeparture) error {
		d.BookedSeats = max(d.BookedSeats-n, 0)
		if d.Status == domain.DepartureFull && d.BookedSeats < d.TotalSeats {
			d.Status = domain.DepartureOpen
		}
		return nil
	})
}

func (r *departureRepo) SetSeatStates(_ context.Context, id int64, seatIDs []string, state domain.SeatState) error {
	_, err := r.mutate(id, func(d *domain.GroupDeparture) error {
		if d.SeatMap == nil {
			return nil
		}
		for _, s := range seatIDs {
			d.SeatMap[s] = state
		}
		return nil
	})
	return err
}

func (r *departureRepo) SetStatus(_ context.Context, id int64, status domain.DepartureStatus) (*domain.GroupDeparture, error) {
	return r.mutate(id, func(d *domain.GroupDeparture) error {
		d.Status = status
		return nil
	})
}

func (r *departureRepo) Update(_ context.Context, d *domain.GroupDeparture) error {
	return r.v.do(func(st *state) error {
		cur, ok := st.departures[d.ID]
		if !ok {
			return repository.ErrNotFound
		}
		next := d.Clone()
		next.BookedSeats = cur.BookedSeats
		next.CreatedAt = cur.CreatedAt
		st.departures[d.ID] = next
		return nil
	})
}

// mutate applies fn to a copy and stores it only when fn succeeds.
func (r *departureRepo) mutate(id int64, fn func(d *domain.GroupDeparture) error) (*domain.GroupDeparture, error) {
	var out *domain.GroupDeparture
	err := r.v.do(func(st *state) error {
		cur, ok := st.departures[id]
		if !ok {
			return repository.ErrNotFound
		}
		next := cur.Clone()
		if err := fn(next); err != nil {
			return err
		}
		next.UpdatedAt = time.Now().UTC()
		st.departures[id] = next
		out = next.Clone()
		return nil
	})
	return out, err
}
