package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/tourgo/internal/domain"
	"github.com/kirinyoku/tourgo/internal/repository"
	"github.com/samber/lo"
)

type bookingRepo struct {
	v view
}

func (r *bookingRepo) Create(_ context.Context, b *domain.Booking) error {
	return r.v.do(func(st *state) error {
		if _, ok := st.bookings[b.ID]; ok {
			return repository.ErrConflict
		}
		st.bookings[b.ID] = b.Clone()
		st.bookingOrder = append(st.bookingOrder, b.ID)
		return nil
	})
}

func (r *bookingRepo) Get(_ context.Context, id uuid.UUID) (*domain.Booking, error) {
	var out *domain.Booking
	err := r.v.do(func(st *state) error {
		b, ok := st.bookings[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = b.Clone()
		return nil
	})
	return out, err
}

func (r *bookingRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	return r.Get(ctx, id)
}

func (r *bookingRepo) Save(_ context.Context, b *domain.Booking) error {
	return r.v.do(func(st *state) error {
		cur, ok := st.bookings[b.ID]
		if !ok {
			return repository.ErrNotFound
		}
		next := b.Clone()
		// Payments are append-only: keep stored records, add unseen ones.
		seen := lo.SliceToMap(cur.Payments, func(p domain.Payment) (uuid.UUID, struct{}) {
			return p.ID, struct{}{}
		})
		payments := append([]domain.Payment(nil), cur.Payments...)
		for _, p := range b.Payments {
			if _, ok := seen[p.ID]; !ok {
				payments = append(payments, p)
			}
		}
		next.Payments = payments
		next.CreatedAt = cur.CreatedAt
		st.bookings[b.ID] = next
		return nil
	})
}

func (r *bookingRepo) List(_ context.Context, f domain.BookingFilter) ([]domain.Booking, error) {
	var out []domain.Booking
	err := r.v.do(func(st *state) error {
		for i := len(st.bookingOrder) - 1; i >= 0; i-- {
			b := st.bookings[st.bookingOrder[i]]
			if f.Match(b) {
				out = append(out, *b.Clone())
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if f.Offset >= len(out) {
		return nil, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *bookingRepo) ListStartedLive(_ context.Context, now time.Time) ([]domain.Booking, error) {
	var out []domain.Booking
	err := r.v.do(func(st *state) error {
		for _, id := range st.bookingOrder {
			b := st.bookings[id]
			if b.Status.Live() && !b.StartDate.After(now) {
				out = append(out, *b.Clone())
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, err
}

func (r *bookingRepo) HeldSeats(_ context.Context, departureID int64) ([]string, error) {
	var held []string
	err := r.v.do(func(st *state) error {
		for _, b := range st.bookings {
			if b.GroupDepartureID != nil && *b.GroupDepartureID == departureID && b.Status.Live() {
				held = append(held, b.ReservedSeats...)
			}
		}
		return nil
	})
	return held, err
}
