package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/tourgo/internal/domain"
	"github.com/kirinyoku/tourgo/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_RunTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	c := &domain.Customer{Name: "Rahim", RewardPoints: 100}
	require.NoError(t, s.Customers().Create(ctx, c))

	boom := errors.New("boom")
	err := s.RunTx(ctx, func(ctx context.Context, r repository.Repos) error {
		if _, err := r.Customers().AdjustPoints(ctx, domain.RewardPointsEntry{CustomerID: c.ID, Amount: -40}); err != nil {
			return err
		}
		if err := r.Bookings().Create(ctx, &domain.Booking{ID: uuid.New()}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	balance, err := s.Customers().PointsBalance(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance)

	list, err := s.Bookings().List(ctx, domain.BookingFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)

	entries, err := s.Customers().Entries(ctx, c.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStore_RunTxCommits(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	id := uuid.New()
	err := s.RunTx(ctx, func(ctx context.Context, r repository.Repos) error {
		return r.Bookings().Create(ctx, &domain.Booking{ID: id, Status: domain.BookingPending})
	})
	require.NoError(t, err)

	b, err := s.Bookings().Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingPending, b.Status)
}

func TestDepartures_IncrementBookedGuard(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	d := &domain.GroupDeparture{TotalSeats: 3, Status: domain.DepartureOpen}
	require.NoError(t, s.Departures().Create(ctx, d))

	got, err := s.Departures().IncrementBooked(ctx, d.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, got.BookedSeats)
	assert.Equal(t, domain.DepartureOpen, got.Status)

	_, err = s.Departures().IncrementBooked(ctx, d.ID, 2)
	assert.ErrorIs(t, err, repository.ErrCapacityExceeded)

	got, err = s.Departures().IncrementBooked(ctx, d.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.DepartureFull, got.Status)

	_, err = s.Departures().IncrementBooked(ctx, d.ID, 1)
	assert.ErrorIs(t, err, repository.ErrCapacityExceeded)

	got, err = s.Departures().DecrementBooked(ctx, d.ID, 5)
	require.NoError(t, err)
	assert.Zero(t, got.BookedSeats)
	assert.Equal(t, domain.DepartureOpen, got.Status)
}

func TestBookings_SaveKeepsStoredPayments(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	b := &domain.Booking{
		ID:       uuid.New(),
		Payments: []domain.Payment{{ID: uuid.New(), AmountCents: 100, Status: domain.PaymentSuccess}},
	}
	require.NoError(t, s.Bookings().Create(ctx, b))

	// A stale copy without the stored payment must not drop it.
	stale := b.Clone()
	stale.Payments = []domain.Payment{{ID: uuid.New(), AmountCents: 50, Status: domain.PaymentSuccess}}
	require.NoError(t, s.Bookings().Save(ctx, stale))

	got, err := s.Bookings().Get(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, got.Payments, 2)
	assert.Equal(t, int64(150), got.TotalPaid())
}

func TestBookings_ListAndSweepQueries(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	dep := int64(1)

	mk := func(status domain.BookingStatus, start time.Time, seats ...string) *domain.Booking {
		b := &domain.Booking{
			ID:               uuid.New(),
			CustomerID:       1,
			GroupDepartureID: &dep,
			Status:           status,
			StartDate:        start,
			ReservedSeats:    seats,
		}
		require.NoError(t, s.Bookings().Create(ctx, b))
		return b
	}

	started := mk(domain.BookingPending, now.Add(-time.Hour), "1A")
	mk(domain.BookingConfirmed, now.Add(48*time.Hour), "1B")
	mk(domain.BookingCancelled, now.Add(-time.Hour), "1C")
	last := mk(domain.BookingCompleted, now.Add(-48*time.Hour))

	live, err := s.Bookings().ListStartedLive(ctx, now)
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, started.ID, live[0].ID)

	held, err := s.Bookings().HeldSeats(ctx, dep)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"1A", "1B"}, held)

	page, err := s.Bookings().List(ctx, domain.BookingFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, last.ID, page[0].ID)

	page, err = s.Bookings().List(ctx, domain.BookingFilter{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestCustomers_AdjustPointsRejectsOverdraft(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	c := &domain.Customer{RewardPoints: 10}
	require.NoError(t, s.Customers().Create(ctx, c))

	_, err := s.Customers().AdjustPoints(ctx, domain.RewardPointsEntry{CustomerID: c.ID, Amount: -11})
	assert.ErrorIs(t, err, repository.ErrInsufficientBalance)

	balance, err := s.Customers().AdjustPoints(ctx, domain.RewardPointsEntry{CustomerID: c.ID, Amount: -10})
	require.NoError(t, err)
	assert.Zero(t, balance)

	_, err = s.Customers().PointsBalance(ctx, 999)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
