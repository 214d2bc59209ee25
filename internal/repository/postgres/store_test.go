package postgres

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/tourgo/internal/domain"
	"github.com/kirinyoku/tourgo/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore connects to TOURGO_TEST_POSTGRES_DSN and skips when it is unset.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	dsn := os.Getenv("TOURGO_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TOURGO_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	s := NewStore(pool)
	require.NoError(t, s.Migrate(ctx))
	// Migrate is idempotent.
	require.NoError(t, s.Migrate(ctx))

	return s
}

func seed(t *testing.T, s *Store, seats int) (*domain.Package, *domain.Customer, *domain.GroupDeparture) {
	t.Helper()

	ctx := context.Background()

	p := &domain.Package{Name: "Sylhet Tea Trail", Category: "Nature", DefaultDays: 3, Currency: "BDT", IsActive: true}
	require.NoError(t, s.Packages().Create(ctx, p))

	c := &domain.Customer{Name: "Farhana", Email: uuid.NewString() + "@example.com", RewardPoints: 100}
	require.NoError(t, s.Customers().Create(ctx, c))

	now := time.Now().UTC().Truncate(time.Microsecond)
	d := &domain.GroupDeparture{
		PackageID:  p.ID,
		StartDate:  now.AddDate(0, 1, 0),
		EndDate:    now.AddDate(0, 1, 3),
		TotalSeats: seats,
		Currency:   "BDT",
		Status:     domain.DepartureOpen,
		Operators:  []string{"op-1"},
		SeatMap:    map[string]domain.SeatState{"1A": domain.SeatAvailable, "1B": domain.SeatAvailable},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, s.Departures().Create(ctx, d))

	return p, c, d
}

func TestStore_IncrementBookedIsGuarded(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, _, d := seed(t, s, 5)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		succeed int
	)

	for range 12 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Departures().IncrementBooked(ctx, d.ID, 1); err == nil {
				mu.Lock()
				succeed++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, repository.ErrCapacityExceeded)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, succeed)

	got, err := s.Departures().Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.BookedSeats)
	assert.Equal(t, domain.DepartureFull, got.Status)

	got, err = s.Departures().DecrementBooked(ctx, d.ID, 10)
	require.NoError(t, err)
	assert.Zero(t, got.BookedSeats)
	assert.Equal(t, domain.DepartureOpen, got.Status)
}

func TestStore_SeatStates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, _, d := seed(t, s, 2)

	require.NoError(t, s.Departures().SetSeatStates(ctx, d.ID, []string{"1A"}, domain.SeatBooked))

	got, err := s.Departures().Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SeatBooked, got.SeatMap["1A"])
	assert.Equal(t, domain.SeatAvailable, got.SeatMap["1B"])
}

func TestStore_RunTxRollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p, c, d := seed(t, s, 2)

	boom := errors.New("boom")
	id := uuid.New()
	depID := d.ID

	err := s.RunTx(ctx, func(ctx context.Context, r repository.Repos) error {
		if _, err := r.Departures().IncrementBooked(ctx, d.ID, 2); err != nil {
			return err
		}
		if _, err := r.Customers().AdjustPoints(ctx, domain.RewardPointsEntry{
			CustomerID: c.ID, Amount: -50, Type: domain.PointsUsed, BookingID: &id, CreatedAt: time.Now(),
		}); err != nil {
			return err
		}
		if err := r.Bookings().Create(ctx, &domain.Booking{
			ID: id, CustomerID: c.ID, PackageID: p.ID, Type: domain.BookingGroup, GroupDepartureID: &depID,
			StartDate: d.StartDate, EndDate: d.EndDate, NumTravelers: 2, TotalCents: 1000, FinalCents: 1000,
			Currency: "BDT", Status: domain.BookingPending, CreatedAt: time.Now(), UpdatedAt: time.Now(),
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.Departures().Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Zero(t, got.BookedSeats)

	balance, err := s.Customers().PointsBalance(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance)

	_, err = s.Bookings().Get(ctx, id)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestStore_BookingRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p, c, d := seed(t, s, 2)

	now := time.Now().UTC().Truncate(time.Microsecond)
	depID := d.ID
	b := &domain.Booking{
		ID:               uuid.New(),
		CustomerID:       c.ID,
		PackageID:        p.ID,
		Type:             domain.BookingGroup,
		GroupDepartureID: &depID,
		StartDate:        d.StartDate,
		EndDate:          d.EndDate,
		NumTravelers:     1,
		Travelers:        []domain.Traveler{{FullName: "Farhana Akter", Age: 27}},
		TotalCents:       50000,
		FinalCents:       50000,
		Currency:         "BDT",
		Status:           domain.BookingPending,
		ReservedSeats:    []string{"1B"},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	require.NoError(t, s.Bookings().Create(ctx, b))

	b.Payments = append(b.Payments, domain.Payment{
		ID: uuid.New(), AmountCents: 50000, Method: domain.MethodCard, Status: domain.PaymentSuccess, CreatedAt: now,
	})
	b.Status = domain.BookingConfirmed
	require.NoError(t, s.Bookings().Save(ctx, b))

	got, err := s.Bookings().Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingConfirmed, got.Status)
	assert.Equal(t, int64(50000), got.TotalPaid())
	assert.Equal(t, b.Travelers, got.Travelers)
	assert.Nil(t, got.Cancellation)

	held, err := s.Bookings().HeldSeats(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"1B"}, held)

	cust := c.ID
	list, err := s.Bookings().List(ctx, domain.BookingFilter{CustomerID: &cust, Statuses: []domain.BookingStatus{domain.BookingConfirmed}})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Len(t, list[0].Payments, 1)
}

func TestStore_AdjustPointsGuard(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, c, _ := seed(t, s, 1)

	_, err := s.Customers().AdjustPoints(ctx, domain.RewardPointsEntry{CustomerID: c.ID, Amount: -101, Type: domain.PointsUsed, CreatedAt: time.Now()})
	assert.ErrorIs(t, err, repository.ErrInsufficientBalance)

	_, err = s.Customers().AdjustPoints(ctx, domain.RewardPointsEntry{CustomerID: -1, Amount: 5, Type: domain.PointsEarned, CreatedAt: time.Now()})
	assert.ErrorIs(t, err, repository.ErrNotFound)

	balance, err := s.Customers().AdjustPoints(ctx, domain.RewardPointsEntry{CustomerID: c.ID, Amount: 25, Type: domain.PointsEarned, CreatedAt: time.Now()})
	require.NoError(t, err)
	assert.Equal(t, int64(125), balance)

	entries, err := s.Customers().Entries(ctx, c.ID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(25), entries[0].Amount)
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(errors.New("plain")))
	assert.False(t, IsRetryable(nil))
}
