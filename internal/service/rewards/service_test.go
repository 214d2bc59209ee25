package rewards

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/kirinyoku/tourgo/internal/domain"
	"github.com/kirinyoku/tourgo/internal/repository"
	"github.com/kirinyoku/tourgo/internal/repository/memory"
	"github.com/kirinyoku/tourgo/internal/uow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuote(t *testing.T) {
	tests := []struct {
		name       string
		points     int64
		totalCents int64
		want       int64
	}{
		// 20% of 500.00 is 100.00, i.e. 100 points.
		{"capped", 1000, 50000, 100},
		{"under cap", 50, 50000, 50},
		{"1000 points on 1000.00", 1000, 100000, 200},
		{"zero", 0, 50000, 0},
		{"negative", -10, 50000, 0},
		{"tiny total", 10, 99, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Quote(tt.points, tt.totalCents))
		})
	}
}

func TestPointsForCompletion(t *testing.T) {
	assert.Equal(t, int64(100+7), PointsForCompletion("Adventure", 75000))
	assert.Equal(t, int64(150), PointsForCompletion("Cruise", 9999))
	assert.Equal(t, int64(50+10), PointsForCompletion("Space", 100000))
	assert.Equal(t, int64(50), PointsForCompletion("", -5))
}

func newTestService(t *testing.T, balance int64) (*Service, *memory.Store, *uow.UoW, int64) {
	t.Helper()

	store := memory.NewStore()
	c := &domain.Customer{Name: "Karim", RewardPoints: balance}
	require.NoError(t, store.Customers().Create(context.Background(), c))

	u := uow.NewUoW(store, uow.Config{})

	return New(u, nil, Config{}), store, u, c.ID
}

func TestService_RedeemIn(t *testing.T) {
	ctx := context.Background()
	s, _, u, customerID := newTestService(t, 1000)
	bookingID := uuid.New()

	var red Redemption
	err := u.Do(ctx, func(ctx context.Context, r repository.Repos, _ func(uow.AfterCommit)) error {
		var err error
		red, err = s.RedeemIn(ctx, r, customerID, 1000, 50000, bookingID)
		return err
	})
	require.NoError(t, err)

	// Only the capped part is debited.
	assert.Equal(t, Redemption{Points: 100, DiscountCents: 10000}, red)

	balance, err := s.Balance(ctx, customerID)
	require.NoError(t, err)
	assert.Equal(t, int64(900), balance)

	history, err := s.History(ctx, customerID, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, int64(-100), history[0].Amount)
	assert.Equal(t, domain.PointsUsed, history[0].Type)
	assert.Equal(t, bookingID, *history[0].BookingID)
}

func TestService_RedeemInInsufficient(t *testing.T) {
	ctx := context.Background()
	s, _, u, customerID := newTestService(t, 10)

	err := u.Do(ctx, func(ctx context.Context, r repository.Repos, _ func(uow.AfterCommit)) error {
		_, err := s.RedeemIn(ctx, r, customerID, 11, 500000, uuid.New())
		return err
	})
	assert.ErrorIs(t, err, ErrInsufficientPoints)
	assert.ErrorIs(t, err, domain.ErrInsufficientPoints)

	balance, err := s.Balance(ctx, customerID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), balance)
}

func TestService_EarnAndRestore(t *testing.T) {
	ctx := context.Background()
	s, _, u, customerID := newTestService(t, 0)
	bookingID := uuid.New()

	var earned int64
	err := u.Do(ctx, func(ctx context.Context, r repository.Repos, _ func(uow.AfterCommit)) error {
		var err error
		if earned, err = s.EarnIn(ctx, r, customerID, "Mountain", 250000, bookingID); err != nil {
			return err
		}
		return s.RestoreIn(ctx, r, customerID, 30, bookingID)
	})
	require.NoError(t, err)
	assert.Equal(t, int64(145), earned)

	balance, err := s.Balance(ctx, customerID)
	require.NoError(t, err)
	assert.Equal(t, int64(175), balance)

	history, err := s.History(ctx, customerID, 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, int64(30), history[0].Amount)
}

func TestService_UnknownCustomer(t *testing.T) {
	s, _, _, _ := newTestService(t, 0)

	_, err := s.Balance(context.Background(), 999)
	assert.ErrorIs(t, err, ErrCustomerNotFound)
}
