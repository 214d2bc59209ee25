package booking_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/tourgo/internal/domain"
	"github.com/kirinyoku/tourgo/internal/repository/memory"
	"github.com/kirinyoku/tourgo/internal/service"
	"github.com/kirinyoku/tourgo/internal/service/booking"
	"github.com/kirinyoku/tourgo/internal/service/capacity"
	"github.com/kirinyoku/tourgo/internal/service/catalog"
	"github.com/kirinyoku/tourgo/internal/service/refund"
	"github.com/kirinyoku/tourgo/internal/service/rewards"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Notify(ctx context.Context, userID int64, message string) error {
	args := m.Called(ctx, userID, message)
	return args.Error(0)
}

var now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	svcs       *service.Services
	store      *memory.Store
	gateway    *MockGateway
	packageID  int64
	customerID int64
}

func newFixture(t *testing.T, points int64, cfg booking.Config) *fixture {
	t.Helper()

	ctx := context.Background()
	store := memory.NewStore()

	pkg := &domain.Package{Name: "Cox's Bazar Escape", Category: "Beach", DefaultDays: 4, Currency: "BDT", IsActive: true}
	require.NoError(t, store.Packages().Create(ctx, pkg))

	c := &domain.Customer{Name: "Nusrat", Email: "nusrat@example.com", RewardPoints: points}
	require.NoError(t, store.Customers().Create(ctx, c))

	gw := &MockGateway{}
	gw.On("Notify", mock.Anything, c.ID, mock.Anything).Return(nil)

	clock := func() time.Time { return now }
	cfg.Now = clock

	svcs := service.NewServices(store, nil, nil, gw, nil, service.Config{
		Capacity: capacity.Config{Now: clock},
		Rewards:  rewards.Config{Now: clock},
		Booking:  cfg,
	})

	return &fixture{svcs: svcs, store: store, gateway: gw, packageID: pkg.ID, customerID: c.ID}
}

func (f *fixture) departure(t *testing.T, seats int, seatIDs ...string) *domain.GroupDeparture {
	t.Helper()

	d, err := f.svcs.Capacity.Create(context.Background(), capacity.CreateDepartureInput{
		PackageID:  f.packageID,
		StartDate:  now.Add(20 * 24 * time.Hour),
		EndDate:    now.Add(24 * 24 * time.Hour),
		TotalSeats: seats,
		Operators:  []string{"op-1"},
		SeatIDs:    seatIDs,
	})
	require.NoError(t, err)

	return d
}

func travelers(n int) []domain.Traveler {
	out := make([]domain.Traveler, n)
	for i := range out {
		out[i] = domain.Traveler{FullName: "Traveler"}
	}
	return out
}

func (f *fixture) privateInput(start time.Time) booking.CreateInput {
	return booking.CreateInput{
		CustomerID:   f.customerID,
		PackageID:    f.packageID,
		Type:         domain.BookingPrivate,
		StartDate:    start,
		EndDate:      start.Add(4 * 24 * time.Hour),
		NumTravelers: 1,
		Travelers:    travelers(1),
		TotalCents:   100000,
		Currency:     "BDT",
	}
}

func (f *fixture) groupInput(d *domain.GroupDeparture, n int, seats ...string) booking.CreateInput {
	id := d.ID
	return booking.CreateInput{
		CustomerID:       f.customerID,
		PackageID:        f.packageID,
		Type:             domain.BookingGroup,
		GroupDepartureID: &id,
		StartDate:        d.StartDate,
		EndDate:          d.EndDate,
		NumTravelers:     n,
		Travelers:        travelers(n),
		TotalCents:       int64(n) * 50000,
		Currency:         "BDT",
		ReservedSeats:    seats,
	}
}

func TestService_CreatePrivate(t *testing.T) {
	f := newFixture(t, 0, booking.Config{})

	b, err := f.svcs.Booking.Create(context.Background(), f.privateInput(now.Add(20*24*time.Hour)))
	require.NoError(t, err)

	assert.Equal(t, domain.BookingPending, b.Status)
	assert.Equal(t, int64(100000), b.FinalCents)
	assert.Nil(t, b.GroupDepartureID)

	got, err := f.svcs.Booking.Get(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)

	f.gateway.AssertCalled(t, "Notify", mock.Anything, f.customerID, mock.MatchedBy(func(msg string) bool {
		return strings.Contains(msg, "BDT 1000.00")
	}))
}

func TestService_CreateValidation(t *testing.T) {
	f := newFixture(t, 0, booking.Config{})
	d := f.departure(t, 4)
	ctx := context.Background()

	base := f.privateInput(now.Add(24 * time.Hour))

	tests := []struct {
		name   string
		mutate func(in *booking.CreateInput)
		err    error
	}{
		{"bad type", func(in *booking.CreateInput) { in.Type = "BUS" }, booking.ErrInvalidBooking},
		{"no travelers", func(in *booking.CreateInput) { in.NumTravelers = 0; in.Travelers = nil }, booking.ErrInvalidBooking},
		{"traveler count", func(in *booking.CreateInput) { in.NumTravelers = 2 }, booking.ErrInvalidBooking},
		{"dates", func(in *booking.CreateInput) { in.EndDate = in.StartDate }, booking.ErrInvalidBooking},
		{"amount", func(in *booking.CreateInput) { in.TotalCents = 0 }, booking.ErrInvalidBooking},
		{"group without departure", func(in *booking.CreateInput) { in.Type = domain.BookingGroup }, booking.ErrInvalidBooking},
		{"seats on private", func(in *booking.CreateInput) { in.ReservedSeats = []string{"1A"} }, booking.ErrInvalidBooking},
		{"departure on private", func(in *booking.CreateInput) { id := d.ID; in.GroupDepartureID = &id }, booking.ErrInvalidBooking},
		{"unknown package", func(in *booking.CreateInput) { in.PackageID = 999 }, catalog.ErrPackageNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := base
			in.Travelers = travelers(1)
			tt.mutate(&in)

			_, err := f.svcs.Booking.Create(ctx, in)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestService_CreateInactivePackage(t *testing.T) {
	f := newFixture(t, 0, booking.Config{})
	ctx := context.Background()

	pkg := &domain.Package{Name: "Retired", Category: "Nature", DefaultDays: 2}
	require.NoError(t, f.store.Packages().Create(ctx, pkg))

	in := f.privateInput(now.Add(24 * time.Hour))
	in.PackageID = pkg.ID

	_, err := f.svcs.Booking.Create(ctx, in)
	assert.ErrorIs(t, err, booking.ErrPackageInactive)
}

func TestService_CreateGroupReservesSeats(t *testing.T) {
	f := newFixture(t, 0, booking.Config{})
	ctx := context.Background()
	d := f.departure(t, 2, "1A", "1B")

	b, err := f.svcs.Booking.Create(ctx, f.groupInput(d, 2, "1A", "1B"))
	require.NoError(t, err)
	assert.Equal(t, []string{"1A", "1B"}, b.ReservedSeats)

	got, err := f.svcs.Capacity.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.BookedSeats)
	assert.Equal(t, domain.DepartureFull, got.Status)

	_, err = f.svcs.Booking.Create(ctx, f.groupInput(d, 1))
	assert.ErrorIs(t, err, capacity.ErrInsufficientSeats)
}

func TestService_CreateFailureLeavesNoTrace(t *testing.T) {
	f := newFixture(t, 10, booking.Config{})
	ctx := context.Background()
	d := f.departure(t, 4)

	in := f.groupInput(d, 2)
	in.PointsToUse = 50

	_, err := f.svcs.Booking.Create(ctx, in)
	require.ErrorIs(t, err, rewards.ErrInsufficientPoints)

	got, err := f.svcs.Capacity.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Zero(t, got.BookedSeats)

	list, err := f.svcs.Booking.List(ctx, domain.BookingFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)

	balance, err := f.svcs.Rewards.Balance(ctx, f.customerID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), balance)

	f.gateway.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_CreateDepartureMismatch(t *testing.T) {
	f := newFixture(t, 0, booking.Config{})
	ctx := context.Background()
	d := f.departure(t, 4)

	other := &domain.Package{Name: "Srimangal", Category: "Nature", DefaultDays: 2, IsActive: true}
	require.NoError(t, f.store.Packages().Create(ctx, other))

	in := f.groupInput(d, 1)
	in.PackageID = other.ID

	_, err := f.svcs.Booking.Create(ctx, in)
	require.ErrorIs(t, err, booking.ErrDepartureMismatch)

	got, err := f.svcs.Capacity.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Zero(t, got.BookedSeats)
}

func TestService_CreateRedeemsPoints(t *testing.T) {
	f := newFixture(t, 1000, booking.Config{})
	ctx := context.Background()

	in := f.privateInput(now.Add(40 * 24 * time.Hour))
	in.TotalCents = 50000
	in.PointsToUse = 1000

	b, err := f.svcs.Booking.Create(ctx, in)
	require.NoError(t, err)

	assert.Equal(t, int64(100), b.PointsUsed)
	assert.Equal(t, int64(10000), b.DiscountCents)
	assert.Equal(t, int64(40000), b.FinalCents)
	assert.Equal(t, b.TotalCents-b.DiscountCents, b.FinalCents)

	balance, err := f.svcs.Rewards.Balance(ctx, f.customerID)
	require.NoError(t, err)
	assert.Equal(t, int64(900), balance)
}

func TestService_AddPaymentConfirms(t *testing.T) {
	f := newFixture(t, 0, booking.Config{})
	ctx := context.Background()

	b, err := f.svcs.Booking.Create(ctx, f.privateInput(now.Add(20*24*time.Hour)))
	require.NoError(t, err)

	b, err = f.svcs.Booking.AddPayment(ctx, b.ID, 40000, domain.MethodCard, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, domain.BookingPending, b.Status)

	b, err = f.svcs.Booking.AddPayment(ctx, b.ID, 60000, domain.MethodMobileBanking, "tx-2")
	require.NoError(t, err)
	assert.Equal(t, domain.BookingConfirmed, b.Status)
	assert.Equal(t, int64(100000), b.TotalPaid())

	_, err = f.svcs.Booking.AddPayment(ctx, b.ID, 0, domain.MethodCard, "")
	assert.ErrorIs(t, err, booking.ErrInvalidPayment)

	_, err = f.svcs.Booking.AddPayment(ctx, b.ID, 100, domain.MethodRefund, "")
	assert.ErrorIs(t, err, booking.ErrInvalidPayment)

	_, err = f.svcs.Booking.AddPayment(ctx, uuid.New(), 100, domain.MethodCard, "")
	assert.ErrorIs(t, err, booking.ErrBookingNotFound)
}

func TestService_CancelTieredRefund(t *testing.T) {
	f := newFixture(t, 0, booking.Config{})
	ctx := context.Background()

	b, err := f.svcs.Booking.Create(ctx, f.privateInput(now.Add(20*24*time.Hour)))
	require.NoError(t, err)

	_, err = f.svcs.Booking.AddPayment(ctx, b.ID, 100000, domain.MethodCard, "tx-1")
	require.NoError(t, err)

	b, err = f.svcs.Booking.Cancel(ctx, b.ID, f.customerID, "change of plans")
	require.NoError(t, err)

	assert.Equal(t, domain.BookingCancelled, b.Status)
	require.NotNil(t, b.Cancellation)
	assert.Equal(t, int64(75000), b.Cancellation.RefundCents)
	assert.Equal(t, refund.PolicyTieredName, b.Cancellation.Policy)
	assert.Equal(t, "change of plans", b.Cancellation.Reason)
	assert.False(t, b.Cancellation.RefundProcessed)

	last := b.Payments[len(b.Payments)-1]
	assert.Equal(t, domain.MethodRefund, last.Method)
	assert.Equal(t, domain.PaymentPending, last.Status)
	assert.Equal(t, int64(75000), last.AmountCents)

	_, err = f.svcs.Booking.Cancel(ctx, b.ID, f.customerID, "again")
	assert.ErrorIs(t, err, booking.ErrAlreadyCancelled)
	assert.True(t, booking.IsFinal(err))

	_, err = f.svcs.Booking.AddPayment(ctx, b.ID, 100, domain.MethodCard, "")
	assert.ErrorIs(t, err, booking.ErrBookingClosed)
}

func TestService_CancelReleasesSeats(t *testing.T) {
	f := newFixture(t, 0, booking.Config{})
	ctx := context.Background()
	d := f.departure(t, 2, "1A", "1B")

	b, err := f.svcs.Booking.Create(ctx, f.groupInput(d, 2, "1A", "1B"))
	require.NoError(t, err)

	_, err = f.svcs.Booking.Cancel(ctx, b.ID, f.customerID, "")
	require.NoError(t, err)

	got, err := f.svcs.Capacity.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Zero(t, got.BookedSeats)
	assert.Equal(t, domain.DepartureOpen, got.Status)
	assert.Equal(t, domain.SeatAvailable, got.SeatMap["1A"])

	// The released seats can be booked again.
	_, err = f.svcs.Booking.Create(ctx, f.groupInput(d, 2, "1A", "1B"))
	require.NoError(t, err)
}

func TestService_CancelTwiceReleasesAndRefundsOnce(t *testing.T) {
	f := newFixture(t, 0, booking.Config{})
	ctx := context.Background()
	d := f.departure(t, 3, "1A", "1B", "1C")

	b, err := f.svcs.Booking.Create(ctx, f.groupInput(d, 2, "1A", "1B"))
	require.NoError(t, err)

	_, err = f.svcs.Booking.AddPayment(ctx, b.ID, 100000, domain.MethodCard, "tx-1")
	require.NoError(t, err)

	// A second booking keeps seats held, so a repeated release would show.
	_, err = f.svcs.Booking.Create(ctx, f.groupInput(d, 1, "1C"))
	require.NoError(t, err)

	_, err = f.svcs.Booking.Cancel(ctx, b.ID, f.customerID, "")
	require.NoError(t, err)

	_, err = f.svcs.Booking.Cancel(ctx, b.ID, f.customerID, "again")
	assert.ErrorIs(t, err, booking.ErrAlreadyCancelled)

	got, err := f.svcs.Capacity.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.BookedSeats)
	assert.Equal(t, domain.SeatAvailable, got.SeatMap["1A"])
	assert.Equal(t, domain.SeatAvailable, got.SeatMap["1B"])
	assert.Equal(t, domain.SeatBooked, got.SeatMap["1C"])

	b, err = f.svcs.Booking.Get(ctx, b.ID)
	require.NoError(t, err)

	refunds := 0
	for _, p := range b.Payments {
		if p.Method == domain.MethodRefund {
			refunds++
			assert.Equal(t, int64(75000), p.AmountCents)
		}
	}
	assert.Equal(t, 1, refunds)
	assert.Equal(t, int64(75000), b.Cancellation.RefundCents)
}

func TestService_CancelRestoresPoints(t *testing.T) {
	f := newFixture(t, 500, booking.Config{RestorePointsOnCancel: true})
	ctx := context.Background()

	in := f.privateInput(now.Add(40 * 24 * time.Hour))
	in.PointsToUse = 150

	b, err := f.svcs.Booking.Create(ctx, in)
	require.NoError(t, err)
	require.Equal(t, int64(150), b.PointsUsed)

	b, err = f.svcs.Booking.Cancel(ctx, b.ID, f.customerID, "")
	require.NoError(t, err)
	assert.Equal(t, int64(150), b.Cancellation.PointsRestored)

	balance, err := f.svcs.Rewards.Balance(ctx, f.customerID)
	require.NoError(t, err)
	assert.Equal(t, int64(500), balance)
}

func TestService_CancelKeepsPointsByDefault(t *testing.T) {
	f := newFixture(t, 500, booking.Config{})
	ctx := context.Background()

	in := f.privateInput(now.Add(40 * 24 * time.Hour))
	in.PointsToUse = 150

	b, err := f.svcs.Booking.Create(ctx, in)
	require.NoError(t, err)

	_, err = f.svcs.Booking.Cancel(ctx, b.ID, f.customerID, "")
	require.NoError(t, err)

	balance, err := f.svcs.Rewards.Balance(ctx, f.customerID)
	require.NoError(t, err)
	assert.Equal(t, int64(350), balance)
}

func TestService_CompleteAwardsPoints(t *testing.T) {
	f := newFixture(t, 0, booking.Config{})
	ctx := context.Background()

	b, err := f.svcs.Booking.Create(ctx, f.privateInput(now.Add(-5*24*time.Hour)))
	require.NoError(t, err)

	b, err = f.svcs.Booking.Complete(ctx, b.ID)
	require.NoError(t, err)

	// Beach bonus plus 1000.00 / 100.
	assert.Equal(t, domain.BookingCompleted, b.Status)
	assert.Equal(t, int64(80+10), b.PointsEarned)

	balance, err := f.svcs.Rewards.Balance(ctx, f.customerID)
	require.NoError(t, err)
	assert.Equal(t, int64(90), balance)

	_, err = f.svcs.Booking.Complete(ctx, b.ID)
	assert.ErrorIs(t, err, booking.ErrAlreadyCompleted)

	_, err = f.svcs.Booking.Cancel(ctx, b.ID, f.customerID, "")
	assert.ErrorIs(t, err, booking.ErrAlreadyCompleted)

	balance, err = f.svcs.Rewards.Balance(ctx, f.customerID)
	require.NoError(t, err)
	assert.Equal(t, int64(90), balance)
}

func TestService_ProcessRefund(t *testing.T) {
	f := newFixture(t, 0, booking.Config{})
	ctx := context.Background()

	b, err := f.svcs.Booking.Create(ctx, f.privateInput(now.Add(20*24*time.Hour)))
	require.NoError(t, err)

	_, err = f.svcs.Booking.ProcessRefund(ctx, b.ID, "admin-1")
	assert.ErrorIs(t, err, booking.ErrNotCancelled)

	_, err = f.svcs.Booking.AddPayment(ctx, b.ID, 100000, domain.MethodCard, "tx-1")
	require.NoError(t, err)

	_, err = f.svcs.Booking.Cancel(ctx, b.ID, f.customerID, "")
	require.NoError(t, err)

	b, err = f.svcs.Booking.ProcessRefund(ctx, b.ID, "admin-1")
	require.NoError(t, err)

	assert.Equal(t, domain.BookingRefunded, b.Status)
	assert.True(t, b.Cancellation.RefundProcessed)
	assert.Equal(t, "admin-1", b.Cancellation.RefundProcessedBy)
	require.NotNil(t, b.Cancellation.RefundProcessedAt)

	last := b.Payments[len(b.Payments)-1]
	assert.Equal(t, domain.MethodRefund, last.Method)
	assert.Equal(t, domain.PaymentSuccess, last.Status)
	assert.Equal(t, int64(75000), last.AmountCents)

	// Refund records never count as money received.
	assert.Equal(t, int64(100000), b.TotalPaid())

	_, err = f.svcs.Booking.ProcessRefund(ctx, b.ID, "admin-2")
	assert.ErrorIs(t, err, booking.ErrRefundAlreadyProcessed)
}

func TestService_ProcessRefundNothingPaid(t *testing.T) {
	f := newFixture(t, 0, booking.Config{})
	ctx := context.Background()

	b, err := f.svcs.Booking.Create(ctx, f.privateInput(now.Add(20*24*time.Hour)))
	require.NoError(t, err)

	_, err = f.svcs.Booking.Cancel(ctx, b.ID, f.customerID, "")
	require.NoError(t, err)

	_, err = f.svcs.Booking.ProcessRefund(ctx, b.ID, "admin-1")
	assert.ErrorIs(t, err, booking.ErrNoRefundApplicable)
}

func TestService_Update(t *testing.T) {
	f := newFixture(t, 0, booking.Config{})
	ctx := context.Background()

	b, err := f.svcs.Booking.Create(ctx, f.privateInput(now.Add(20*24*time.Hour)))
	require.NoError(t, err)

	notes := "vegetarian meals"
	renamed := []domain.Traveler{{FullName: "Ayesha Rahman", Age: 31}}

	b, err = f.svcs.Booking.Update(ctx, b.ID, booking.UpdateInput{Travelers: &renamed, Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, notes, b.Notes)
	assert.Equal(t, "Ayesha Rahman", b.Travelers[0].FullName)

	two := travelers(2)
	_, err = f.svcs.Booking.Update(ctx, b.ID, booking.UpdateInput{Travelers: &two})
	assert.ErrorIs(t, err, booking.ErrInvalidBooking)

	_, err = f.svcs.Booking.AddPayment(ctx, b.ID, 100000, domain.MethodCash, "")
	require.NoError(t, err)

	_, err = f.svcs.Booking.Update(ctx, b.ID, booking.UpdateInput{Notes: &notes})
	assert.ErrorIs(t, err, booking.ErrNotEditable)
}

func TestService_List(t *testing.T) {
	f := newFixture(t, 0, booking.Config{DefaultListLimit: 2, MaxListLimit: 3})
	ctx := context.Background()

	for i := range 4 {
		_, err := f.svcs.Booking.Create(ctx, f.privateInput(now.Add(time.Duration(i+1)*24*time.Hour)))
		require.NoError(t, err)
	}

	list, err := f.svcs.Booking.List(ctx, domain.BookingFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = f.svcs.Booking.List(ctx, domain.BookingFilter{Limit: 100})
	require.NoError(t, err)
	assert.Len(t, list, 3)

	customer := f.customerID
	list, err = f.svcs.Booking.List(ctx, domain.BookingFilter{CustomerID: &customer, Offset: 3, Limit: 3})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	from, to := now.Add(48*time.Hour), now
	_, err = f.svcs.Booking.List(ctx, domain.BookingFilter{StartFrom: &from, StartTo: &to})
	assert.ErrorIs(t, err, booking.ErrInvalidBooking)
}
