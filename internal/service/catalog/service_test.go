package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/kirinyoku/tourgo/internal/domain"
	"github.com/kirinyoku/tourgo/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_CreatePackage(t *testing.T) {
	svc := New(memory.NewStore(), nil, Config{})
	ctx := context.Background()

	p := &domain.Package{Name: "Cox's Bazar Escape", Category: "Beach", DefaultDays: 4, IsActive: true}
	require.NoError(t, svc.CreatePackage(ctx, p))
	assert.NotZero(t, p.ID)
	assert.Equal(t, "BDT", p.Currency)

	got, err := svc.GetPackage(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Name, got.Name)

	for name, bad := range map[string]*domain.Package{
		"no name":     {Category: "Beach", DefaultDays: 1},
		"no category": {Name: "x", DefaultDays: 1},
		"no days":     {Name: "x", Category: "Beach"},
	} {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, svc.CreatePackage(ctx, bad), domain.ErrValidation)
		})
	}
}

func TestService_NotFound(t *testing.T) {
	svc := New(memory.NewStore(), nil, Config{})
	ctx := context.Background()

	_, err := svc.GetPackage(ctx, 42)
	assert.ErrorIs(t, err, ErrPackageNotFound)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.GetDeparture(ctx, 42)
	assert.ErrorIs(t, err, ErrDepartureNotFound)

	_, err = svc.Availability(ctx, 42)
	assert.ErrorIs(t, err, ErrDepartureNotFound)
}

func TestService_Availability(t *testing.T) {
	store := memory.NewStore()
	svc := New(store, nil, Config{})
	ctx := context.Background()

	p := &domain.Package{Name: "Sundarbans Cruise", Category: "Cruise", DefaultDays: 3, IsActive: true}
	require.NoError(t, svc.CreatePackage(ctx, p))

	start := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)
	d := &domain.GroupDeparture{
		PackageID:   p.ID,
		StartDate:   start,
		EndDate:     start.AddDate(0, 0, 3),
		TotalSeats:  12,
		BookedSeats: 5,
		Currency:    "BDT",
		Status:      domain.DepartureOpen,
		Operators:   []string{"op-1"},
	}
	require.NoError(t, store.Departures().Create(ctx, d))

	a, err := svc.Availability(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DepartureAvailability{
		DepartureID: d.ID,
		Status:      domain.DepartureOpen,
		Total:       12,
		Booked:      5,
		Available:   7,
	}, *a)

	got, err := svc.GetDeparture(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"op-1"}, got.Operators)
}
