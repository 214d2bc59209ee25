package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/tourgo/internal/domain"
)

type Bookings interface {
	Create(ctx context.Context, b *domain.Booking) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
	// GetForUpdate locks the booking row until the transaction ends.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
	// Save persists the aggregate. Payments are append-only: records already
	// stored are never rewritten.
	Save(ctx context.Context, b *domain.Booking) error
	List(ctx context.Context, f domain.BookingFilter) ([]domain.Booking, error)
	// ListStartedLive returns PENDING/CONFIRMED bookings whose start date is not after now.
	ListStartedLive(ctx context.Context, now time.Time) ([]domain.Booking, error)
	// HeldSeats returns seat IDs held by PENDING/CONFIRMED bookings on the departure.
	HeldSeats(ctx context.Context, departureID int64) ([]string, error)
}

type Departures interface {
	Create(ctx context.Context, d *domain.GroupDeparture) error
	Get(ctx context.Context, id int64) (*domain.GroupDeparture, error)
	GetForUpdate(ctx context.Context, id int64) (*domain.GroupDeparture, error)
	// IncrementBooked adds n seats only if the departure is OPEN and has headroom.
	// It flips the status to FULL when capacity is reached. Returns
	// ErrCapacityExceeded when the guard rejects the update.
	IncrementBooked(ctx context.Context, id int64, n int) (*domain.GroupDeparture, error)
	// DecrementBooked removes n seats (floor 0) and reopens a FULL departure.
	DecrementBooked(ctx context.Context, id int64, n int) (*domain.GroupDeparture, error)
	SetSeatStates(ctx context.Context, id int64, seatIDs []string, state domain.SeatState) error
	SetStatus(ctx context.Context, id int64, status domain.DepartureStatus) (*domain.GroupDeparture, error)
	Update(ctx context.Context, d *domain.GroupDeparture) error
}

type Packages interface {
	Create(ctx context.Context, p *domain.Package) error
	Get(ctx context.Context, id int64) (*domain.Package, error)
}

type Customers interface {
	Create(ctx context.Context, c *domain.Customer) error
	PointsBalance(ctx context.Context, customerID int64) (int64, error)
	// AdjustPoints applies the signed entry amount to the balance and records
	// the entry. A debit that would take the balance below zero is rejected
	// with ErrInsufficientBalance. Returns the new balance.
	AdjustPoints(ctx context.Context, e domain.RewardPointsEntry) (int64, error)
	Entries(ctx context.Context, customerID int64, limit int) ([]domain.RewardPointsEntry, error)
}

// Repos is the set of repositories bound to one transaction.
type Repos interface {
	Bookings() Bookings
	Departures() Departures
	Packages() Packages
	Customers() Customers
}

// TxRunner runs fn inside a transaction. A non-nil error rolls back every write.
type TxRunner interface {
	Repos
	RunTx(ctx context.Context, fn func(ctx context.Context, r Repos) error) error
}
