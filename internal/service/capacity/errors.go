package capacity

import (
	"fmt"

	"github.com/kirinyoku/tourgo/internal/domain"
)

var (
	ErrDepartureNotFound = fmt.Errorf("departure not found: %w", domain.ErrNotFound)
	ErrDepartureNotOpen  = fmt.Errorf("departure is not open for booking: %w", domain.ErrIllegalState)
	ErrInsufficientSeats = fmt.Errorf("not enough seats available: %w", domain.ErrInsufficientCapacity)
	ErrSeatConflict      = fmt.Errorf("requested seats are already taken: %w", domain.ErrConflict)
	ErrInvalidSeats      = fmt.Errorf("invalid seat request: %w", domain.ErrValidation)
	ErrInvalidDeparture  = fmt.Errorf("invalid departure: %w", domain.ErrValidation)
	ErrPackageNotFound   = fmt.Errorf("package not found: %w", domain.ErrNotFound)
)

// SeatConflictError lists the requested seats that are held or blocked.
type SeatConflictError struct {
	SeatIDs []string
}

func (e SeatConflictError) Error() string {
	return fmt.Sprintf("seats already taken: %v", e.SeatIDs)
}

func (e SeatConflictError) Unwrap() error {
	return ErrSeatConflict
}
