package booking

import (
	"fmt"

	"github.com/kirinyoku/tourgo/internal/domain"
)

var (
	ErrBookingNotFound        = fmt.Errorf("booking not found: %w", domain.ErrNotFound)
	ErrInvalidBooking         = fmt.Errorf("invalid booking: %w", domain.ErrValidation)
	ErrPackageInactive        = fmt.Errorf("package is not active: %w", domain.ErrValidation)
	ErrDepartureMismatch      = fmt.Errorf("departure does not belong to package: %w", domain.ErrValidation)
	ErrInvalidPayment         = fmt.Errorf("invalid payment: %w", domain.ErrValidation)
	ErrAlreadyCancelled       = fmt.Errorf("booking already cancelled: %w", domain.ErrConflict)
	ErrAlreadyCompleted       = fmt.Errorf("booking already completed: %w", domain.ErrConflict)
	ErrRefundAlreadyProcessed = fmt.Errorf("refund already processed: %w", domain.ErrConflict)
	ErrBookingClosed          = fmt.Errorf("booking is closed for payments: %w", domain.ErrIllegalState)
	ErrNotEditable            = fmt.Errorf("only pending bookings can be edited: %w", domain.ErrIllegalState)
	ErrNotCancelled           = fmt.Errorf("booking is not cancelled: %w", domain.ErrIllegalState)
	ErrNoRefundApplicable     = fmt.Errorf("no refund applicable: %w", domain.ErrIllegalState)
)
