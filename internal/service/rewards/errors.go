package rewards

import (
	"fmt"

	"github.com/kirinyoku/tourgo/internal/domain"
)

var (
	ErrInsufficientPoints = fmt.Errorf("not enough reward points: %w", domain.ErrInsufficientPoints)
	ErrCustomerNotFound   = fmt.Errorf("customer not found: %w", domain.ErrNotFound)
	ErrInvalidPoints      = fmt.Errorf("points must not be negative: %w", domain.ErrValidation)
)
