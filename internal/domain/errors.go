package domain

import "errors"

// Error kinds. Service errors wrap exactly one of these so the boundary can
// classify them with errors.Is.
var (
	ErrNotFound             = errors.New("not found")
	ErrValidation           = errors.New("validation failed")
	ErrConflict             = errors.New("conflict")
	ErrInsufficientCapacity = errors.New("insufficient capacity")
	ErrInsufficientPoints   = errors.New("insufficient points")
	ErrIllegalState         = errors.New("illegal state transition")
)
