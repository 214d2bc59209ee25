package repository

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrCapacityExceeded    = errors.New("capacity exceeded")
	ErrInsufficientBalance = errors.New("insufficient points balance")
)
