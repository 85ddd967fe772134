package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Callers classify with errors.Is.
var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")
	ErrConflict   = errors.New("conflict")
	ErrExpired    = errors.New("order expired")
	ErrGateway    = errors.New("payment gateway error")
	ErrInternal   = errors.New("internal error")
)

// ValidationError names the offending input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// StateError rejects a request that is incompatible with the order's
// current status.
type StateError struct {
	OrderID int64
	Status  OrderStatus
}

func (e *StateError) Error() string {
	return fmt.Sprintf("order %d already processed (status %s)", e.OrderID, e.Status)
}

func (e *StateError) Is(target error) bool {
	return target == ErrConflict
}
