package domain

import (
	"errors"
	"fmt"

	"carrental/internal/timerange"
)

var (
	ErrInvalidRange     = timerange.ErrInvalidRange
	ErrInvalidExtension = errors.New("new end date must be after the current end date")
	ErrCarNotFound      = errors.New("car not found")
	ErrBookingNotFound  = errors.New("booking not found")
	ErrCustomerNotFound = errors.New("customer not found")
	ErrCarNotAvailable  = errors.New("car is not available")
	ErrInvalidState     = errors.New("booking status does not allow this operation")
	ErrForbidden        = errors.New("operation not permitted")
	ErrInvalidQuery     = errors.New("invalid booking query")

	// ErrConcurrentModification is transient: a version check failed or the store was busy.
	ErrConcurrentModification = errors.New("concurrent modification")
)

// ConflictError names the active booking that blocks a requested window.
type ConflictError struct {
	CarID     int64
	BookingID string
	Requested timerange.Range
	Existing  timerange.Range
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("car %d is booked %s by booking %s, requested window %s",
		e.CarID, e.Existing, e.BookingID, e.Requested)
}

func (e *ConflictError) Unwrap() error {
	return ErrCarNotAvailable
}
