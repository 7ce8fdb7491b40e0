package service

import (
	"fmt"

	"carrental/internal/domain"
	"carrental/internal/models"
)

// CanModify allows administrators on any booking and customers on their own.
func CanModify(actor models.Actor, booking *models.Booking) error {
	if actor.IsAdmin() || booking.CustomerID == actor.CustomerID {
		return nil
	}
	return fmt.Errorf("%w: customer %d does not own booking %s", domain.ErrForbidden, actor.CustomerID, booking.ID)
}

// CanClose allows administrators only.
func CanClose(actor models.Actor) error {
	if actor.IsAdmin() {
		return nil
	}
	return fmt.Errorf("%w: closing a booking requires the %s role", domain.ErrForbidden, models.RoleAdmin)
}

// ExtensionPolicy decides whether an extension has to pass the overlap check.
type ExtensionPolicy struct {
	AdminBypassesConflicts bool
}

func (p ExtensionPolicy) RequiresConflictCheck(actor models.Actor) bool {
	return !(actor.IsAdmin() && p.AdminBypassesConflicts)
}

// cancelledStatus is the terminal status a cancellation by actor produces.
func cancelledStatus(actor models.Actor) models.BookingStatus {
	if actor.IsAdmin() {
		return models.StatusCancelledByAdmin
	}
	return models.StatusCancelledByUser
}
