package models

import (
	"fmt"
	"strings"
	"time"

	"carrental/internal/timerange"

	"github.com/shopspring/decimal"
)

type BookingStatus string

const (
	StatusActive           BookingStatus = "ACTIVE"
	StatusCancelledByUser  BookingStatus = "CANCELLED_BY_USER"
	StatusCancelledByAdmin BookingStatus = "CANCELLED_BY_ADMIN"
	StatusClosedByAdmin    BookingStatus = "CLOSED_BY_ADMIN"
	// StatusCompleted is kept for records imported from older systems; the engine never sets it.
	StatusCompleted BookingStatus = "COMPLETED"
)

var bookingStatuses = []BookingStatus{
	StatusActive,
	StatusCancelledByUser,
	StatusCancelledByAdmin,
	StatusClosedByAdmin,
	StatusCompleted,
}

func (s BookingStatus) Valid() bool {
	for _, known := range bookingStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no lifecycle transition may leave s.
func (s BookingStatus) IsTerminal() bool {
	return s != StatusActive
}

func ParseBookingStatus(raw string) (BookingStatus, error) {
	s := BookingStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown booking status %q", raw)
	}
	return s, nil
}

type Booking struct {
	ID         string          `json:"id"`
	CustomerID int64           `json:"customer_id"`
	CarID      int64           `json:"car_id"`
	StartDate  time.Time       `json:"rental_start_date"`
	EndDate    time.Time       `json:"rental_end_date"`
	Status     BookingStatus   `json:"status"`
	TotalPrice decimal.Decimal `json:"total_price"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	Version    int64           `json:"version"`
}

func (b *Booking) Range() timerange.Range {
	return timerange.Range{Start: b.StartDate, End: b.EndDate}
}

// BookingFilter selects bookings by a single date boundary or by status.
type BookingFilter struct {
	Start  *time.Time
	End    *time.Time
	Status *BookingStatus
}
