package domain

import (
	"context"
	"time"

	"carrental/internal/models"
)

type BookingStore interface {
	SaveBooking(ctx context.Context, booking *models.Booking) error
	// UpdateBooking writes the booking if its stored version still equals booking.Version
	// and bumps the version, otherwise it returns ErrConcurrentModification.
	UpdateBooking(ctx context.Context, booking *models.Booking) error
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	ListBookings(ctx context.Context) ([]*models.Booking, error)
	ListBookingsByCar(ctx context.Context, carID int64) ([]*models.Booking, error)
	ListActiveBookingsByCar(ctx context.Context, carID int64) ([]*models.Booking, error)
	FindBookings(ctx context.Context, filter models.BookingFilter) ([]*models.Booking, error)
}

type CarGateway interface {
	GetCar(ctx context.Context, id int64) (*models.Car, error)
	// SetCarStatus performs a compare-and-set on the car version.
	SetCarStatus(ctx context.Context, car *models.Car, status models.CarStatus) error
}

type CustomerDirectory interface {
	FindCustomerByEmail(ctx context.Context, email string) (*models.Customer, error)
}

type OutboxWriter interface {
	AppendOutbox(ctx context.Context, event *models.OutboxEvent) error
}

// Store is everything a lifecycle operation touches inside one transaction.
type Store interface {
	BookingStore
	CarGateway
	CustomerDirectory
	OutboxWriter
}

type Transactor interface {
	// WithinTx commits fn's writes atomically or not at all.
	WithinTx(ctx context.Context, fn func(ctx context.Context, store Store) error) error
}

type CarLocker interface {
	Lock(ctx context.Context, carID int64) (unlock func(), err error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type CreateBookingRequest struct {
	Start time.Time `json:"rental_start_date"`
	End   time.Time `json:"rental_end_date"`
	CarID int64     `json:"car_id"`
}

type BookingService interface {
	CreateBooking(ctx context.Context, req CreateBookingRequest, customerEmail string) (*models.Booking, error)
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	ListBookings(ctx context.Context) ([]*models.Booking, error)
	ListBookingsByCar(ctx context.Context, carID int64) ([]*models.Booking, error)
	ListBookingsByDateOrStatus(ctx context.Context, filter models.BookingFilter) ([]*models.Booking, error)
	ExtendBooking(ctx context.Context, id, customerEmail string, newEnd time.Time) (*models.Booking, error)
	CancelBooking(ctx context.Context, id, customerEmail string) (*models.Booking, error)
	CloseBooking(ctx context.Context, id, customerEmail string) error
}
