package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"carrental/internal/domain"
	"carrental/internal/models"

	"github.com/google/uuid"
)

const bookingColumns = `id, customer_id, car_id, rental_start_date, rental_end_date,
	status, total_price, created_at, updated_at, version`

func (s *queries) SaveBooking(ctx context.Context, booking *models.Booking) error {
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	now := s.now()
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = now
	}
	if booking.UpdatedAt.IsZero() {
		booking.UpdatedAt = booking.CreatedAt
	}

	query := `INSERT INTO bookings (` + bookingColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.q.ExecContext(ctx, query,
		booking.ID,
		booking.CustomerID,
		booking.CarID,
		formatTime(booking.StartDate),
		formatTime(booking.EndDate),
		string(booking.Status),
		booking.TotalPrice.StringFixed(2),
		formatTime(booking.CreatedAt),
		formatTime(booking.UpdatedAt),
		1,
	)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}
	booking.Version = 1
	return nil
}

// UpdateBooking persists the mutable fields. Car, customer, start date and
// creation time are never rewritten.
func (s *queries) UpdateBooking(ctx context.Context, booking *models.Booking) error {
	query := `UPDATE bookings
              SET rental_end_date = ?, status = ?, total_price = ?, updated_at = ?, version = version + 1
              WHERE id = ? AND version = ?`
	result, err := s.q.ExecContext(ctx, query,
		formatTime(booking.EndDate),
		string(booking.Status),
		booking.TotalPrice.StringFixed(2),
		formatTime(booking.UpdatedAt),
		booking.ID,
		booking.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update booking %s: %w", booking.ID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update booking %s: %w", booking.ID, err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: booking %s version %d", domain.ErrConcurrentModification, booking.ID, booking.Version)
	}
	booking.Version++
	return nil
}

func (s *queries) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	booking, err := scanBooking(s.q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrBookingNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking %s: %w", id, err)
	}
	return booking, nil
}

func (s *queries) ListBookings(ctx context.Context) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings ORDER BY created_at, id`
	return s.listBookings(ctx, query)
}

func (s *queries) ListBookingsByCar(ctx context.Context, carID int64) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE car_id = ? ORDER BY rental_start_date, id`
	return s.listBookings(ctx, query, carID)
}

func (s *queries) ListActiveBookingsByCar(ctx context.Context, carID int64) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
              WHERE car_id = ? AND status = ? ORDER BY rental_start_date, id`
	return s.listBookings(ctx, query, carID, string(models.StatusActive))
}

// FindBookings applies the optional start/end/status conditions of the filter.
// A start bound keeps bookings starting on or after it, an end bound keeps
// bookings ending on or before it.
func (s *queries) FindBookings(ctx context.Context, filter models.BookingFilter) ([]*models.Booking, error) {
	var (
		conds []string
		args  []any
	)
	if filter.Start != nil {
		conds = append(conds, "rental_start_date >= ?")
		args = append(args, formatTime(*filter.Start))
	}
	if filter.End != nil {
		conds = append(conds, "rental_end_date <= ?")
		args = append(args, formatTime(*filter.End))
	}
	if filter.Status != nil {
		conds = append(conds, "status = ?")
		args = append(args, string(*filter.Status))
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY rental_start_date, id`
	return s.listBookings(ctx, query, args...)
}

func (s *queries) listBookings(ctx context.Context, query string, args ...any) ([]*models.Booking, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bookings: %w", err)
	}
	return bookings, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	var b models.Booking
	var status, start, end, created, updated string
	err := row.Scan(
		&b.ID, &b.CustomerID, &b.CarID, &start, &end,
		&status, &b.TotalPrice, &created, &updated, &b.Version,
	)
	if err != nil {
		return nil, err
	}
	b.Status = models.BookingStatus(status)

	if b.StartDate, err = parseTime(start); err != nil {
		return nil, err
	}
	if b.EndDate, err = parseTime(end); err != nil {
		return nil, err
	}
	if b.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if b.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &b, nil
}
