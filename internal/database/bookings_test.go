package database

import (
	"context"
	"testing"
	"time"

	"carrental/internal/domain"
	"carrental/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBooking(customerID, carID int64, start time.Time, days int) *models.Booking {
	return &models.Booking{
		CustomerID: customerID,
		CarID:      carID,
		StartDate:  start,
		EndDate:    start.AddDate(0, 0, days),
		Status:     models.StatusActive,
		TotalPrice: decimal.RequireFromString("123.40"),
	}
}

func TestBookingRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	car := seedCar(t, db, 1, 100)
	customer := seedCustomer(t, db, "joe@example.com", models.RoleUser)

	loc := time.FixedZone("UTC+2", 2*60*60)
	start := time.Date(2026, 6, 10, 9, 30, 0, 0, loc)
	b := newBooking(customer.ID, car.ID, start, 2)
	require.NoError(t, db.SaveBooking(ctx, b))
	assert.NotEmpty(t, b.ID)
	assert.Equal(t, int64(1), b.Version)

	got, err := db.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, got.StartDate.Equal(start))
	assert.True(t, got.EndDate.Equal(b.EndDate))
	assert.Equal(t, "123.40", got.TotalPrice.StringFixed(2))
	assert.Equal(t, models.StatusActive, got.Status)
	assert.Equal(t, car.ID, got.CarID)
	assert.Equal(t, customer.ID, got.CustomerID)

	_, err = db.GetBooking(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrBookingNotFound)
}

func TestUpdateBookingVersionCheck(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	car := seedCar(t, db, 1, 100)
	customer := seedCustomer(t, db, "joe@example.com", models.RoleUser)

	b := newBooking(customer.ID, car.ID, time.Now().Add(24*time.Hour), 2)
	require.NoError(t, db.SaveBooking(ctx, b))

	stale := *b
	b.Status = models.StatusCancelledByUser
	b.UpdatedAt = time.Now()
	require.NoError(t, db.UpdateBooking(ctx, b))
	assert.Equal(t, int64(2), b.Version)

	stale.Status = models.StatusClosedByAdmin
	err := db.UpdateBooking(ctx, &stale)
	assert.ErrorIs(t, err, domain.ErrConcurrentModification)

	got, err := db.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelledByUser, got.Status)
}

func TestSetCarStatusVersionCheck(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	car := seedCar(t, db, 3, 40)
	stale := *car

	require.NoError(t, db.SetCarStatus(ctx, car, models.CarRented))
	assert.Equal(t, models.CarRented, car.Status)

	err := db.SetCarStatus(ctx, &stale, models.CarUnderRepair)
	assert.ErrorIs(t, err, domain.ErrConcurrentModification)

	_, err = db.GetCar(ctx, 404)
	assert.ErrorIs(t, err, domain.ErrCarNotFound)
}

func TestListBookings(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	car1 := seedCar(t, db, 1, 100)
	car2 := seedCar(t, db, 2, 100)
	customer := seedCustomer(t, db, "joe@example.com", models.RoleUser)

	base := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	active := newBooking(customer.ID, car1.ID, base, 2)
	cancelled := newBooking(customer.ID, car1.ID, base.AddDate(0, 0, 5), 2)
	cancelled.Status = models.StatusCancelledByUser
	other := newBooking(customer.ID, car2.ID, base.AddDate(0, 0, 10), 1)
	for _, b := range []*models.Booking{active, cancelled, other} {
		require.NoError(t, db.SaveBooking(ctx, b))
	}

	all, err := db.ListBookings(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	byCar, err := db.ListBookingsByCar(ctx, car1.ID)
	require.NoError(t, err)
	assert.Len(t, byCar, 2)

	activeOnly, err := db.ListActiveBookingsByCar(ctx, car1.ID)
	require.NoError(t, err)
	require.Len(t, activeOnly, 1)
	assert.Equal(t, active.ID, activeOnly[0].ID)

	t.Run("FindByStart", func(t *testing.T) {
		from := base.AddDate(0, 0, 5)
		got, err := db.FindBookings(ctx, models.BookingFilter{Start: &from})
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("FindByEnd", func(t *testing.T) {
		to := base.AddDate(0, 0, 7)
		got, err := db.FindBookings(ctx, models.BookingFilter{End: &to})
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("FindByStatus", func(t *testing.T) {
		status := models.StatusCancelledByUser
		got, err := db.FindBookings(ctx, models.BookingFilter{Status: &status})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, cancelled.ID, got[0].ID)
	})
}

func TestSaveBookingRequiresKnownCar(t *testing.T) {
	db := setupTestDB(t)
	customer := seedCustomer(t, db, "joe@example.com", models.RoleUser)

	err := db.SaveBooking(context.Background(), newBooking(customer.ID, 999, time.Now(), 1))
	assert.Error(t, err)
}
