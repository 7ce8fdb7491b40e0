package export

import (
	"bytes"
	"testing"
	"time"

	"carrental/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWriteBookingsWorkbook(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	bookings := []*models.Booking{
		{
			ID: "b-1", CustomerID: 1, CarID: 7,
			StartDate: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
			EndDate:   time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC),
			Status:    models.StatusActive, TotalPrice: decimal.RequireFromString("300.00"),
			CreatedAt: now, UpdatedAt: now,
		},
		{
			ID: "b-2", CustomerID: 2, CarID: 3,
			StartDate: time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC),
			EndDate:   time.Date(2026, 3, 6, 0, 0, 0, 0, time.UTC),
			Status:    models.StatusCancelledByUser, TotalPrice: decimal.RequireFromString("99.50"),
			CreatedAt: now, UpdatedAt: now,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteBookingsWorkbook(&buf, bookings, now))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{BookingsSheet, CalendarSheet}, f.GetSheetList())

	rows, err := f.GetRows(BookingsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Booking ID", rows[0][0])
	assert.Equal(t, []string{"b-1", "1", "7", "2026-03-02", "2026-03-04", "3", "ACTIVE", "300"}, rows[1][:8])
	assert.Equal(t, "CANCELLED_BY_USER", rows[2][6])

	cal, err := f.GetRows(CalendarSheet)
	require.NoError(t, err)
	require.Len(t, cal, 2, "only cars with active bookings get a row")
	assert.Equal(t, "Car 7", cal[1][0])
	assert.Equal(t, []string{"", "X", "X", "X"}, cal[1][1:5])
}

func TestWriteBookingsWorkbookEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteBookingsWorkbook(&buf, nil, time.Now()))
	assert.NotZero(t, buf.Len())
}
