// Package export renders booking reports for administrators.
package export

import (
	"fmt"
	"io"
	"slices"
	"time"

	"carrental/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	BookingsSheet = "Bookings"
	CalendarSheet = "Calendar"

	// maxCalendarDays keeps the calendar sheet readable for long exports.
	maxCalendarDays = 92
)

var bookingHeaders = []string{
	"Booking ID", "Customer ID", "Car ID", "Start", "End", "Days", "Status", "Total price", "Created", "Updated",
}

// WriteBookingsWorkbook writes an XLSX report with a flat bookings sheet and a
// car-by-day calendar of active bookings.
func WriteBookingsWorkbook(w io.Writer, bookings []*models.Booking, generatedAt time.Time) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(BookingsSheet)
	if err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)

	if err := writeBookingRows(f, bookings); err != nil {
		return err
	}
	if err := writeCalendar(f, bookings, generatedAt); err != nil {
		return err
	}
	_ = f.DeleteSheet("Sheet1")

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("error writing workbook: %w", err)
	}
	return nil
}

func writeBookingRows(f *excelize.File, bookings []*models.Booking) error {
	headerStyle, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("error creating style: %w", err)
	}

	for i, h := range bookingHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(BookingsSheet, cell, h)
	}
	last, _ := excelize.CoordinatesToCellName(len(bookingHeaders), 1)
	_ = f.SetCellStyle(BookingsSheet, "A1", last, headerStyle)

	for i, b := range bookings {
		row := i + 2
		values := []interface{}{
			b.ID,
			b.CustomerID,
			b.CarID,
			b.StartDate.Format(models.DateLayout),
			b.EndDate.Format(models.DateLayout),
			b.Range().Days(),
			string(b.Status),
			b.TotalPrice.InexactFloat64(),
			b.CreatedAt.Format(time.RFC3339),
			b.UpdatedAt.Format(time.RFC3339),
		}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(BookingsSheet, cell, &values); err != nil {
			return fmt.Errorf("error writing booking %s: %w", b.ID, err)
		}
	}

	_ = f.SetColWidth(BookingsSheet, "A", "A", 38)
	_ = f.SetColWidth(BookingsSheet, "B", "H", 14)
	_ = f.SetColWidth(BookingsSheet, "I", "J", 22)
	return nil
}

// writeCalendar marks the days each car is held by an active booking, starting
// from the day of generatedAt.
func writeCalendar(f *excelize.File, bookings []*models.Booking, generatedAt time.Time) error {
	if _, err := f.NewSheet(CalendarSheet); err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}

	from := time.Date(generatedAt.Year(), generatedAt.Month(), generatedAt.Day(), 0, 0, 0, 0, time.UTC)
	to := from
	var carIDs []int64
	for _, b := range bookings {
		if b.Status != models.StatusActive {
			continue
		}
		if !slices.Contains(carIDs, b.CarID) {
			carIDs = append(carIDs, b.CarID)
		}
		if end := b.EndDate.UTC(); end.After(to) {
			to = end
		}
	}
	if limit := from.AddDate(0, 0, maxCalendarDays-1); to.After(limit) {
		to = limit
	}
	slices.Sort(carIDs)

	_ = f.SetCellValue(CalendarSheet, "A1", "Car")
	dateCols := make(map[string]int)
	col := 2
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		cell, _ := excelize.CoordinatesToCellName(col, 1)
		_ = f.SetCellValue(CalendarSheet, cell, d.Format("02.01"))
		dateCols[d.Format(models.DateLayout)] = col
		col++
	}

	busyStyle, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#F8CBAD"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("error creating style: %w", err)
	}

	rows := make(map[int64]int, len(carIDs))
	for i, id := range carIDs {
		rows[id] = i + 2
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		_ = f.SetCellValue(CalendarSheet, cell, fmt.Sprintf("Car %d", id))
	}

	for _, b := range bookings {
		if b.Status != models.StatusActive {
			continue
		}
		start := b.StartDate.UTC()
		for d := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC); !d.After(b.EndDate.UTC()); d = d.AddDate(0, 0, 1) {
			c, ok := dateCols[d.Format(models.DateLayout)]
			if !ok {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(c, rows[b.CarID])
			_ = f.SetCellValue(CalendarSheet, cell, "X")
			_ = f.SetCellStyle(CalendarSheet, cell, cell, busyStyle)
		}
	}

	_ = f.SetColWidth(CalendarSheet, "A", "A", 12)
	return nil
}
