// Package timerange holds the pure date-range helpers used for booking
// validation, billing and conflict detection.
package timerange

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidRange is returned when a range is empty, reversed or starts in the past.
var ErrInvalidRange = errors.New("invalid date range")

const dateLayout = "2006-01-02"

// Range is a rental window. End is always strictly after Start.
type Range struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// New builds a Range without the past-date rule. Use it for ranges that already exist.
func New(start, end time.Time) (Range, error) {
	if !end.After(start) {
		return Range{}, fmt.Errorf("%w: end %s is not after start %s", ErrInvalidRange,
			end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	return Range{Start: start, End: end}, nil
}

// Validate applies the creation-time rules: end after start and start not
// before the current calendar day.
func Validate(start, end, now time.Time) error {
	if _, err := New(start, end); err != nil {
		return err
	}
	if start.Before(startOfDay(now)) {
		return fmt.Errorf("%w: start %s is in the past", ErrInvalidRange, start.Format(dateLayout))
	}
	return nil
}

// InclusiveDayCount counts calendar days touched by the range, both boundary days included.
func InclusiveDayCount(start, end time.Time) int {
	loc := start.Location()
	from := dateOnly(start)
	to := dateOnly(end.In(loc))
	return int(to.Sub(from).Hours()/24) + 1
}

// Overlaps reports whether two ranges share an instant. Touching endpoints do not overlap.
func Overlaps(a, b Range) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// Days is the billing unit of the range.
func (r Range) Days() int {
	return InclusiveDayCount(r.Start, r.End)
}

// Contains reports whether t lies in [Start, End).
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

func (r Range) String() string {
	return fmt.Sprintf("[%s, %s]", r.Start.Format(time.RFC3339), r.End.Format(time.RFC3339))
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// dateOnly drops the clock and the zone so that DST shifts do not skew day counts.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
