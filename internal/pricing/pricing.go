// Package pricing computes rental totals.
package pricing

import (
	"errors"
	"fmt"

	"carrental/internal/timerange"

	"github.com/shopspring/decimal"
)

// Scale is the number of decimal places kept on money amounts.
const Scale = 2

var ErrNegativeRate = errors.New("daily rate must not be negative")

// ComputeTotal returns inclusive day count × daily rate rounded to cents.
func ComputeTotal(r timerange.Range, dailyRate decimal.Decimal) (decimal.Decimal, error) {
	if dailyRate.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrNegativeRate, dailyRate)
	}
	days := decimal.NewFromInt(int64(r.Days()))
	return days.Mul(dailyRate).Round(Scale), nil
}
