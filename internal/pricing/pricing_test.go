package pricing

import (
	"testing"
	"time"

	"carrental/internal/timerange"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rangeOf(t *testing.T, fromDay, toDay int) timerange.Range {
	t.Helper()
	r, err := timerange.New(
		time.Date(2026, 5, fromDay, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 5, toDay, 0, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)
	return r
}

func TestComputeTotal(t *testing.T) {
	rate := decimal.NewFromInt(100)

	total, err := ComputeTotal(rangeOf(t, 10, 12), rate)
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.NewFromInt(300)), total.String())

	total, err = ComputeTotal(rangeOf(t, 10, 15), rate)
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.NewFromInt(600)), total.String())
}

func TestComputeTotalIsLinearInDays(t *testing.T) {
	rate := decimal.RequireFromString("33.335")

	single, err := ComputeTotal(rangeOf(t, 1, 3), rate) // 3 days
	require.NoError(t, err)
	double, err := ComputeTotal(rangeOf(t, 1, 6), rate) // 6 days
	require.NoError(t, err)

	diff := double.Sub(single.Mul(decimal.NewFromInt(2))).Abs()
	assert.True(t, diff.LessThanOrEqual(decimal.RequireFromString("0.01")), diff.String())
}

func TestComputeTotalRounding(t *testing.T) {
	r, err := timerange.New(
		time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC),
		time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)

	total, err := ComputeTotal(r, decimal.RequireFromString("10.005"))
	require.NoError(t, err)
	assert.Equal(t, "10.01", total.StringFixed(Scale))
}

func TestComputeTotalNegativeRate(t *testing.T) {
	_, err := ComputeTotal(rangeOf(t, 1, 2), decimal.NewFromInt(-1))
	assert.ErrorIs(t, err, ErrNegativeRate)
}
