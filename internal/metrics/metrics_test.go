package metrics

import (
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	// Register should be safe to call multiple times
	Register()
	Register()

	assert.NotPanics(t, func() {
		IncHTTP("POST /api/v1/bookings", 201)
		IncOutbox("completed")
	})
}

func counterValue(t *testing.T, operation, outcome string) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, bookingOperations.WithLabelValues(operation, outcome).Write(&m))
	return m.GetCounter().GetValue()
}

func TestObserveBooking(t *testing.T) {
	before := counterValue(t, "create", "car_not_available")
	ObserveBooking("create", "car_not_available", 5*time.Millisecond)
	assert.Equal(t, before+1, counterValue(t, "create", "car_not_available"))
}

func TestCodeLabel(t *testing.T) {
	assert.Equal(t, "2xx", codeLabel(200))
	assert.Equal(t, "3xx", codeLabel(304))
	assert.Equal(t, "4xx", codeLabel(409))
	assert.Equal(t, "5xx", codeLabel(503))
}
