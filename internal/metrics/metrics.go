package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "carrental"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		},
		[]string{"route", "code"},
	)

	bookingOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_operations_total",
			Help:      "Booking lifecycle operations by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)

	bookingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "booking_operation_duration_seconds",
			Help:      "Latency of booking lifecycle operations, including lock wait.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	outboxDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_deliveries_total",
			Help:      "Outbox event deliveries by result.",
		},
		[]string{"result"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, bookingOperations, bookingDuration, outboxDeliveries)
	})
}

func IncHTTP(route string, code int) {
	httpRequests.WithLabelValues(route, codeLabel(code)).Inc()
}

// ObserveBooking records one lifecycle operation. outcome is "ok" or an error kind.
func ObserveBooking(operation, outcome string, took time.Duration) {
	bookingOperations.WithLabelValues(operation, outcome).Inc()
	bookingDuration.WithLabelValues(operation).Observe(took.Seconds())
}

func IncOutbox(result string) {
	outboxDeliveries.WithLabelValues(result).Inc()
}

func codeLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
