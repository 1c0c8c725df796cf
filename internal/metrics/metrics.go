package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "namelis",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	availabilityLoads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "namelis",
			Name:      "availability_loads_total",
			Help:      "Availability loads by outcome (ok, error, stale).",
		},
		[]string{"status"},
	)

	bookings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "namelis",
			Name:      "bookings_total",
			Help:      "Booking submissions by outcome (created, validation_failed, failed).",
		},
		[]string{"status"},
	)

	webhooks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "namelis",
			Name:      "webhook_total",
			Help:      "Webhook deliveries by outcome (delivered, failed, skipped).",
		},
		[]string{"status"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, availabilityLoads, bookings, webhooks)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// IncAvailabilityLoad increments the availability load counter.
func IncAvailabilityLoad(status string) {
	availabilityLoads.WithLabelValues(status).Inc()
}

// IncBooking increments the booking outcome counter.
func IncBooking(status string) {
	bookings.WithLabelValues(status).Inc()
}

// IncWebhook increments the webhook delivery counter.
func IncWebhook(status string) {
	webhooks.WithLabelValues(status).Inc()
}
