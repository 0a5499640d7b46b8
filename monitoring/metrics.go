package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queueLength = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "reservation_queue_length",
			Help: "Current queue length per resource",
		},
		[]string{"resource_id"},
	)

	activeLeases = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reservation_active_leases",
			Help: "Current number of active leases",
		},
	)

	queueOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reservation_operations_total",
			Help: "Total reservation operations",
		},
		[]string{"operation", "resource_id", "status"},
	)

	notificationsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reservation_notifications_total",
			Help: "Total notification events emitted",
		},
		[]string{"kind", "level"},
	)

	sessionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reservation_session_duration_seconds",
			Help:    "Duration of completed lease sessions",
			Buckets: prometheus.ExponentialBuckets(60, 2, 10),
		},
		[]string{"resource_id"},
	)
)

func SetQueueLength(resourceID string, length int) {
	queueLength.WithLabelValues(resourceID).Set(float64(length))
}

func LeaseStarted() {
	activeLeases.Inc()
}

func LeaseEnded() {
	activeLeases.Dec()
}

func TrackOperation(operation, resourceID, status string) {
	queueOperations.WithLabelValues(operation, resourceID, status).Inc()
}

func TrackNotification(kind, level string) {
	notificationsEmitted.WithLabelValues(kind, level).Inc()
}

func TrackSession(resourceID string, seconds float64) {
	sessionDuration.WithLabelValues(resourceID).Observe(seconds)
}
