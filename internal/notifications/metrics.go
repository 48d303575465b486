package notifications

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "storefront_auth"

var (
	notificationQueueLength = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "queue_length",
			Help:      "Notifications waiting for a worker",
		},
	)

	notificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "sent_total",
			Help:      "Notifications processed by kind and final status (success, failed, dropped, abandoned)",
		},
		[]string{"kind", "status"},
	)

	notificationRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "retries_total",
			Help:      "Delivery retries after transient failures",
		},
		[]string{"kind"},
	)

	notificationSendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "send_duration_seconds",
			Help:      "Time to deliver a notification, including retries",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"kind"},
	)
)

func recordNotificationSent(kind, status string) {
	notificationsSent.WithLabelValues(kind, status).Inc()
}

func recordNotificationDuration(kind string, duration time.Duration) {
	notificationSendDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

func recordRetry(kind string) {
	notificationRetries.WithLabelValues(kind).Inc()
}
