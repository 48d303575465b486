package identity

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "storefront_auth"

var (
	registrationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "identity",
			Name:      "registrations_total",
			Help:      "Registration attempts by result",
		},
		[]string{"result"},
	)

	loginsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "identity",
			Name:      "logins_total",
			Help:      "Login attempts by result",
		},
		[]string{"result"},
	)

	invalidHashTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invalid_hash_total",
			Help:      "Stored password hashes that could not be parsed. Any non-zero value needs attention.",
		},
	)
)

func recordRegistration(result string) {
	registrationsTotal.WithLabelValues(result).Inc()
}

func recordLogin(result string) {
	loginsTotal.WithLabelValues(result).Inc()
}
