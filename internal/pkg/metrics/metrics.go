// Package metrics holds the process-wide Prometheus collectors shared by the
// HTTP layer and the storage drivers.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every storefront-auth metric.
const Namespace = "storefront_auth"

var (
	// HTTPRequestDuration tracks HTTP request latency by route pattern.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			// bcrypt dominates login/register latency, hence the wider low end.
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route", "status_code"},
	)

	// HTTPRateLimited counts requests rejected by the rate limiter.
	HTTPRateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected with 429 by route",
		},
		[]string{"route"},
	)

	// TokenRejections counts access guard rejections by reason.
	TokenRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "token_rejections_total",
			Help:      "Requests rejected by the access guard (missing, malformed, expired, invalid, forbidden)",
		},
		[]string{"reason"},
	)

	// DBPoolConnections tracks postgres connection pool state.
	DBPoolConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "db",
			Name:      "pool_connections",
			Help:      "Number of database connections by state",
		},
		[]string{"state"},
	)
)
