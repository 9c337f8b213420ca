// Package metrics holds the Prometheus collectors of the backend.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Registrations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "patapesa_registrations_total",
			Help: "Total number of registered users",
		},
		[]string{"referred"},
	)

	Logins = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "patapesa_logins_total",
			Help: "Login attempts by outcome",
		},
		[]string{"outcome"},
	)

	PointUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "patapesa_point_updates_total",
			Help: "Point balance mutations by ledger kind",
		},
		[]string{"kind"},
	)

	Withdrawals = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "patapesa_withdrawals_total",
			Help: "Withdrawal requests by status",
		},
		[]string{"status"},
	)

	WithdrawnPoints = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "patapesa_withdrawn_points_total",
			Help: "Points deducted by withdrawals, fees included",
		},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "patapesa_http_requests_total",
			Help: "HTTP requests by route, method and status code",
		},
		[]string{"route", "method", "code"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "patapesa_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2, 5},
		},
		[]string{"route", "method"},
	)
)

// Outcome labels of Logins.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeLimited = "limited"
)

// Status labels of Withdrawals.
const (
	StatusCompleted = "completed"
	StatusRejected  = "rejected"
)
