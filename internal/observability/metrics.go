// Package observability holds the Prometheus collectors of the service.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ridecore"

var (
	RidesBooked = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rides_booked_total", Help: "Rides booked by tier and pickup mode"},
		[]string{"tier", "mode"},
	)
	RideTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "ride_transitions_total", Help: "Committed ride transitions by event"},
		[]string{"event"},
	)
	LedgerPostings = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "ledger_postings_total", Help: "Wallet transactions appended by type"},
		[]string{"type"},
	)
	CancellationCharges = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "cancellation_charges_total", Help: "User cancellations that incurred a charge",
	})
	MatchCandidates = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace, Name: "match_candidates", Help: "Drivers scanned per matching call",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})
	NotificationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "notification_failures_total", Help: "Push tokens that failed delivery",
	})
	JobsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "jobs_processed_total", Help: "Background jobs by kind and outcome"},
		[]string{"kind", "outcome"},
	)
	LocationMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "location_messages_total", Help: "Driver location messages consumed by result"},
		[]string{"result"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
