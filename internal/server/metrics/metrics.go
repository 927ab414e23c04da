// Package metrics registers the Prometheus collectors of the filing server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SubmissionOutcomes counts validations by the state they finished in.
	SubmissionOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filing_submission_outcomes_total",
			Help: "Submissions that reached a state after validation",
		},
		[]string{"state"},
	)

	SubmissionsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "filing_submissions_expired_total",
			Help: "Submissions forced into VALIDATION_EXPIRED by the deadline guard",
		},
	)

	ValidationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "filing_validation_duration_seconds",
			Help:    "Wall time of one submission validation",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		},
	)

	ValidationsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "filing_validations_in_flight",
			Help: "Validations currently holding a worker slot",
		},
	)

	// InstitutionCache counts institution lookups by result: hit, miss or error.
	InstitutionCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filing_institution_cache_total",
			Help: "Institution lookups by cache result",
		},
		[]string{"result"},
	)

	ActionRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filing_action_rejections_total",
			Help: "Requests rejected by action validators",
		},
		[]string{"action"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filing_http_requests_total",
			Help: "HTTP requests served",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "filing_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)
