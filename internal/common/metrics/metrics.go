// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Webhook ingest outcomes.
const (
	OutcomeCreated   = "created"
	OutcomeDuplicate = "duplicate"
	OutcomeInvalid   = "invalid"
	OutcomeError     = "error"
)

var (
	ApplicationSubmissions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "application_submissions_total",
			Help: "Total number of application submissions",
		},
	)

	ApplicationSubmissionErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "application_submission_errors_total",
			Help: "Total number of application submission errors",
		},
		[]string{"error_code"},
	)

	ApplicationSubmissionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "application_submission_duration_seconds",
			Help:    "Duration of application submission handler in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
	)

	CRMWebhookIngest = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_webhook_ingest_total",
			Help: "Relayed applications received by the CRM webhook, by outcome",
		},
		[]string{"outcome"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "route", "status"},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "crm_sessions_active",
			Help: "Number of live CRM sessions held in memory",
		},
	)
)
