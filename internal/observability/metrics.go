package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce           sync.Once
	adminRequestsTotal     *prometheus.CounterVec
	adminLatencySeconds    *prometheus.HistogramVec
	adminErrorsTotal       *prometheus.CounterVec
	gradingOutcomesTotal   *prometheus.CounterVec
	gradingDurationSeconds *prometheus.HistogramVec
	gradingTriggersTotal   *prometheus.CounterVec
	submissionsTotal       prometheus.Counter
)

// RegisterMetrics initialises the Prometheus collectors used by the service.
func RegisterMetrics() {
	registerOnce.Do(func() {
		adminRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rubric_admin_requests_total",
			Help: "Total number of admin API requests served.",
		}, []string{"method", "route", "status"})

		adminLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rubric_admin_latency_seconds",
			Help:    "Latency distribution for admin API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 15.0, 60.0},
		}, []string{"method", "route"})

		adminErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rubric_admin_errors_total",
			Help: "Total number of error responses returned by admin endpoints.",
		}, []string{"method", "route", "status"})

		gradingOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rubric_grading_outcomes_total",
			Help: "Grading attempts by outcome.",
		}, []string{"status"})

		gradingDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rubric_grading_duration_seconds",
			Help:    "Duration of grading phases.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 8),
		}, []string{"phase"})

		gradingTriggersTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rubric_grading_triggers_total",
			Help: "Background grading triggers by transport and result.",
		}, []string{"transport", "result"})

		submissionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rubric_submissions_total",
			Help: "Total number of persisted rubric submissions.",
		})

		prometheus.MustRegister(
			adminRequestsTotal,
			adminLatencySeconds,
			adminErrorsTotal,
			gradingOutcomesTotal,
			gradingDurationSeconds,
			gradingTriggersTotal,
			submissionsTotal,
		)
	})
}

// AdminRequests exposes the counter for admin requests.
func AdminRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return adminRequestsTotal
}

// AdminLatency exposes the latency histogram for admin requests.
func AdminLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return adminLatencySeconds
}

// AdminErrors exposes the counter for admin error responses.
func AdminErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return adminErrorsTotal
}

// GradingOutcomes counts grading attempts labelled graded, partial, skipped or failed.
func GradingOutcomes() *prometheus.CounterVec {
	RegisterMetrics()
	return gradingOutcomesTotal
}

// GradingDuration observes the rubric, prompt and improvements phases.
func GradingDuration() *prometheus.HistogramVec {
	RegisterMetrics()
	return gradingDurationSeconds
}

// GradingTriggers counts background grading triggers.
func GradingTriggers() *prometheus.CounterVec {
	RegisterMetrics()
	return gradingTriggersTotal
}

// Submissions counts persisted submissions.
func Submissions() prometheus.Counter {
	RegisterMetrics()
	return submissionsTotal
}
