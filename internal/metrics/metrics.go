package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Hunt metrics
	HuntsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hunter_hunts_total",
			Help: "Total number of hunts by outcome",
		},
		[]string{"status"},
	)

	HuntDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hunter_hunt_duration_seconds",
			Help:    "End-to-end hunt duration in seconds",
			Buckets: []float64{1, 2.5, 5, 10, 20, 40, 80, 160},
		},
	)

	// Search task metrics
	SearchTasks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hunter_search_tasks_total",
			Help: "Search tasks by kind and outcome",
		},
		[]string{"mode", "status"},
	)

	OracleRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hunter_oracle_retries_total",
			Help: "Quota-triggered retries by scope (task or hunt)",
		},
		[]string{"scope"},
	)

	// Verification metrics
	ClaimsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hunter_claims_rejected_total",
			Help: "Claimed signals discarded during verification by reason",
		},
		[]string{"reason"},
	)

	SignalsAccepted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hunter_signals_accepted_total",
			Help: "Verified signals by source class",
		},
		[]string{"source"},
	)

	// Cache metrics
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hunter_cache_lookups_total",
			Help: "Hunt cache lookups by result",
		},
		[]string{"result"},
	)
)

// RecordHunt records the outcome of one hunt.
func RecordHunt(status string, durationSeconds float64) {
	HuntsTotal.WithLabelValues(status).Inc()
	HuntDuration.Observe(durationSeconds)
}

// RecordSearchTask records the outcome of one search task.
func RecordSearchTask(mode, status string) {
	SearchTasks.WithLabelValues(mode, status).Inc()
}

// RecordRetry counts a quota retry in scope.
func RecordRetry(scope string) {
	OracleRetries.WithLabelValues(scope).Inc()
}

// RecordRejection counts a discarded claim.
func RecordRejection(reason string) {
	ClaimsRejected.WithLabelValues(reason).Inc()
}

// RecordAccepted counts a verified signal by source class.
func RecordAccepted(source string) {
	SignalsAccepted.WithLabelValues(source).Inc()
}

// RecordCacheLookup counts a cache hit, miss or error.
func RecordCacheLookup(result string) {
	CacheLookups.WithLabelValues(result).Inc()
}
