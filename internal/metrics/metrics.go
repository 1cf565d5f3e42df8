// Package metrics registers the prometheus collectors for the pipeline.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// CacheLookups counts cache lookups by outcome.
	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lab_ai_cache_lookups_total",
			Help: "Query cache lookups by outcome.",
		},
		[]string{"outcome"}, // hit, miss
	)

	// CacheEvictions counts evictions by cause.
	CacheEvictions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lab_ai_cache_evictions_total",
			Help: "Query cache evictions by cause.",
		},
		[]string{"cause"}, // ttl, capacity, reset
	)

	// ModelCalls counts outbound language model invocations.
	ModelCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lab_ai_model_calls_total",
			Help: "Outbound model invocations by kind.",
		},
		[]string{"kind"}, // embed, complete
	)

	// ValidationVerdicts counts validator outcomes by reason.
	ValidationVerdicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lab_ai_validation_verdicts_total",
			Help: "Validator verdicts by rejection reason (or accepted).",
		},
		[]string{"verdict"},
	)

	// ExecutionDuration observes lab database query latency.
	ExecutionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lab_ai_execution_duration_seconds",
			Help:    "Lab database query execution latency.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(
		CacheLookups,
		CacheEvictions,
		ModelCalls,
		ValidationVerdicts,
		ExecutionDuration,
	)
}
