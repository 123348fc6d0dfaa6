// Package metrics provides Prometheus metrics for the Fern matching engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MatchesTotal tracks matches returned by match type
	MatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "matching",
			Name:      "matches_total",
			Help:      "Total number of matches returned by match type",
		},
		[]string{"match_type", "relationship_source"},
	)

	// QueryDuration tracks end-to-end query duration in seconds
	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "matching",
			Name:      "query_duration_seconds",
			Help:      "Duration of match queries in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5},
		},
		[]string{"outcome"},
	)

	// QueriesTotal tracks query outcomes
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "matching",
			Name:      "queries_total",
			Help:      "Total number of match queries by outcome",
		},
		[]string{"outcome"},
	)

	// CacheLookups tracks cache hits and misses
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Total number of cache lookups by result",
		},
		[]string{"result"},
	)

	// StoreLookupDuration tracks reference store lookup duration
	StoreLookupDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "store",
			Name:      "lookup_duration_seconds",
			Help:      "Duration of reference store lookups in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"operation"},
	)

	// BatchItemsProcessed tracks batch items by status
	BatchItemsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "batch",
			Name:      "items_processed_total",
			Help:      "Total number of batch items processed by status",
		},
		[]string{"status"},
	)

	// BatchItemsInFlight tracks batch items currently being processed
	BatchItemsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "fern",
			Subsystem: "batch",
			Name:      "items_in_flight",
			Help:      "Number of batch items currently being processed",
		},
	)

	// AffiliatedBoostsTotal tracks affiliated matches that received a boost
	AffiliatedBoostsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "affiliated",
			Name:      "boosts_total",
			Help:      "Total number of affiliated matches boosted",
		},
	)
)

// RecordQuery records a completed match query
func RecordQuery(outcome string, durationSeconds float64) {
	QueriesTotal.WithLabelValues(outcome).Inc()
	QueryDuration.WithLabelValues(outcome).Observe(durationSeconds)
}

// RecordMatch records one returned match
func RecordMatch(matchType, relationshipSource string) {
	MatchesTotal.WithLabelValues(matchType, relationshipSource).Inc()
}

// RecordCacheLookup records a cache hit or miss
func RecordCacheLookup(hit bool) {
	if hit {
		CacheLookups.WithLabelValues("hit").Inc()
	} else {
		CacheLookups.WithLabelValues("miss").Inc()
	}
}

// RecordStoreLookup records a reference store lookup
func RecordStoreLookup(operation string, durationSeconds float64) {
	StoreLookupDuration.WithLabelValues(operation).Observe(durationSeconds)
}

// RecordBatchItem records a processed batch item
func RecordBatchItem(status string) {
	BatchItemsProcessed.WithLabelValues(status).Inc()
}
