package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BusinessMetrics contains business-level metrics for the configurator
// domain: conversation turns, state transitions, parameter extraction, and
// cart/session outcomes.
//
// All metrics follow the taxonomy:
// configurator_business_<subsystem>_<metric_name>_<unit>
//
// Example:
//
//	bm := NewBusinessMetrics("configurator")
//	bm.TurnsTotal.WithLabelValues("S2", "search").Inc()
//	bm.ExtractionConfidence.Observe(0.91)
type BusinessMetrics struct {
	// TurnsTotal counts processed conversation turns by originating state
	// and resolved intent.
	TurnsTotal *prometheus.CounterVec

	// TurnDurationSeconds tracks end-to-end turn processing latency.
	TurnDurationSeconds *prometheus.HistogramVec

	// StateTransitionsTotal counts S1..S7 transitions.
	StateTransitionsTotal *prometheus.CounterVec

	// ExtractionsTotal counts parameter extractions by outcome
	// (committed|clarify|fallback).
	ExtractionsTotal *prometheus.CounterVec

	// ExtractionConfidence observes the LLM port's reported confidence
	// for each extraction.
	ExtractionConfidence prometheus.Histogram

	// SearchResultsTotal observes the number of candidates a repository
	// search returns, by component kind.
	SearchResultsTotal *prometheus.HistogramVec

	// CompatibilityChecksTotal counts compatibility-engine evaluations by
	// result (compatible|incompatible).
	CompatibilityChecksTotal *prometheus.CounterVec

	// SessionsFinalizedTotal counts sessions that reached S7 COMPLETED.
	SessionsFinalizedTotal prometheus.Counter

	// SessionsAbandonedTotal counts sessions whose hot cache TTL lapsed
	// before finalization.
	SessionsAbandonedTotal prometheus.Counter
}

// NewBusinessMetrics creates business metrics for the given namespace.
func NewBusinessMetrics(namespace string) *BusinessMetrics {
	return &BusinessMetrics{
		TurnsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "business_turn",
				Name:      "turns_total",
				Help:      "Total number of conversation turns processed",
			},
			[]string{"state", "intent"},
		),

		TurnDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "business_turn",
				Name:      "duration_seconds",
				Help:      "End-to-end duration of a processed turn",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"state"},
		),

		StateTransitionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "business_state",
				Name:      "transitions_total",
				Help:      "Total number of state machine transitions",
			},
			[]string{"from", "to"},
		),

		ExtractionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "business_extraction",
				Name:      "extractions_total",
				Help:      "Total number of parameter extraction attempts by outcome",
			},
			[]string{"outcome"}, // committed|clarify|fallback
		),

		ExtractionConfidence: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "business_extraction",
				Name:      "confidence",
				Help:      "Reported confidence of LLM parameter extractions",
				Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.85, 0.9, 0.95, 1.0},
			},
		),

		SearchResultsTotal: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "business_search",
				Name:      "results_total",
				Help:      "Number of candidates returned by a product repository search",
				Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100},
			},
			[]string{"kind"},
		),

		CompatibilityChecksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "business_compatibility",
				Name:      "checks_total",
				Help:      "Total number of compatibility engine evaluations",
			},
			[]string{"kind", "result"}, // result: compatible|incompatible
		),

		SessionsFinalizedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "business_session",
				Name:      "finalized_total",
				Help:      "Total number of sessions reaching COMPLETED",
			},
		),

		SessionsAbandonedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "business_session",
				Name:      "abandoned_total",
				Help:      "Total number of sessions whose hot cache TTL lapsed without finalization",
			},
		),
	}
}
