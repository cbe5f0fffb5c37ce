package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// TechnicalMetrics contains technical-level metrics for the configurator
// domain: HTTP transport, LLM circuit breaker state, and turn-deadline /
// rate-limit enforcement.
//
// All metrics follow the taxonomy:
// configurator_technical_<subsystem>_<metric_name>_<unit>
//
// Example:
//
//	tm := NewTechnicalMetrics("configurator")
//	tm.HTTP.Middleware(handler)
//	tm.LLMCircuitBreakerState.Set(1)
type TechnicalMetrics struct {
	// HTTP holds the standard HTTP request/duration/size metrics, shared
	// with the rest of the codebase's HTTPMetrics type.
	HTTP *HTTPMetrics

	// LLMCircuitBreakerState mirrors the parameter extractor's circuit
	// breaker state (0=closed, 1=open, 2=half_open) for dashboarding
	// alongside HTTP and turn metrics. The authoritative, richer metrics
	// live on the circuit breaker itself (internal/infrastructure/llm).
	LLMCircuitBreakerState prometheus.Gauge

	// TurnDeadlineExceededTotal counts turns aborted by the per-turn
	// context deadline (spec §5/§7 DeadlineExceeded).
	TurnDeadlineExceededTotal *prometheus.CounterVec

	// RateLimitRejectionsTotal counts turns rejected by the per-session
	// rate limiter before processing began.
	RateLimitRejectionsTotal prometheus.Counter

	// LockContentionTotal counts attempts to acquire the per-session
	// mutation lock that had to wait for a concurrent holder.
	LockContentionTotal prometheus.Counter
}

// NewTechnicalMetrics creates technical metrics for the given namespace.
func NewTechnicalMetrics(namespace string) *TechnicalMetrics {
	return &TechnicalMetrics{
		HTTP: NewHTTPMetricsWithNamespace(namespace, "technical_http"),

		LLMCircuitBreakerState: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "technical_llm",
			Name:      "circuit_breaker_state",
			Help:      "Current state of the LLM circuit breaker as observed by the registry (0=closed, 1=open, 2=half_open)",
		}),

		TurnDeadlineExceededTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "technical_turn",
				Name:      "deadline_exceeded_total",
				Help:      "Total number of turns aborted by the per-turn deadline",
			},
			[]string{"stage"}, // stage: extraction|search|compatibility|composer
		),

		RateLimitRejectionsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "technical_turn",
				Name:      "rate_limit_rejections_total",
				Help:      "Total number of turns rejected by the per-session rate limiter",
			},
		),

		LockContentionTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "technical_session",
				Name:      "lock_contention_total",
				Help:      "Total number of session mutation lock acquisitions that had to wait",
			},
		),
	}
}
