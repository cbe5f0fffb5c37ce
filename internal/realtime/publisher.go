package realtime

import (
	"log/slog"

	"github.com/weldcfg/configurator/internal/core"
)

// EventPublisher publishes events to EventBus from various sources.
type EventPublisher struct {
	eventBus *DefaultEventBus
	logger   *slog.Logger
	metrics  *RealtimeMetrics
}

// NewEventPublisher creates a new event publisher.
func NewEventPublisher(eventBus *DefaultEventBus, logger *slog.Logger, metrics *RealtimeMetrics) *EventPublisher {
	return &EventPublisher{
		eventBus: eventBus,
		logger:   logger.With("component", "event_publisher"),
		metrics:  metrics,
	}
}

// PublishTurnEvent publishes a turn-lifecycle event: a session received
// and finished processing one message (spec §4.8).
func (p *EventPublisher) PublishTurnEvent(eventType string, sessionID string, state core.State, durationMs int64) error {
	if p.eventBus == nil {
		return nil // EventBus not initialized, skip
	}

	data := map[string]interface{}{
		"session_id":  sessionID,
		"state":       state,
		"duration_ms": durationMs,
	}

	event := NewEvent(eventType, data, EventSourceOrchestrator)
	return p.eventBus.Publish(*event)
}

// PublishSessionEvent publishes a session lifecycle event: created,
// finalized, or explicitly reset (spec §4.6, §4.8 step 4).
func (p *EventPublisher) PublishSessionEvent(eventType string, sessionID string, languageTag string) error {
	if p.eventBus == nil {
		return nil // EventBus not initialized, skip
	}

	data := map[string]interface{}{
		"session_id":   sessionID,
		"language_tag": languageTag,
	}

	event := NewEvent(eventType, data, EventSourceSessionStore)
	return p.eventBus.Publish(*event)
}

// ConfiguratorStats represents ops-feed aggregate statistics.
type ConfiguratorStats struct {
	ActiveSessions     int `json:"active_sessions"`
	FinalizedToday     int `json:"finalized_today"`
	ExtractionFailures int `json:"extraction_failures"`
	CircuitBreakerTrips int `json:"circuit_breaker_trips"`
}

// PublishStatsEvent publishes a stats update event.
func (p *EventPublisher) PublishStatsEvent(stats *ConfiguratorStats) error {
	if p.eventBus == nil {
		return nil // EventBus not initialized, skip
	}

	data := map[string]interface{}{
		"active_sessions":      stats.ActiveSessions,
		"finalized_today":      stats.FinalizedToday,
		"extraction_failures":  stats.ExtractionFailures,
		"circuit_breaker_trips": stats.CircuitBreakerTrips,
	}

	event := NewEvent(EventTypeStatsUpdated, data, EventSourceStatsCollector)
	return p.eventBus.Publish(*event)
}

// PublishHealthEvent publishes a health change event.
func (p *EventPublisher) PublishHealthEvent(component string, status string, latency float64, message string) error {
	if p.eventBus == nil {
		return nil // EventBus not initialized, skip
	}

	data := map[string]interface{}{
		"component":  component,
		"status":     status,
		"latency_ms": latency,
	}

	if message != "" {
		data["message"] = message
	}

	event := NewEvent(EventTypeHealthChanged, data, EventSourceHealthMonitor)
	return p.eventBus.Publish(*event)
}

// PublishSystemNotification publishes a system notification event.
func (p *EventPublisher) PublishSystemNotification(level string, message string) error {
	if p.eventBus == nil {
		return nil // EventBus not initialized, skip
	}

	data := map[string]interface{}{
		"level":   level, // info, warning, error
		"message": message,
	}

	event := NewEvent(EventTypeSystemNotification, data, EventSourceSystem)
	return p.eventBus.Publish(*event)
}
