// Package realtime broadcasts turn-lifecycle events to an ops feed over
// a websocket, for deployments that want live visibility into
// configurator sessions without polling the Session Store.
package realtime

import (
	"time"

	"github.com/google/uuid"
)

// Event represents a real-time event broadcast to subscribers.
type Event struct {
	// Type is the event type (turn_started, turn_completed, session_finalized, etc.)
	Type string `json:"type"`

	// ID is a unique event ID (UUID)
	ID string `json:"id"`

	// Data is the event payload (varies by event type)
	Data map[string]interface{} `json:"data"`

	// Timestamp is when the event occurred
	Timestamp time.Time `json:"timestamp"`

	// Source is the event source (orchestrator, session_store, health_monitor, etc.)
	Source string `json:"source"`

	// Sequence is a sequence number for event ordering (monotonically increasing)
	Sequence int64 `json:"sequence"`
}

// EventType constants for ops-feed events.
const (
	// Turn Events
	EventTypeTurnStarted   = "turn_started"
	EventTypeTurnCompleted = "turn_completed"
	EventTypeTurnFailed    = "turn_failed"

	// Session Events
	EventTypeSessionCreated   = "session_created"
	EventTypeSessionFinalized = "session_finalized"
	EventTypeSessionReset     = "session_reset"

	// Stats Events
	EventTypeStatsUpdated = "stats_updated"

	// Health Events
	EventTypeHealthChanged = "health_changed"

	// System Events
	EventTypeSystemNotification = "system_notification"
)

// EventSource constants.
const (
	EventSourceOrchestrator  = "orchestrator"
	EventSourceSessionStore  = "session_store"
	EventSourceStatsCollector = "stats_collector"
	EventSourceHealthMonitor = "health_monitor"
	EventSourceSystem        = "system"
)

// NewEvent creates a new Event with the given type, data, and source.
func NewEvent(eventType string, data map[string]interface{}, source string) *Event {
	return &Event{
		Type:      eventType,
		ID:        generateEventID(),
		Data:      data,
		Timestamp: time.Now(),
		Source:    source,
		Sequence:  0, // Will be set by EventBus
	}
}

// generateEventID generates a unique event ID (UUID).
func generateEventID() string {
	return uuid.New().String()
}
