package realtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weldcfg/configurator/internal/core"
	"log/slog"
)

func TestEventPublisher_PublishTurnEvent(t *testing.T) {
	// Use nil metrics to avoid Prometheus registration issues in tests
	eventBus := NewEventBus(slog.Default(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := eventBus.Start(ctx)
	require.NoError(t, err)
	defer eventBus.Stop(context.Background())

	publisher := NewEventPublisher(eventBus, slog.Default(), nil)

	err = publisher.PublishTurnEvent(EventTypeTurnCompleted, "session-1", core.S1PowerSource, 42)
	assert.NoError(t, err)
}

func TestEventPublisher_PublishSessionEvent(t *testing.T) {
	eventBus := NewEventBus(slog.Default(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := eventBus.Start(ctx)
	require.NoError(t, err)
	defer eventBus.Stop(context.Background())

	publisher := NewEventPublisher(eventBus, slog.Default(), nil)

	err = publisher.PublishSessionEvent(EventTypeSessionFinalized, "session-1", "en")
	assert.NoError(t, err)
}

func TestEventPublisher_PublishStatsEvent(t *testing.T) {
	// Use nil metrics to avoid Prometheus registration issues in tests
	eventBus := NewEventBus(slog.Default(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := eventBus.Start(ctx)
	require.NoError(t, err)
	defer eventBus.Stop(context.Background())

	publisher := NewEventPublisher(eventBus, slog.Default(), nil)

	stats := &ConfiguratorStats{
		ActiveSessions:      10,
		FinalizedToday:      5,
		ExtractionFailures:  1,
		CircuitBreakerTrips: 0,
	}

	err = publisher.PublishStatsEvent(stats)
	assert.NoError(t, err)
}

func TestEventPublisher_PublishHealthEvent(t *testing.T) {
	// Use nil metrics to avoid Prometheus registration issues in tests
	eventBus := NewEventBus(slog.Default(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := eventBus.Start(ctx)
	require.NoError(t, err)
	defer eventBus.Stop(context.Background())

	publisher := NewEventPublisher(eventBus, slog.Default(), nil)

	err = publisher.PublishHealthEvent("PostgreSQL", "healthy", 10.5, "All checks passed")
	assert.NoError(t, err)
}

func TestEventPublisher_PublishSystemNotification(t *testing.T) {
	// Use nil metrics to avoid Prometheus registration issues in tests
	eventBus := NewEventBus(slog.Default(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := eventBus.Start(ctx)
	require.NoError(t, err)
	defer eventBus.Stop(context.Background())

	publisher := NewEventPublisher(eventBus, slog.Default(), nil)

	err = publisher.PublishSystemNotification("info", "System maintenance scheduled")
	assert.NoError(t, err)
}

func TestEventPublisher_NilEventBus(t *testing.T) {
	// Publisher should handle nil EventBus gracefully
	publisher := NewEventPublisher(nil, slog.Default(), nil)

	// Should not panic
	err := publisher.PublishTurnEvent(EventTypeTurnCompleted, "session-1", core.S1PowerSource, 10)
	assert.NoError(t, err) // Returns nil when EventBus is nil
}
