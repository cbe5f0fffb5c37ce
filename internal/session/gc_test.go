package session_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weldcfg/configurator/internal/core"
	"github.com/weldcfg/configurator/internal/session"
)

// fakeTelemetry records every Emit call so tests can assert the worker
// reports what it found without depending on log output.
type fakeTelemetry struct {
	mu    sync.Mutex
	spans []string
	attrs []map[string]string
}

func (f *fakeTelemetry) Emit(ctx context.Context, spanName string, attrs map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spans = append(f.spans, spanName)
	f.attrs = append(f.attrs, attrs)
}

func (f *fakeTelemetry) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.spans)
}

func (f *fakeTelemetry) lastAttrs() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.attrs) == 0 {
		return nil
	}
	return f.attrs[len(f.attrs)-1]
}

var _ core.Telemetry = (*fakeTelemetry)(nil)

func TestGCWorker_StartStop(t *testing.T) {
	store, _ := newTestStore(t)
	telem := &fakeTelemetry{}
	worker := session.NewGCWorker(store, telem, time.Hour, testLogger())

	worker.Start(context.Background())
	time.Sleep(50 * time.Millisecond)

	start := time.Now()
	worker.Stop()
	assert.Less(t, time.Since(start), time.Second, "Stop should complete quickly")
}

func TestGCWorker_ContextCancellation(t *testing.T) {
	store, _ := newTestStore(t)
	telem := &fakeTelemetry{}
	worker := session.NewGCWorker(store, telem, time.Hour, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	worker.Start(ctx)
	time.Sleep(50 * time.Millisecond)

	cancel()
	time.Sleep(100 * time.Millisecond) // run() exits on ctx.Done without requiring Stop()
}

func TestGCWorker_SweepReportsActiveAndLapsedCounts(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	live := core.NewSessionState("sess-live", "en", time.Now())
	require.NoError(t, store.Create(ctx, live))

	stale := core.NewSessionState("sess-stale", "en", time.Now())
	require.NoError(t, store.Create(ctx, stale))
	mr.FastForward(2 * time.Hour) // lapses sess-stale and sess-live's hot-cache TTL alike

	require.NoError(t, store.Create(ctx, live)) // re-create sess-live so it has a fresh TTL

	telem := &fakeTelemetry{}
	worker := session.NewGCWorker(store, telem, time.Hour, testLogger())

	// Run a single sweep synchronously by starting and immediately
	// stopping: Start's first sweep runs before the ticker loop blocks.
	worker.Start(ctx)
	time.Sleep(50 * time.Millisecond)
	worker.Stop()

	require.GreaterOrEqual(t, telem.calls(), 1)
	attrs := telem.lastAttrs()
	assert.Contains(t, attrs, "active_count")
	assert.Contains(t, attrs, "lapsed_count")

	ids, err := store.ActiveSessionIDs(ctx)
	require.NoError(t, err)
	assert.Contains(t, ids, "sess-live")
	assert.NotContains(t, ids, "sess-stale", "a lapsed index entry is dropped by the sweep")
}

func TestGCWorker_NilTelemetryDoesNotPanic(t *testing.T) {
	store, _ := newTestStore(t)
	worker := session.NewGCWorker(store, nil, time.Hour, testLogger())

	worker.Start(context.Background())
	time.Sleep(50 * time.Millisecond)
	worker.Stop()
}
