package session_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weldcfg/configurator/internal/core"
	"github.com/weldcfg/configurator/internal/infrastructure/cache"
	"github.com/weldcfg/configurator/internal/session"
	"github.com/weldcfg/configurator/internal/storage/sqlite"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestStore(t *testing.T) (*session.Store, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rc, err := cache.NewRedisCache(&cache.CacheConfig{Addr: mr.Addr(), PoolSize: 5}, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { rc.Close() })

	archiver, err := sqlite.New(context.Background(), t.TempDir()+"/sessions.db", testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { archiver.Close() })

	return session.New(rc, archiver, time.Hour, testLogger()), mr
}

func TestStore_CreateGet(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	state := core.NewSessionState("sess-1", "en", time.Now())
	require.NoError(t, store.Create(ctx, state))

	got, err := store.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, state.SessionID, got.SessionID)
	assert.Equal(t, core.S1PowerSource, got.CurrentState)
}

func TestStore_Get_Miss(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.Get(context.Background(), "never-created")
	assert.True(t, errors.Is(err, core.ErrCacheExpired))
}

func TestStore_Put_ResetsTTL(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	state := core.NewSessionState("sess-2", "en", time.Now())
	require.NoError(t, store.Create(ctx, state))

	mr.FastForward(59 * time.Minute)
	require.NoError(t, store.Put(ctx, state))
	mr.FastForward(59 * time.Minute)

	_, err := store.Get(ctx, "sess-2")
	assert.NoError(t, err, "Put should have reset the TTL past the first hour")
}

func TestStore_Reset_Idempotent(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	state := core.NewSessionState("sess-3", "en", time.Now())
	require.NoError(t, store.Create(ctx, state))

	require.NoError(t, store.Reset(ctx, "sess-3"))
	require.NoError(t, store.Reset(ctx, "sess-3"), "resetting an already-absent session must not error")

	_, err := store.Get(ctx, "sess-3")
	assert.True(t, errors.Is(err, core.ErrCacheExpired))
}

func TestStore_Archive_EvictsFromHotCache(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	state := core.NewSessionState("sess-4", "en", time.Now())
	state.Phase = core.PhaseCompleted
	require.NoError(t, store.Create(ctx, state))

	require.NoError(t, store.Archive(ctx, state))

	_, err := store.Get(ctx, "sess-4")
	assert.True(t, errors.Is(err, core.ErrCacheExpired), "archived session should no longer be in the hot cache")
}

func TestStore_Health(t *testing.T) {
	store, _ := newTestStore(t)
	assert.NoError(t, store.Health(context.Background()))
}

func TestStore_ActiveSessionIDs_TracksCreateAndArchive(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	state := core.NewSessionState("sess-active-1", "en", time.Now())
	require.NoError(t, store.Create(ctx, state))

	ids, err := store.ActiveSessionIDs(ctx)
	require.NoError(t, err)
	assert.Contains(t, ids, "sess-active-1")

	state.Phase = core.PhaseCompleted
	require.NoError(t, store.Archive(ctx, state))

	ids, err = store.ActiveSessionIDs(ctx)
	require.NoError(t, err)
	assert.NotContains(t, ids, "sess-active-1")
}

func TestStore_ActiveSessionIDs_TracksReset(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	state := core.NewSessionState("sess-active-2", "en", time.Now())
	require.NoError(t, store.Create(ctx, state))
	require.NoError(t, store.Reset(ctx, "sess-active-2"))

	ids, err := store.ActiveSessionIDs(ctx)
	require.NoError(t, err)
	assert.NotContains(t, ids, "sess-active-2")
}

func TestStore_SessionTTL(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	state := core.NewSessionState("sess-ttl-1", "en", time.Now())
	require.NoError(t, store.Create(ctx, state))

	ttl, err := store.SessionTTL(ctx, "sess-ttl-1")
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	mr.FastForward(2 * time.Hour)

	ttl, err = store.SessionTTL(ctx, "sess-ttl-1")
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), ttl, "an expired key reports a zero TTL, not an error")
}

func TestStore_DropFromActiveSet(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	state := core.NewSessionState("sess-active-3", "en", time.Now())
	require.NoError(t, store.Create(ctx, state))

	require.NoError(t, store.DropFromActiveSet(ctx, "sess-active-3"))

	ids, err := store.ActiveSessionIDs(ctx)
	require.NoError(t, err)
	assert.NotContains(t, ids, "sess-active-3")

	// The session itself is untouched; only the index entry was dropped.
	_, err = store.Get(ctx, "sess-active-3")
	assert.NoError(t, err)
}
