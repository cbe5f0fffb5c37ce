package sqlite_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weldcfg/configurator/internal/core"
	"github.com/weldcfg/configurator/internal/storage"
	"github.com/weldcfg/configurator/internal/storage/sqlite"
)

func newTestArchiver(t *testing.T) *sqlite.Archiver {
	ctx := context.Background()
	dbPath := t.TempDir() + "/sessions.db"
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	a, err := sqlite.New(ctx, dbPath, logger)
	require.NoError(t, err)
	require.NotNil(t, a)
	t.Cleanup(func() { a.Close() })
	return a
}

func newFinalizedSession(id string) core.SessionState {
	s := core.NewSessionState(id, "en", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	s.Phase = core.PhaseCompleted
	s.Cart.Set(core.KindPowerSource, core.CartEntry{
		Status:  core.StatusSelected,
		Product: &core.Product{GIN: "PS-100", Name: "MIG 200", Kind: core.KindPowerSource},
	})
	return s
}

func TestArchiver_Archive(t *testing.T) {
	a := newTestArchiver(t)
	ctx := context.Background()

	s := newFinalizedSession("session-1")
	err := a.Archive(ctx, s)
	assert.NoError(t, err)
}

func TestArchiver_Archive_Upsert(t *testing.T) {
	a := newTestArchiver(t)
	ctx := context.Background()

	s := newFinalizedSession("session-upsert")
	require.NoError(t, a.Archive(ctx, s))

	s.Cart.Set(core.KindFeeder, core.CartEntry{
		Status:  core.StatusSelected,
		Product: &core.Product{GIN: "FD-1", Name: "Feeder", Kind: core.KindFeeder},
	})
	err := a.Archive(ctx, s)
	assert.NoError(t, err, "archiving the same session id again should update, not error")
}

func TestArchiver_Get_RoundTrips(t *testing.T) {
	a := newTestArchiver(t)
	ctx := context.Background()

	s := newFinalizedSession("session-roundtrip")
	require.NoError(t, a.Archive(ctx, s))

	got, err := a.Get(ctx, "session-roundtrip")
	require.NoError(t, err)
	assert.Equal(t, "session-roundtrip", got.SessionID)
	assert.Equal(t, "en", got.LanguageTag)
	entry := got.Cart.Get(core.KindPowerSource)
	require.NotNil(t, entry.Product)
	assert.Equal(t, "PS-100", entry.Product.GIN)
}

func TestArchiver_Get_NotFound(t *testing.T) {
	a := newTestArchiver(t)
	_, err := a.Get(context.Background(), "does-not-exist")
	assert.True(t, storage.IsNotFoundError(err), "expected a not-found error, got %v", err)
}

func TestArchiver_Health(t *testing.T) {
	a := newTestArchiver(t)
	assert.NoError(t, a.Health(context.Background()))
}

func TestArchiver_GetFileSize(t *testing.T) {
	a := newTestArchiver(t)
	ctx := context.Background()

	require.NoError(t, a.Archive(ctx, newFinalizedSession("session-size")))
	assert.Greater(t, a.GetFileSize(), int64(0))
}

func TestArchiver_ConcurrentArchive(t *testing.T) {
	a := newTestArchiver(t)
	ctx := context.Background()

	const n = 10
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func(id int) {
			s := newFinalizedSession(string(rune('a' + id)))
			errs <- a.Archive(ctx, s)
		}(i)
	}
	for i := 0; i < n; i++ {
		assert.NoError(t, <-errs)
	}
}
