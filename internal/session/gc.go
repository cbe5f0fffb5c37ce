package session

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/weldcfg/configurator/internal/core"
)

// GCWorker periodically sweeps the active-session index for entries
// whose hot-cache TTL has already lapsed without the session having been
// archived — a case that shouldn't occur in steady state (Archive always
// removes the index entry it finalizes) but can arise if a process
// crashed between a Redis TTL expiry and the corresponding Archive call.
// It is purely observational: it never deletes a live session or forces
// an archive, only emits a telemetry event and tidies its own index.
//
// Grounded on the teacher's internal/business/silencing/gc_worker.go
// ticker-based worker shape (Start/Stop, run-immediately-then-tick loop,
// graceful shutdown via stopCh/doneCh).
type GCWorker struct {
	store     *Store
	telemetry core.Telemetry
	interval  time.Duration

	logger *slog.Logger

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewGCWorker builds a GC worker (not started). interval defaults to 5
// minutes, matching the teacher's default cleanup cadence.
func NewGCWorker(store *Store, telemetry core.Telemetry, interval time.Duration, logger *slog.Logger) *GCWorker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GCWorker{
		store:     store,
		telemetry: telemetry,
		interval:  interval,
		logger:    logger,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start runs the sweep loop in a background goroutine. Non-blocking.
func (w *GCWorker) Start(ctx context.Context) {
	go w.run(ctx)
	w.logger.Info("session gc worker started", "interval", w.interval)
}

func (w *GCWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("session gc worker stopped (context cancelled)")
			return
		case <-w.stopCh:
			w.logger.Info("session gc worker stopped (explicit stop)")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

// sweep checks every indexed session ID for a lapsed TTL and reports
// what it finds. It mutates nothing about session state; the only write
// is dropping a stale entry from the worker's own bookkeeping index.
func (w *GCWorker) sweep(ctx context.Context) {
	start := time.Now()

	ids, err := w.store.ActiveSessionIDs(ctx)
	if err != nil {
		w.logger.Error("session gc: failed to list active sessions", "error", err)
		return
	}

	var lapsed int
	for _, id := range ids {
		ttl, err := w.store.SessionTTL(ctx, id)
		if err != nil {
			w.logger.Warn("session gc: failed to read ttl", "session_id", id, "error", err)
			continue
		}
		if ttl > 0 {
			continue
		}
		lapsed++
		if err := w.store.DropFromActiveSet(ctx, id); err != nil {
			w.logger.Warn("session gc: failed to drop stale index entry", "session_id", id, "error", err)
		}
	}

	if w.telemetry != nil {
		w.telemetry.Emit(ctx, "session.gc.sweep", map[string]string{
			"active_count": strconv.Itoa(len(ids)),
			"lapsed_count": strconv.Itoa(lapsed),
		})
	}

	w.logger.Info("session gc sweep complete",
		"active", len(ids),
		"lapsed_without_archive", lapsed,
		"duration", time.Since(start),
	)
}

// Stop gracefully stops the worker. Safe to call once; a second call
// would panic on the already-closed stopCh, matching the teacher's own
// single-shutdown contract for this worker shape.
func (w *GCWorker) Stop() {
	close(w.stopCh)
	<-w.doneCh
}
