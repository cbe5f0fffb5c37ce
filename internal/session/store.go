// Package session implements the Session Store (C6): a hot cache with
// TTL backing the live conversation, plus a terminal archive written
// once a session completes (spec §4.6).
package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/weldcfg/configurator/internal/core"
	"github.com/weldcfg/configurator/internal/infrastructure/cache"
	"github.com/weldcfg/configurator/internal/storage"
)

func sessionKey(id string) string {
	return fmt.Sprintf("session:%s", id)
}

// activeSessionsKey is the Redis SET tracking every session ID currently
// believed to be live in the hot cache, maintained alongside the TTL'd
// session:<id> keys themselves so gcWorker can enumerate candidates
// without a KEYS/SCAN sweep over the whole keyspace.
const activeSessionsKey = "sessions:active"

// Store implements core.SessionStore over a hot cache (reference
// implementation: Redis) plus a pluggable terminal Archiver (SQLite in
// the Lite profile, Postgres in the Standard profile).
type Store struct {
	cache    cache.Cache
	archiver storage.Archiver
	ttl      time.Duration
	logger   *slog.Logger
}

// New builds a Session Store. ttl is the hot-cache duration reset on
// every mutation (spec §4.6, default one hour).
func New(c cache.Cache, archiver storage.Archiver, ttl time.Duration, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Store{cache: c, archiver: archiver, ttl: ttl, logger: logger}
}

// Create writes a brand-new session into the hot cache.
func (s *Store) Create(ctx context.Context, state core.SessionState) error {
	if err := s.cache.Set(ctx, sessionKey(state.SessionID), state, s.ttl); err != nil {
		return fmt.Errorf("session store: create: %w", err)
	}
	if err := s.cache.SAdd(ctx, activeSessionsKey, state.SessionID); err != nil {
		s.logger.Warn("failed to index new session in active set", "session_id", state.SessionID, "error", err)
	}
	return nil
}

// Get reads a session from the hot cache. A miss (not found or TTL
// expiry) surfaces as core.ErrCacheExpired so the Orchestrator can treat
// it as a fresh session (spec §4.6 "reads that miss return 'session
// expired'").
func (s *Store) Get(ctx context.Context, id string) (core.SessionState, error) {
	var state core.SessionState
	if err := s.cache.Get(ctx, sessionKey(id), &state); err != nil {
		if cache.IsNotFound(err) {
			return core.SessionState{}, core.ErrCacheExpired
		}
		return core.SessionState{}, fmt.Errorf("session store: get: %w", err)
	}
	return state, nil
}

// Put persists a mutated session and resets its TTL (spec §4.6 "TTL
// reset to a fixed duration on every mutation").
func (s *Store) Put(ctx context.Context, state core.SessionState) error {
	state.UpdatedAt = time.Now()
	if err := s.cache.Set(ctx, sessionKey(state.SessionID), state, s.ttl); err != nil {
		return fmt.Errorf("session store: put: %w", err)
	}
	return nil
}

// Archive writes the finalized session to the terminal archive, then
// drops it from the hot cache: a completed session has no further
// turns and should not hold a Redis key until TTL expiry.
func (s *Store) Archive(ctx context.Context, state core.SessionState) error {
	if err := s.archiver.Archive(ctx, state); err != nil {
		return fmt.Errorf("session store: archive: %w", err)
	}
	if err := s.cache.Delete(ctx, sessionKey(state.SessionID)); err != nil && !cache.IsNotFound(err) {
		s.logger.Warn("failed to evict archived session from hot cache", "session_id", state.SessionID, "error", err)
	}
	if err := s.cache.SRem(ctx, activeSessionsKey, state.SessionID); err != nil {
		s.logger.Warn("failed to remove archived session from active set", "session_id", state.SessionID, "error", err)
	}
	return nil
}

// Reset discards a session's hot-cache entry. Idempotent: resetting a
// session that is already absent is not an error (spec §9 edge case 8,
// "two resets in a row leave the same fresh state").
func (s *Store) Reset(ctx context.Context, id string) error {
	if err := s.cache.Delete(ctx, sessionKey(id)); err != nil && !cache.IsNotFound(err) {
		return fmt.Errorf("session store: reset: %w", err)
	}
	if err := s.cache.SRem(ctx, activeSessionsKey, id); err != nil {
		s.logger.Warn("failed to remove reset session from active set", "session_id", id, "error", err)
	}
	return nil
}

// ActiveSessionIDs returns every session ID the store currently believes
// is live, for gcWorker's sweep.
func (s *Store) ActiveSessionIDs(ctx context.Context) ([]string, error) {
	return s.cache.SMembers(ctx, activeSessionsKey)
}

// SessionTTL reports the remaining hot-cache lifetime for a session ID,
// for gcWorker to judge lapsed-without-archive candidates. A zero
// duration with no error means the key is already gone.
func (s *Store) SessionTTL(ctx context.Context, id string) (time.Duration, error) {
	ttl, err := s.cache.TTL(ctx, sessionKey(id))
	if err != nil {
		if cache.IsNotFound(err) {
			return 0, nil
		}
		return 0, err
	}
	// Redis reports a missing or already-expired key as a negative TTL
	// rather than an error (-2 for absent, -1 for no expiry set); either
	// way there is nothing left to wait on.
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

// DropFromActiveSet removes a session ID from the active-sessions index
// without touching the session's own cache entry or archive — the
// correction gcWorker makes when it finds an entry in the index whose
// backing key has already expired.
func (s *Store) DropFromActiveSet(ctx context.Context, id string) error {
	return s.cache.SRem(ctx, activeSessionsKey, id)
}

// Health reports hot-cache and archive liveness together, used by the
// GET /health endpoint (spec §6).
func (s *Store) Health(ctx context.Context) error {
	if err := s.cache.HealthCheck(ctx); err != nil {
		return fmt.Errorf("session store: cache unhealthy: %w", err)
	}
	if err := s.archiver.Health(ctx); err != nil {
		return fmt.Errorf("session store: archive unhealthy: %w", err)
	}
	return nil
}

// Close releases the archiver's resources. The hot cache's lifetime is
// typically shared with other components and closed by its own owner.
func (s *Store) Close() error {
	return s.archiver.Close()
}

var _ core.SessionStore = (*Store)(nil)
