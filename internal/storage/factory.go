// Package storage defines the Session Store's terminal-archive contract
// (spec §4.6) and the error taxonomy/metrics shared by its backends.
// The two backends — internal/storage/sqlite (Lite profile) and
// internal/storage/postgres (Standard profile) — each depend on this
// package; selecting between them lives in internal/session, which
// depends on both and is free to import them without creating a cycle.
package storage

import (
	"context"

	"github.com/weldcfg/configurator/internal/core"
)

// Archiver is the terminal-archive half of the Session Store port (C6):
// a finalized session's cart and master bags are written once, and the
// backend's liveness can be probed separately from the hot cache.
// internal/session.Store composes an Archiver with a cache.Cache to
// satisfy core.SessionStore in full.
type Archiver interface {
	Archive(ctx context.Context, s core.SessionState) error
	// Get fetches a previously archived session's final cart and master
	// bags by ID, for operator tooling (cmd/admin) rather than the hot
	// path. Both implementations report a missing ID as *ErrNotFound,
	// which IsNotFoundError recognizes.
	Get(ctx context.Context, sessionID string) (core.SessionState, error)
	Health(ctx context.Context) error
	Close() error
}
