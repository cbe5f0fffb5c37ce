// Package postgres implements the Session Store's terminal archive (C6)
// against PostgreSQL, for the Standard deployment profile.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/weldcfg/configurator/internal/core"
	"github.com/weldcfg/configurator/internal/database/postgres"
	"github.com/weldcfg/configurator/internal/storage"
)

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// Archiver implements the terminal archive half of the Session Store
// port (C6) against a shared `archived_sessions` table, column-compatible
// with the SQLite archiver used in the Lite profile.
type Archiver struct {
	db     postgres.DatabaseConnection
	logger *slog.Logger
}

// New builds a Postgres archiver over an already-connected pool. Schema
// (archived_sessions table) is created by the goose migrations in
// internal/infrastructure/migrations, not by this constructor.
func New(db postgres.DatabaseConnection, logger *slog.Logger) *Archiver {
	if logger == nil {
		logger = slog.Default()
	}
	storage.SetBackendType("postgres", 2)
	return &Archiver{db: db, logger: logger}
}

// Archive implements storage.Archiver: persists the final cart and
// master bags for a finalized session (spec §4.6). Idempotent via
// UPSERT.
func (a *Archiver) Archive(ctx context.Context, s core.SessionState) error {
	startTime := time.Now()

	cartJSON, err := json.Marshal(s.Cart)
	if err != nil {
		storage.RecordError("archive", "postgres", storage.ErrorTypeValidation)
		return fmt.Errorf("failed to marshal cart: %w", err)
	}
	masterJSON, err := json.Marshal(s.Master)
	if err != nil {
		storage.RecordError("archive", "postgres", storage.ErrorTypeValidation)
		return fmt.Errorf("failed to marshal master: %w", err)
	}

	query := `
INSERT INTO archived_sessions (session_id, language_tag, cart_json, master_json, finalized_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (session_id) DO UPDATE SET
    language_tag = excluded.language_tag,
    cart_json    = excluded.cart_json,
    master_json  = excluded.master_json,
    finalized_at = excluded.finalized_at
`
	_, err = a.db.Exec(ctx, query,
		s.SessionID, s.LanguageTag, cartJSON, masterJSON, s.UpdatedAt,
	)
	if err != nil {
		storage.RecordOperation("archive", "postgres", "error")
		return fmt.Errorf("failed to archive session: %w", err)
	}

	duration := time.Since(startTime)
	storage.RecordOperation("archive", "postgres", "success")
	storage.RecordOperationDuration("archive", "postgres", duration.Seconds())

	a.logger.Debug("session archived", "session_id", s.SessionID, "duration_ms", duration.Milliseconds())
	return nil
}

// Get fetches a previously archived session by ID, for operator tooling
// (cmd/admin) rather than the hot conversational path.
func (a *Archiver) Get(ctx context.Context, sessionID string) (core.SessionState, error) {
	var (
		languageTag              string
		cartJSON, masterJSON     []byte
		finalizedAt              time.Time
	)
	row := a.db.QueryRow(ctx,
		`SELECT language_tag, cart_json, master_json, finalized_at FROM archived_sessions WHERE session_id = $1`,
		sessionID,
	)
	if err := row.Scan(&languageTag, &cartJSON, &masterJSON, &finalizedAt); err != nil {
		if isNoRows(err) {
			storage.RecordError("get", "postgres", storage.ErrorTypeNotFound)
			return core.SessionState{}, &storage.ErrNotFound{Backend: "postgres", SessionID: sessionID}
		}
		storage.RecordError("get", "postgres", storage.ErrorTypeUnknown)
		return core.SessionState{}, fmt.Errorf("failed to fetch archived session: %w", err)
	}

	var s core.SessionState
	s.SessionID = sessionID
	s.LanguageTag = languageTag
	s.UpdatedAt = finalizedAt
	if err := json.Unmarshal(cartJSON, &s.Cart); err != nil {
		return core.SessionState{}, fmt.Errorf("failed to unmarshal cart: %w", err)
	}
	if err := json.Unmarshal(masterJSON, &s.Master); err != nil {
		return core.SessionState{}, fmt.Errorf("failed to unmarshal master: %w", err)
	}
	s.Phase = core.PhaseCompleted
	return s, nil
}

// Health delegates to the pool's own health check.
func (a *Archiver) Health(ctx context.Context) error {
	if err := a.db.Health(ctx); err != nil {
		storage.SetHealthStatus("postgres", 0)
		return fmt.Errorf("postgres health check failed: %w", err)
	}
	storage.SetHealthStatus("postgres", 1)
	return nil
}

// Close disconnects the underlying pool. The pool is typically owned by
// the caller (shared with the Product Repository), so callers that do
// not want that lifetime coupling should not invoke Close here and
// instead disconnect the pool themselves.
func (a *Archiver) Close() error {
	return a.db.Disconnect(context.Background())
}

var _ storage.Archiver = (*Archiver)(nil)
