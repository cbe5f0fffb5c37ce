// Package sqlite implements the Session Store's terminal archive (C6)
// using an embedded SQLite database. Designed for the Lite deployment
// profile (single-node, no external dependencies).
//
// Features:
//   - WAL mode enabled (concurrent reads during writes)
//   - Secure file permissions (0600, owner read/write only)
//   - Thread-safe operations (RWMutex)
//   - UPSERT logic (idempotent Archive)
//   - Compatible schema with the PostgreSQL archiver
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	// Pure Go SQLite driver (no CGO, easier cross-compilation)
	_ "modernc.org/sqlite"

	"github.com/weldcfg/configurator/internal/core"
	"github.com/weldcfg/configurator/internal/storage"
)

// Archiver implements the terminal archive half of the Session Store
// port (C6) using SQLite. Thread-safe for concurrent access.
type Archiver struct {
	db     *sql.DB
	logger *slog.Logger
	path   string
	mu     sync.RWMutex
}

// New creates a new SQLite archiver.
// Path must be absolute or relative to current working directory.
// File will be created with mode 0600 (owner read/write only).
// Parent directory will be created with mode 0700 if not exists.
func New(ctx context.Context, path string, logger *slog.Logger) (*Archiver, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path cannot be empty")
	}
	if strings.Contains(path, "..") {
		return nil, fmt.Errorf("invalid path contains '..': %s", path)
	}
	forbiddenPrefixes := []string{"/etc", "/sys", "/proc", "/dev"}
	for _, prefix := range forbiddenPrefixes {
		if strings.HasPrefix(path, prefix) {
			return nil, fmt.Errorf("forbidden path prefix %s: %s", prefix, path)
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?cache=shared&mode=rwc&_journal_mode=WAL", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite ping failed: %w", err)
	}

	a := &Archiver{db: db, logger: logger, path: path}

	if err := a.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if err := os.Chmod(path, 0600); err != nil {
		logger.Warn("failed to set file permissions to 0600", "path", path, "error", err)
	}

	logger.Info("sqlite session archiver initialized", "path", path, "wal_mode", true)
	storage.SetBackendType("sqlite", 1)

	return a, nil
}

// initSchema creates the archived_sessions table and its indexes.
// Schema is kept column-compatible with the PostgreSQL archiver.
func (a *Archiver) initSchema(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS archived_sessions (
    session_id    TEXT PRIMARY KEY,
    language_tag  TEXT NOT NULL,
    cart_json     TEXT NOT NULL,
    master_json   TEXT NOT NULL,
    finalized_at  INTEGER NOT NULL,
    created_at    INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
);

CREATE INDEX IF NOT EXISTS idx_archived_sessions_finalized_at ON archived_sessions(finalized_at);
`
	if _, err := a.db.ExecContext(ctx, schema); err != nil {
		return &storage.ErrSchemaInitFailed{Backend: "sqlite", Table: "archived_sessions", Cause: err}
	}
	return nil
}

// Archive implements storage.Archiver: persists the final cart and
// master bags for a finalized session (spec §4.6). Idempotent via
// UPSERT.
func (a *Archiver) Archive(ctx context.Context, s core.SessionState) error {
	startTime := time.Now()

	a.mu.RLock()
	defer a.mu.RUnlock()

	cartJSON, err := json.Marshal(s.Cart)
	if err != nil {
		storage.RecordError("archive", "sqlite", storage.ErrorTypeValidation)
		return fmt.Errorf("failed to marshal cart: %w", err)
	}
	masterJSON, err := json.Marshal(s.Master)
	if err != nil {
		storage.RecordError("archive", "sqlite", storage.ErrorTypeValidation)
		return fmt.Errorf("failed to marshal master: %w", err)
	}

	query := `
INSERT INTO archived_sessions (session_id, language_tag, cart_json, master_json, finalized_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(session_id) DO UPDATE SET
    language_tag = excluded.language_tag,
    cart_json    = excluded.cart_json,
    master_json  = excluded.master_json,
    finalized_at = excluded.finalized_at
`
	_, err = a.db.ExecContext(ctx, query,
		s.SessionID, s.LanguageTag, string(cartJSON), string(masterJSON), s.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		storage.RecordOperation("archive", "sqlite", "error")
		return fmt.Errorf("failed to archive session: %w", err)
	}

	duration := time.Since(startTime)
	storage.RecordOperation("archive", "sqlite", "success")
	storage.RecordOperationDuration("archive", "sqlite", duration.Seconds())

	a.logger.Debug("session archived", "session_id", s.SessionID, "duration_ms", duration.Milliseconds())
	return nil
}

// Get fetches a previously archived session by ID, for operator tooling
// (cmd/admin) rather than the hot conversational path.
func (a *Archiver) Get(ctx context.Context, sessionID string) (core.SessionState, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var (
		languageTag          string
		cartJSON, masterJSON string
		finalizedAtMillis    int64
	)
	row := a.db.QueryRowContext(ctx,
		`SELECT language_tag, cart_json, master_json, finalized_at FROM archived_sessions WHERE session_id = ?`,
		sessionID,
	)
	if err := row.Scan(&languageTag, &cartJSON, &masterJSON, &finalizedAtMillis); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			storage.RecordError("get", "sqlite", storage.ErrorTypeNotFound)
			return core.SessionState{}, &storage.ErrNotFound{Backend: "sqlite", SessionID: sessionID}
		}
		storage.RecordError("get", "sqlite", storage.ErrorTypeUnknown)
		return core.SessionState{}, fmt.Errorf("failed to fetch archived session: %w", err)
	}

	var s core.SessionState
	s.SessionID = sessionID
	s.LanguageTag = languageTag
	s.UpdatedAt = time.UnixMilli(finalizedAtMillis)
	if err := json.Unmarshal([]byte(cartJSON), &s.Cart); err != nil {
		return core.SessionState{}, fmt.Errorf("failed to unmarshal cart: %w", err)
	}
	if err := json.Unmarshal([]byte(masterJSON), &s.Master); err != nil {
		return core.SessionState{}, fmt.Errorf("failed to unmarshal master: %w", err)
	}
	s.Phase = core.PhaseCompleted
	return s, nil
}

// Close gracefully closes the database connection. Idempotent.
func (a *Archiver) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.db != nil {
		err := a.db.Close()
		a.db = nil
		if err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}
		a.logger.Info("sqlite session archiver closed", "path", a.path)
		storage.SetHealthStatus("sqlite", 0)
	}
	return nil
}

// Health checks database connection liveness via Ping.
func (a *Archiver) Health(ctx context.Context) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.db == nil {
		storage.SetHealthStatus("sqlite", 0)
		return fmt.Errorf("database connection is nil")
	}
	if err := a.db.PingContext(ctx); err != nil {
		storage.SetHealthStatus("sqlite", 0)
		return fmt.Errorf("health check failed: %w", err)
	}
	storage.SetHealthStatus("sqlite", 1)
	return nil
}

// GetFileSize returns current SQLite file size in bytes. Returns 0 if
// the file doesn't exist.
func (a *Archiver) GetFileSize() int64 {
	info, err := os.Stat(a.path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// GetPath returns the SQLite database file path.
func (a *Archiver) GetPath() string {
	return a.path
}
