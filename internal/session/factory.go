package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/weldcfg/configurator/internal/config"
	"github.com/weldcfg/configurator/internal/database/postgres"
	"github.com/weldcfg/configurator/internal/infrastructure/cache"
	"github.com/weldcfg/configurator/internal/storage"
	pgarchive "github.com/weldcfg/configurator/internal/storage/postgres"
	"github.com/weldcfg/configurator/internal/storage/sqlite"
)

// NewArchiver builds the terminal-archive backend matching cfg.Profile
// (spec §4.6, SPEC_FULL.md "Deployment profile"):
//
//   - Lite: an embedded SQLite file at cfg.Storage.FilesystemPath.
//   - Standard: PostgreSQL over db, an already-connected pool typically
//     shared with the Product Repository. db may be nil only when the
//     profile is Lite.
func NewArchiver(ctx context.Context, cfg *config.Config, db postgres.DatabaseConnection, logger *slog.Logger) (storage.Archiver, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := cfg.Validate(); err != nil {
		return nil, &storage.ErrInvalidProfile{Profile: string(cfg.Profile), Cause: err}
	}

	logger.Info("initializing session archive backend", "profile", cfg.Profile, "backend", cfg.Storage.Backend)

	switch {
	case cfg.IsLiteProfile():
		if cfg.Storage.FilesystemPath == "" {
			return nil, &storage.ErrStorageInitFailed{
				Backend: "sqlite",
				Profile: string(cfg.Profile),
				Cause:   fmt.Errorf("lite profile requires storage.filesystem_path"),
			}
		}
		a, err := sqlite.New(ctx, cfg.Storage.FilesystemPath, logger)
		if err != nil {
			return nil, &storage.ErrStorageInitFailed{Backend: "sqlite", Profile: string(cfg.Profile), Cause: err}
		}
		return a, nil

	case cfg.IsStandardProfile():
		if db == nil {
			return nil, &storage.ErrStorageInitFailed{
				Backend: "postgres",
				Profile: string(cfg.Profile),
				Cause:   fmt.Errorf("standard profile requires a connected postgres pool"),
			}
		}
		if err := db.Health(ctx); err != nil {
			return nil, &storage.ErrStorageInitFailed{Backend: "postgres", Profile: string(cfg.Profile), Cause: err}
		}
		return pgarchive.New(db, logger), nil

	default:
		return nil, &storage.ErrInvalidProfile{
			Profile: string(cfg.Profile),
			Cause:   fmt.Errorf("unknown deployment profile: %s", cfg.Profile),
		}
	}
}

// NewStore wires a hot cache and the profile-appropriate archiver into
// a Session Store.
func NewStore(ctx context.Context, cfg *config.Config, c cache.Cache, db postgres.DatabaseConnection, logger *slog.Logger) (*Store, error) {
	archiver, err := NewArchiver(ctx, cfg, db, logger)
	if err != nil {
		return nil, err
	}
	return New(c, archiver, cfg.Cache.DefaultTTL, logger), nil
}
