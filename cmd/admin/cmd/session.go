package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/weldcfg/configurator/internal/composer"
	appconfig "github.com/weldcfg/configurator/internal/config"
	"github.com/weldcfg/configurator/internal/core"
	pgconfig "github.com/weldcfg/configurator/internal/database/postgres"
	"github.com/weldcfg/configurator/internal/session"
)

var sessionConfigPath string

// sessionCmd groups read-only operator commands against the terminal
// archive (internal/storage): a finalized session's Cart and
// MasterRecord outlive the hot cache (spec §4.6), so this is the only
// place support tooling can still reach them.
var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect archived sessions",
}

var sessionDumpCmd = &cobra.Command{
	Use:   "dump <session-id>",
	Short: "Print an archived session's final cart and parameter bags as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionDump,
}

var sessionReplayCmd = &cobra.Command{
	Use:   "replay <session-id>",
	Short: "Re-render the finalization summary for an archived session",
	Long: `Loads an archived session's final cart and feeds it back through
the same message composer the running service uses, reproducing the
exact finalization text the customer saw without mutating any state.`,
	Args: cobra.ExactArgs(1),
	RunE: runSessionReplay,
}

func init() {
	sessionCmd.PersistentFlags().StringVar(&sessionConfigPath, "config", "", "path to the service configuration file (same one the server uses)")
	sessionCmd.AddCommand(sessionDumpCmd)
	sessionCmd.AddCommand(sessionReplayCmd)
}

// loadArchivedSession connects to whichever backend cfg.Profile names —
// the same construction cmd/server/main.go's buildOrchestrator does for
// the live service, minus everything that isn't the archive — and
// fetches one session by ID. The returned cleanup closes any pool it
// opened and must run even on error.
func loadArchivedSession(ctx context.Context, sessionID string) (core.SessionState, *appconfig.Config, func(), error) {
	cleanup := func() {}

	cfg, err := appconfig.LoadConfig(sessionConfigPath)
	if err != nil {
		return core.SessionState{}, nil, cleanup, fmt.Errorf("load config: %w", err)
	}

	var db pgconfig.DatabaseConnection
	if cfg.IsStandardProfile() {
		pool := pgconfig.NewPostgresPool(&pgconfig.PostgresConfig{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			Database: cfg.Database.Database,
			User:     cfg.Database.Username,
			Password: cfg.Database.Password,
			SSLMode:  cfg.Database.SSLMode,
			MaxConns: int32(cfg.Database.MaxConnections),
			MinConns: int32(cfg.Database.MinConnections),
		}, nil)
		if err := pool.Connect(ctx); err != nil {
			return core.SessionState{}, nil, cleanup, fmt.Errorf("connect postgres: %w", err)
		}
		cleanup = func() { _ = pool.Disconnect(context.Background()) }
		db = pool
	}

	archiver, err := session.NewArchiver(ctx, cfg, db, nil)
	if err != nil {
		return core.SessionState{}, nil, cleanup, fmt.Errorf("build archiver: %w", err)
	}
	defer archiver.Close()

	state, err := archiver.Get(ctx, sessionID)
	if err != nil {
		return core.SessionState{}, nil, cleanup, fmt.Errorf("fetch session %s: %w", sessionID, err)
	}
	return state, cfg, cleanup, nil
}

func runSessionDump(cmd *cobra.Command, args []string) error {
	state, _, cleanup, err := loadArchivedSession(cmd.Context(), args[0])
	defer cleanup()
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(state)
}

func runSessionReplay(cmd *cobra.Command, args []string) error {
	state, cfg, cleanup, err := loadArchivedSession(cmd.Context(), args[0])
	defer cleanup()
	if err != nil {
		return err
	}

	c, err := composer.New(cfg.Composer.LocalesDir, cfg.Composer.DefaultLanguage, nil)
	if err != nil {
		return fmt.Errorf("build composer: %w", err)
	}

	lang := state.LanguageTag
	if lang == "" {
		lang = cfg.Composer.DefaultLanguage
	}
	view := c.FinalizationSummary(state.Cart, lang)
	cmd.Println(view.Text)
	return nil
}
