package cmd

import (
	"context"
	"fmt"

	"github.com/huangsam/cipette/core"
	"github.com/huangsam/cipette/internal/contract"
	"github.com/huangsam/cipette/internal/store"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// dbCmd focused on run store management.
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the run store (status, caches, migrations)",
	Long: `Inspect and maintain the relational store that holds runs and derived caches.

Supported backends: SQLite (default), MySQL, PostgreSQL

Subcommands:
  status      - Show backend, schema version, table sizes and freshness
  clear-cache - Remove all MTTR and health score cache rows
  migrate     - Run database schema migrations

Examples:
  # Check store status
  cipette db status

  # Roll the schema back to version 1
  cipette db migrate --target-version 1`,
}

// dbStatusCmd shows store status.
var dbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display store statistics and connection details",
	Long: `Show detailed information about the run store.

Displays:
- Backend type and connection status
- Schema version and whether a migration was left dirty
- Time of the last ingested run and of the last cache refresh
- Row count of every table

Examples:
  # Check store status
  cipette db status

  # Check a MySQL store (set connection string via env variable)
  CIPETTE_BACKEND=mysql CIPETTE_DB_CONNECT="..." cipette db status`,
	PreRunE: storeSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		runExecutor(rootCtx, core.ExecuteStatus, "Failed to get store status")
	},
}

// dbClearCacheCmd clears the derived caches.
var dbClearCacheCmd = &cobra.Command{
	Use:   "clear-cache",
	Short: "Remove all cached MTTR and health score rows",
	Long: `Delete every row of the MTTR and health score caches.

Runs and workflows are untouched, so this is always safe. All-time metrics
show "Health score not yet calculated" until the next refresh pass.

Examples:
  # Clear and rebuild the caches
  cipette db clear-cache && cipette refresh`,
	PreRunE: storeSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		runExecutor(rootCtx, func(ctx context.Context, _ *contract.Config, s contract.RunStore) error {
			if err := s.ClearCaches(ctx); err != nil {
				return err
			}
			fmt.Println("Caches cleared successfully.")
			return nil
		}, "Failed to clear caches")
	},
}

// dbMigrateCmd runs schema migrations.
var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database schema migrations",
	Long: `Move the store schema to a specific version.

Every other command migrates to the latest version on startup. Use this
command to roll back, or to prepare a database ahead of a deploy.

Examples:
  # Migrate to the latest version
  cipette db migrate

  # Roll back to the initial empty state
  cipette db migrate --target-version 0`,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := migrateStore(rootCtx, viper.GetInt("target-version")); err != nil {
			contract.LogFatal("Failed to migrate store", err)
		}
	},
}

// migrateStore connects without the implicit migration of store.Open.
func migrateStore(ctx context.Context, targetVersion int) error {
	if targetVersion > store.LatestVersion {
		return fmt.Errorf("target version %d is newer than the latest version %d", targetVersion, store.LatestVersion)
	}
	db, err := store.Connect(ctx, storeConfig())
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	result, err := store.Migrate(ctx, db, cfg.Backend, targetVersion)
	if err != nil {
		return err
	}
	if !result.Changed {
		fmt.Printf("Schema already at version %d.\n", result.To)
		return nil
	}
	fmt.Printf("Migrated %s schema from version %d to %d.\n", cfg.Backend, result.From, result.To)
	return nil
}
