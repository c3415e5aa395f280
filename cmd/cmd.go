// Package cmd defines the command-line interface for cipette.
package cmd

import (
	"github.com/huangsam/cipette/internal/contract"
	"github.com/huangsam/cipette/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	// Call initConfig on Cobra's initialization
	cobra.OnInitialize(initConfig)

	// Add primary subcommands to the root command
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(metricsCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(reposCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(healthModelCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(versionCmd)

	// Add the db subcommands to the parent db command
	dbCmd.AddCommand(dbStatusCmd)
	dbCmd.AddCommand(dbClearCacheCmd)
	dbCmd.AddCommand(dbMigrateCmd)

	// Bind all persistent flags of rootCmd to Viper
	rootCmd.PersistentFlags().String("backend", string(schema.SQLiteBackend), "Store backend: sqlite or mysql or postgresql")
	rootCmd.PersistentFlags().String("db-connect", "", "SQLite file path, or connection string for mysql/postgresql (e.g., user:pass@tcp(host:port)/dbname)")
	rootCmd.PersistentFlags().String("output", string(schema.TextOut), "Output format: text or csv or json or parquet")
	rootCmd.PersistentFlags().String("output-file", "", "Optional path to write output to")
	rootCmd.PersistentFlags().Int("precision", contract.DefaultPrecision, "Decimal precision for numeric columns")
	rootCmd.PersistentFlags().Int("width", 0, "Terminal width override (0 = auto-detect)")
	rootCmd.PersistentFlags().String("color", "yes", "Enable colored labels in output (yes/no/true/false/1/0)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug or info or warn or error")
	rootCmd.PersistentFlags().String("log-format", contract.LogFormatText, "Log format: text or json")
	rootCmd.PersistentFlags().StringP("repository", "r", "", "Only include this repository (owner/name)")
	rootCmd.PersistentFlags().IntP("days", "d", 0, "Only include runs from the last N days (0 = all time)")
	rootCmd.PersistentFlags().StringP("workflow", "w", "", "Only include runs of this workflow ID")
	rootCmd.PersistentFlags().String("status", "", "Only include runs with this status: queued or in_progress or completed")
	rootCmd.PersistentFlags().String("conclusion", "", "Only include runs with this conclusion: success or failure or cancelled or none")
	rootCmd.PersistentFlags().IntP("limit", "l", contract.DefaultRunLimit, "Maximum number of runs to list")
	rootCmd.PersistentFlags().String("cache-ttl", contract.DefaultCacheTTL.String(), "Lifetime of memoized metrics results")
	rootCmd.PersistentFlags().Int("cache-capacity", contract.DefaultCacheCapacity, "Maximum number of memoized metrics results")
	rootCmd.PersistentFlags().String("refresh-interval", contract.DefaultRefreshInterval.String(), "Time between background cache refresh passes")
	rootCmd.PersistentFlags().String("refresh-initial-delay", contract.DefaultRefreshInitialDelay.String(), "Delay before the first background refresh pass")
	rootCmd.PersistentFlags().Int("health-window-days", contract.DefaultHealthWindowDays, "Days of history behind cached health scores")
	rootCmd.PersistentFlags().String("config", "", "Path to config file")
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		contract.LogFatal("Error binding root flags", err)
	}

	// Bind all flags of metricsCmd to Viper
	metricsCmd.Flags().Bool("summary", false, "Roll workflow metrics up to one row per repository")
	if err := viper.BindPFlags(metricsCmd.Flags()); err != nil {
		contract.LogFatal("Error binding metrics flags", err)
	}

	// Bind all flags of dbMigrateCmd to Viper
	dbMigrateCmd.Flags().Int("target-version", -1, "Target migration version (-1 means latest, 0 means rollback to initial state)")
	if err := viper.BindPFlags(dbMigrateCmd.Flags()); err != nil {
		contract.LogFatal("Error binding db migrate flags", err)
	}
}
