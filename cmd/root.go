package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/huangsam/cipette/core"
	"github.com/huangsam/cipette/internal/contract"
	"github.com/huangsam/cipette/internal/store"
	"github.com/huangsam/cipette/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// All linker flags will be set by goreleaser infra at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCtx is the root context for all operations.
var rootCtx = context.Background()

// cfg will hold the validated, final configuration.
var cfg = &contract.Config{}

// input holds the raw, unvalidated configuration from all sources (file, env, flags).
// Viper will unmarshal into this struct.
var input = &contract.ConfigRawInput{}

// runStore is the store opened by storeSetup. It is nil for commands that do not need one.
var runStore *store.Store

// rootCmd is the command-line entrypoint for all other commands.
var rootCmd = &cobra.Command{
	Use:                "cipette",
	Short:              "Track CI/CD workflow reliability from run history.",
	Long:               `Cipette stores CI/CD workflow runs and turns them into success rates, MTTR and health scores per workflow.`,
	Version:            version,
	SilenceErrors:      true,
	SilenceUsage:       true,
	DisableSuggestions: true,
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	// Check if a specific config file is provided
	if configFile := viper.GetString("config"); configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		// Set config file name and paths
		viper.SetConfigName(".cipette") // Name of config file (without extension)
		viper.SetConfigType("yaml")     // We'll use YAML format
		viper.AddConfigPath(".")        // Look in the current directory
		viper.AddConfigPath("$HOME")    // Look in the home directory
	}

	// Set environment variable prefix
	viper.SetEnvPrefix("CIPETTE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // Read in environment variables that match

	// Set defaults in Viper
	viper.SetDefault("backend", schema.SQLiteBackend)
	viper.SetDefault("db-connect", "")
	viper.SetDefault("output", schema.TextOut)
	viper.SetDefault("precision", contract.DefaultPrecision)
	viper.SetDefault("color", "yes")
	viper.SetDefault("limit", contract.DefaultRunLimit)
	viper.SetDefault("log-level", "info")
	viper.SetDefault("log-format", contract.LogFormatText)
	viper.SetDefault("cache-ttl", contract.DefaultCacheTTL.String())
	viper.SetDefault("cache-capacity", contract.DefaultCacheCapacity)
	viper.SetDefault("refresh-interval", contract.DefaultRefreshInterval.String())
	viper.SetDefault("refresh-initial-delay", contract.DefaultRefreshInitialDelay.String())
	viper.SetDefault("health-window-days", contract.DefaultHealthWindowDays)
}

// sharedSetup unmarshals config and runs validation.
func sharedSetup(_ context.Context, _ *cobra.Command, _ []string) error {
	// 1. Read config file. This merges defaults, file, env, and flags.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			// Config file was found but another error was produced
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found, which is fine; we'll use defaults/env/flags.
	}

	// 2. Unmarshal all resolved values from Viper into our raw input struct.
	if err := viper.Unmarshal(input); err != nil {
		return fmt.Errorf("unable to unmarshal config: %w", err)
	}

	// 3. Run all validation and complex parsing.
	if err := contract.ProcessAndValidate(cfg, input); err != nil {
		return err
	}

	// 4. Route structured logs to stderr so stdout stays clean for results.
	level, err := contract.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	slog.SetDefault(contract.NewLogger(os.Stderr, level, cfg.LogFormat))
	return nil
}

// sharedSetupWrapper wraps sharedSetup to provide context for Cobra's PreRunE.
func sharedSetupWrapper(cmd *cobra.Command, args []string) error {
	return sharedSetup(rootCtx, cmd, args)
}

// storeConfig maps the validated config to store settings.
func storeConfig() store.Config {
	return store.Config{
		Backend:       cfg.Backend,
		ConnStr:       cfg.DBConnect,
		SQLitePragmas: cfg.SQLitePragmas,
	}
}

// storeSetup runs sharedSetup and then opens and migrates the run store.
func storeSetup(ctx context.Context, cmd *cobra.Command, args []string) error {
	if err := sharedSetup(ctx, cmd, args); err != nil {
		return err
	}
	s, err := store.Open(ctx, storeConfig(),
		store.WithLogger(slog.Default()),
		store.WithRetryPolicy(store.NewRetryPolicy(cfg.Retry)))
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	runStore = s
	return nil
}

// storeSetupWrapper wraps storeSetup to provide context for Cobra's PreRunE.
func storeSetupWrapper(cmd *cobra.Command, args []string) error {
	return storeSetup(rootCtx, cmd, args)
}

// runExecutor adapts an executor to a cobra Run function. The store is
// closed before a failure exits the process.
func runExecutor(ctx context.Context, exec core.ExecutorFunc, failure string) {
	var s contract.RunStore
	if runStore != nil {
		s = runStore
	}
	err := exec(ctx, cfg, s)
	closeStore()
	if err != nil {
		contract.LogFatal(failure, err)
	}
}

// closeStore closes the run store if one was opened.
func closeStore() {
	if runStore == nil {
		return
	}
	if err := runStore.Close(); err != nil && !errors.Is(err, contract.ErrStoreClosed) {
		contract.LogWarn("Failed to close store", err)
	}
	runStore = nil
}

// Execute runs the root command.
func Execute() error {
	defer closeStore()
	return rootCmd.Execute()
}
