package cmd

import (
	"os/signal"
	"syscall"

	"github.com/huangsam/cipette/core"
	"github.com/spf13/cobra"
)

// refreshCmd runs one cache refresh pass.
var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Recompute the MTTR and health score caches once.",
	Long: `Recompute the all-time MTTR and the windowed health score of every workflow.

All-time 'cipette metrics' queries read these caches. Failures for single
workflows are logged and counted without aborting the pass.

Examples:
  # Refresh after a bulk import
  cipette refresh

  # Score health over the last 14 days
  cipette refresh --health-window-days 14`,
	PreRunE: storeSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		runExecutor(rootCtx, core.ExecuteRefresh, "Cannot refresh caches")
	},
}

// workerCmd keeps the caches fresh until interrupted.
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Refresh the caches on a schedule until interrupted.",
	Long: `Run the cache refresh in the foreground: one pass after --refresh-initial-delay,
then one every --refresh-interval. Stops cleanly on SIGINT or SIGTERM once
the in-flight pass has finished.

Examples:
  # Refresh every 5 minutes (default)
  cipette worker

  # Refresh every minute with JSON logs
  cipette worker --refresh-interval 1m --log-format json`,
	PreRunE: storeSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		ctx, stop := signal.NotifyContext(rootCtx, syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		runExecutor(ctx, core.ExecuteWorker, "Cannot run worker")
	},
}
