package cmd

import (
	"github.com/huangsam/cipette/core"
	"github.com/spf13/cobra"
)

// exportCmd writes metrics and runs to Parquet files.
var exportCmd = &cobra.Command{
	Use:   "export [dir]",
	Short: "Export metrics and runs to Parquet for BI tools and analytics",
	Long: `Export per-workflow metrics and stored runs to Parquet files.

Creates two files in the target directory (default: current directory):
- metrics.parquet: one row per workflow with health breakdown
- runs.parquet: the runs matching the run filters, up to --limit

The --repository and --days filters apply to metrics. The run filters
(--workflow, --status, --conclusion, --limit) apply to runs.

Examples:
  # Export everything to ./export
  cipette export export

  # Load into DuckDB
  cipette export out && duckdb -c "SELECT * FROM 'out/metrics.parquet'"`,
	Args:    cobra.MaximumNArgs(1),
	PreRunE: storeSetupWrapper,
	Run: func(_ *cobra.Command, args []string) {
		dir := "."
		if len(args) == 1 {
			dir = args[0]
		}
		runExecutor(rootCtx, core.ExecuteExport(dir), "Cannot export data")
	},
}
