package cmd

import (
	"github.com/huangsam/cipette/core"
	"github.com/spf13/cobra"
)

// metricsCmd shows per-workflow reliability metrics.
var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Show success rate, MTTR and health score per workflow.",
	Long: `Aggregate stored runs into one row per (repository, workflow).

Each row reports:
- Total, successful and failed runs
- Success rate over runs that succeeded or failed
- Average duration of completed runs
- MTTR: mean time from a failed run to the next successful run
- Health score (0-100), health class and data quality

With --summary the rows are rolled up per repository instead: counts are
summed, average duration is weighted by runs and MTTR is recomputed over
every failure in the repository. Health scores are not rolled up.

Without --days the query covers all history and reads MTTR and health
from the caches kept fresh by 'cipette refresh' or 'cipette worker'.
With --days everything is computed over the window on the fly.

Examples:
  # All workflows, all time
  cipette metrics

  # One repository over the last week
  cipette metrics --repository acme/api --days 7

  # One row per repository with MTTR across all of its workflows
  cipette metrics --summary

  # Export to CSV for a spreadsheet
  cipette metrics --output csv --output-file metrics.csv`,
	PreRunE: storeSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		runExecutor(rootCtx, core.ExecuteMetrics, "Cannot compute metrics")
	},
}

// healthModelCmd displays the health score definition.
var healthModelCmd = &cobra.Command{
	Use:   "health-model",
	Short: "Display how workflow health scores are computed",
	Long: `Show the components, weights, scales and class thresholds behind health scores.

Reflects custom weights and thresholds from the health_score section of
.cipette.yaml. No store access is performed - this is purely informational.

Examples:
  # Show the default model
  cipette health-model

  # View with custom weights from config file
  cipette health-model --config .cipette.yaml`,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		runExecutor(rootCtx, core.ExecuteHealthModel, "Cannot display health model")
	},
}
