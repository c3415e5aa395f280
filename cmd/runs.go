package cmd

import (
	"github.com/huangsam/cipette/core"
	"github.com/spf13/cobra"
)

// runsCmd lists stored runs.
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List stored workflow runs, newest first.",
	Long: `List stored runs joined with their workflow and repository.

Filters combine with AND. Pass --conclusion none to select runs that
have not concluded yet.

Examples:
  # Latest 50 runs
  cipette runs

  # Recent failures of one workflow
  cipette runs --workflow 161335 --conclusion failure --limit 20

  # Runs still in flight
  cipette runs --conclusion none`,
	PreRunE: storeSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		runExecutor(rootCtx, core.ExecuteRuns, "Cannot list runs")
	},
}

// reposCmd lists known repositories.
var reposCmd = &cobra.Command{
	Use:     "repos",
	Short:   "List repositories known to the store.",
	PreRunE: storeSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		runExecutor(rootCtx, core.ExecuteRepositories, "Cannot list repositories")
	},
}
