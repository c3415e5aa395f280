package cmd

import (
	"github.com/huangsam/cipette/core"
	"github.com/spf13/cobra"
)

// ingestCmd writes collector snapshots into the store.
var ingestCmd = &cobra.Command{
	Use:   "ingest FILE...",
	Short: "Load workflow and run snapshots into the store.",
	Long: `Ingest JSON snapshots shaped like the platform API into the store.

A file holds one snapshot or an array of them:
  {"repository": "owner/name", "workflows": [...], "workflow_runs": [...]}

Each repository is written in its own transaction. A repository that fails
is rolled back and reported while the others continue. Re-ingesting a run
overwrites it, so repeated imports converge. The MTTR and health caches
are refreshed once at the end. Use "-" to read from stdin.

Examples:
  # Ingest a snapshot file
  cipette ingest acme-api.json

  # Ingest from a collector pipe into PostgreSQL
  collector | CIPETTE_BACKEND=postgresql CIPETTE_DB_CONNECT="host=... dbname=..." cipette ingest -`,
	Args:    cobra.MinimumNArgs(1),
	PreRunE: storeSetupWrapper,
	Run: func(_ *cobra.Command, args []string) {
		runExecutor(rootCtx, core.ExecuteIngest(args), "Cannot ingest snapshots")
	},
}
