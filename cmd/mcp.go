package cmd

import (
	"log/slog"

	"github.com/huangsam/cipette/internal/mcp"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command.
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the cipette MCP server",
	Long: `Launch an MCP server on stdio that lets AI agents query workflow reliability via standard tools.

The server refreshes the MTTR and health caches in the background while it runs.
Logs go to stderr so stdio stays reserved for the protocol.`,
	PreRunE: storeSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		defer closeStore()
		return mcp.StartMCPServer(rootCtx, cfg, runStore, slog.Default())
	},
}
