// Package mcp provides the Model Context Protocol (MCP) server implementation.
package mcp

import (
	"context"
	"log/slog"

	"github.com/huangsam/cipette/core"
	"github.com/huangsam/cipette/internal/contract"
	"github.com/huangsam/cipette/schema"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer initializes and configures the cipette MCP server without starting it.
// This is exposed for unit testing.
func NewMCPServer(baseCfg *contract.Config, store contract.RunStore, metrics *core.MetricsService) *server.MCPServer {
	s := server.NewMCPServer(
		"Cipette Reliability Server",
		"1.0.0",
		server.WithLogging(),
	)

	h := &toolHandler{
		baseCfg: baseCfg,
		store:   store,
		metrics: metrics,
	}

	// --- 1. Tool: get_metrics ---
	s.AddTool(mcp.NewTool("get_metrics",
		mcp.WithDescription("Per-workflow reliability metrics: run counts, success rate, average duration, MTTR and health score."),
		mcp.WithString("repository", mcp.Description("Only include workflows of this repository (owner/name).")),
		mcp.WithNumber("days", mcp.Description("Only include runs started in the last N days. Omit for all time.")),
	), h.handleGetMetrics)

	// --- 2. Tool: list_repositories ---
	s.AddTool(mcp.NewTool("list_repositories",
		mcp.WithDescription("List every repository known to the run store."),
	), h.handleListRepositories)

	// --- 3. Tool: list_runs ---
	s.AddTool(mcp.NewTool("list_runs",
		mcp.WithDescription("List stored workflow runs, newest first."),
		mcp.WithString("repository", mcp.Description("Only include runs of this repository.")),
		mcp.WithString("workflow_id", mcp.Description("Only include runs of this workflow.")),
		mcp.WithString("status", mcp.Description("Only include runs with this status."), mcp.Enum("queued", "in_progress", "completed")),
		mcp.WithString("conclusion", mcp.Description("Only include runs with this conclusion. 'none' selects runs without one."), mcp.Enum("success", "failure", "cancelled", "none")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of runs returned.")),
	), h.handleListRuns)

	// --- 4. Tool: get_mttr ---
	s.AddTool(mcp.NewTool("get_mttr",
		mcp.WithDescription("Mean time to recovery: average seconds from a failed run to the next successful run of the same workflow."),
		mcp.WithString("workflow_id", mcp.Description("Only consider failures of this workflow.")),
		mcp.WithString("repository", mcp.Description("Only consider failures of this repository.")),
		mcp.WithNumber("days", mcp.Description("Only consider failures completed in the last N days.")),
	), h.handleGetMTTR)

	// --- 5. Tool: store_status ---
	s.AddTool(mcp.NewTool("store_status",
		mcp.WithDescription("Backend, schema version, table sizes and freshness of the run store."),
	), h.handleStoreStatus)

	// --- 6. Tool: get_health_model ---
	s.AddTool(mcp.NewTool("get_health_model",
		mcp.WithDescription("Describe how workflow health scores are computed with the active weights and thresholds."),
	), h.handleGetHealthModel)

	return s
}

// StartMCPServer starts the cipette MCP server on stdio. The cache refresh
// runs in the background for as long as the server does.
func StartMCPServer(ctx context.Context, baseCfg *contract.Config, store contract.RunStore, logger *slog.Logger) error {
	metrics := core.NewMetricsService(store, core.MetricsOptions{
		CacheTTL:      baseCfg.CacheTTL,
		CacheCapacity: baseCfg.CacheCapacity,
		Health:        &baseCfg.Health,
		Logger:        logger,
	})
	refresh := core.NewRefreshTask(store, core.RefreshOptions{
		Interval:     baseCfg.RefreshInterval,
		InitialDelay: baseCfg.RefreshInitialDelay,
		WindowDays:   baseCfg.HealthWindowDays,
		Health:       &baseCfg.Health,
		Logger:       logger,
		OnRefresh:    func(schema.RefreshReport) { metrics.Invalidate() },
	})
	if err := refresh.Start(ctx); err != nil {
		return err
	}
	defer refresh.Stop()

	s := NewMCPServer(baseCfg, store, metrics)
	return server.ServeStdio(s)
}
