package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/huangsam/cipette/core"
	"github.com/huangsam/cipette/internal/contract"
	"github.com/huangsam/cipette/internal/outwriter"
	"github.com/huangsam/cipette/schema"
	"github.com/mark3labs/mcp-go/mcp"
)

// toolHandler holds common dependencies for MCP tool handlers.
type toolHandler struct {
	baseCfg *contract.Config
	store   contract.RunStore
	metrics *core.MetricsService
}

// daysArg reads the optional days argument. Absent means all time.
func daysArg(request mcp.CallToolRequest) (schema.Option[int], error) {
	if _, ok := request.GetArguments()["days"]; !ok {
		return schema.Unspecified[int](), nil
	}
	days := schema.Some(request.GetInt("days", 0))
	if err := contract.ValidateDays(days); err != nil {
		return days, err
	}
	return days, nil
}

func optionalArg(request mcp.CallToolRequest, name string) schema.Option[string] {
	if v := request.GetString(name, ""); v != "" {
		return schema.Some(v)
	}
	return schema.Unspecified[string]()
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonData)), nil
}

func (h *toolHandler) handleGetMetrics(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	days, err := daysArg(request)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid metrics parameters: %v", err)), nil
	}
	q := schema.MetricsQuery{Repository: optionalArg(request, "repository"), Days: days}

	rows, err := h.metrics.GetMetrics(ctx, q)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("metrics query failed: %v", err)), nil
	}
	if rows == nil {
		rows = []schema.MetricRow{}
	}
	return jsonResult(rows)
}

func (h *toolHandler) handleListRepositories(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	repos, err := h.store.ListRepositories(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("listing repositories failed: %v", err)), nil
	}
	if repos == nil {
		repos = []string{}
	}
	return jsonResult(repos)
}

func (h *toolHandler) handleListRuns(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg := h.baseCfg.Clone()
	filter := cfg.RunFilter()
	filter.Repository = optionalArg(request, "repository")
	filter.WorkflowID = optionalArg(request, "workflow_id")

	var err error
	if filter.Status, err = contract.ParseStatusFilter(request.GetString("status", "")); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid run parameters: %v", err)), nil
	}
	if filter.Conclusion, err = contract.ParseConclusionFilter(request.GetString("conclusion", "")); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid run parameters: %v", err)), nil
	}
	if l := request.GetInt("limit", 0); l != 0 {
		if l < 0 || l > contract.MaxRunLimit {
			return mcp.NewToolResultError(fmt.Sprintf("invalid run parameters: limit must be between 1 and %d", contract.MaxRunLimit)), nil
		}
		filter.Limit = l
	}

	runs, err := h.store.ListRuns(ctx, filter)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("listing runs failed: %v", err)), nil
	}
	if runs == nil {
		runs = []schema.RunView{}
	}
	return jsonResult(runs)
}

// mttrResult is the JSON shape of the get_mttr tool.
type mttrResult struct {
	WorkflowID  string   `json:"workflow_id,omitempty"`
	Repository  string   `json:"repository,omitempty"`
	Days        *int     `json:"days,omitempty"`
	MTTRSeconds *float64 `json:"mttr_seconds"`
	MTTR        string   `json:"mttr"`
	Samples     int      `json:"samples"`
}

func (h *toolHandler) handleGetMTTR(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	days, err := daysArg(request)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid mttr parameters: %v", err)), nil
	}
	f := schema.MTTRFilter{
		WorkflowID: request.GetString("workflow_id", ""),
		Repository: request.GetString("repository", ""),
	}
	res := mttrResult{WorkflowID: f.WorkflowID, Repository: f.Repository}
	if d, ok := days.Get(); ok {
		since := time.Now().UTC().AddDate(0, 0, -d)
		f.Since = &since
		res.Days = &d
	}

	stat, err := h.store.MTTR(ctx, f)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("mttr query failed: %v", err)), nil
	}
	res.MTTRSeconds = schema.RoundPtr(stat.Seconds, contract.DefaultPrecision)
	res.MTTR = contract.FormatSeconds(stat.Seconds)
	res.Samples = stat.Samples
	return jsonResult(res)
}

func (h *toolHandler) handleStoreStatus(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status, err := h.store.Status(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("status query failed: %v", err)), nil
	}
	return jsonResult(status)
}

func (h *toolHandler) handleGetHealthModel(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(outwriter.NewHealthModel(h.baseCfg.Health))
}
