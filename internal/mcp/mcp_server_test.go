package mcp_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/huangsam/cipette/core"
	"github.com/huangsam/cipette/internal/contract"
	mcp_internal "github.com/huangsam/cipette/internal/mcp"
	"github.com/huangsam/cipette/schema"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestServer(store *contract.MockRunStore) *server.MCPServer {
	baseCfg := &contract.Config{
		Backend:  schema.SQLiteBackend,
		RunLimit: contract.DefaultRunLimit,
		Health:   contract.DefaultHealthConfig(),
	}
	metrics := core.NewMetricsService(store, core.MetricsOptions{})
	return mcp_internal.NewMCPServer(baseCfg, store, metrics)
}

func callTool(t *testing.T, s *server.MCPServer, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	tool := s.GetTool(name)
	require.NotNil(t, tool, "Tool %s should exist", name)

	req := mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
	res, err := tool.Handler(context.Background(), req)
	require.NoError(t, err, "The MCP handler should not return a raw error for tool logic failures")
	require.NotEmpty(t, res.Content)
	return res
}

func resultText(res *mcp.CallToolResult) string {
	return res.Content[0].(mcp.TextContent).Text
}

func TestMCPServerHandlers_ValidationErrors(t *testing.T) {
	s := newTestServer(&contract.MockRunStore{})

	t.Run("get_metrics non-positive days", func(t *testing.T) {
		res := callTool(t, s, "get_metrics", map[string]any{"days": 0.0})
		assert.True(t, res.IsError, "The response should indicate an error state")
		assert.Contains(t, resultText(res), "days must be greater than 0")
	})

	t.Run("list_runs invalid status", func(t *testing.T) {
		res := callTool(t, s, "list_runs", map[string]any{"status": "waiting"})
		assert.True(t, res.IsError)
		assert.Contains(t, resultText(res), "invalid status")
	})

	t.Run("list_runs invalid limit", func(t *testing.T) {
		res := callTool(t, s, "list_runs", map[string]any{"limit": 5000.0})
		assert.True(t, res.IsError)
		assert.Contains(t, resultText(res), "limit must be between 1 and 1000")
	})

	t.Run("get_mttr negative days", func(t *testing.T) {
		res := callTool(t, s, "get_mttr", map[string]any{"days": -3.0})
		assert.True(t, res.IsError)
		assert.Contains(t, resultText(res), "days must be greater than 0")
	})
}

func TestMCPServerHandlers_GetMetrics(t *testing.T) {
	m := &contract.MockRunStore{}
	avg := 120.0
	q := schema.MetricsQuery{Repository: schema.Some("acme/api"), Days: schema.Some(7)}
	m.On("QueryMetrics", mock.Anything, q, mock.Anything).Return([]schema.MetricsAggregate{{
		Repository:         "acme/api",
		WorkflowID:         "wf-1",
		WorkflowName:       "CI",
		TotalRuns:          10,
		SuccessCount:       9,
		FailureCount:       1,
		AvgDurationSeconds: &avg,
	}}, nil).Once()
	s := newTestServer(m)

	args := map[string]any{"repository": "acme/api", "days": 7.0}
	res := callTool(t, s, "get_metrics", args)
	require.False(t, res.IsError, resultText(res))

	var rows []schema.MetricRow
	require.NoError(t, json.Unmarshal([]byte(resultText(res)), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "wf-1", rows[0].WorkflowID)
	assert.Equal(t, 90.0, rows[0].SuccessRate)

	// Second call is served from the memo cache.
	res = callTool(t, s, "get_metrics", args)
	require.False(t, res.IsError)
	m.AssertNumberOfCalls(t, "QueryMetrics", 1)
}

func TestMCPServerHandlers_StoreErrors(t *testing.T) {
	m := &contract.MockRunStore{}
	m.On("ListRepositories", mock.Anything).Return(nil, errors.New("database is locked"))
	m.On("Status", mock.Anything).Return(schema.StoreStatus{}, errors.New("connection refused"))
	s := newTestServer(m)

	res := callTool(t, s, "list_repositories", nil)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(res), "database is locked")

	res = callTool(t, s, "store_status", nil)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(res), "connection refused")
}

func TestMCPServerHandlers_ListRuns(t *testing.T) {
	m := &contract.MockRunStore{}
	want := schema.RunFilter{
		Repository: schema.Some("acme/api"),
		WorkflowID: schema.Unspecified[string](),
		Status:     schema.Some(schema.StatusCompleted),
		Conclusion: schema.None[schema.Conclusion](),
		Limit:      5,
	}
	m.On("ListRuns", mock.Anything, want).Return([]schema.RunView{{
		RunRecord:    schema.RunRecord{ID: "r1", WorkflowID: "wf-1", Status: schema.StatusCompleted},
		Repository:   "acme/api",
		WorkflowName: "CI",
	}}, nil)
	s := newTestServer(m)

	res := callTool(t, s, "list_runs", map[string]any{
		"repository": "acme/api",
		"status":     "completed",
		"conclusion": "none",
		"limit":      5.0,
	})
	require.False(t, res.IsError, resultText(res))
	assert.Contains(t, resultText(res), `"id": "r1"`)
	m.AssertExpectations(t)
}

func TestMCPServerHandlers_GetMTTR(t *testing.T) {
	m := &contract.MockRunStore{}
	seconds := 1800.0
	m.On("MTTR", mock.Anything, mock.MatchedBy(func(f schema.MTTRFilter) bool {
		return f.WorkflowID == "wf-1" && f.Since != nil && time.Since(*f.Since) > 29*24*time.Hour
	})).Return(schema.MTTRStat{Seconds: &seconds, Samples: 3}, nil)
	s := newTestServer(m)

	res := callTool(t, s, "get_mttr", map[string]any{"workflow_id": "wf-1", "days": 30.0})
	require.False(t, res.IsError, resultText(res))

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(resultText(res)), &got))
	assert.Equal(t, 1800.0, got["mttr_seconds"])
	assert.Equal(t, "30m0s", got["mttr"])
	assert.Equal(t, 3.0, got["samples"])
	assert.Equal(t, 30.0, got["days"])
}

func TestMCPServerHandlers_HealthModel(t *testing.T) {
	s := newTestServer(&contract.MockRunStore{})
	res := callTool(t, s, "get_health_model", nil)
	require.False(t, res.IsError)
	assert.Contains(t, resultText(res), `"formula": "0.35*success_rate+0.25*mttr+0.20*duration+0.20*throughput"`)
}
