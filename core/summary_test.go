package core

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/huangsam/cipette/internal/contract"
	"github.com/huangsam/cipette/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestSummarizeRollsUpRepositories(t *testing.T) {
	first := clockStart.Add(-48 * time.Hour)
	last := clockStart.Add(-time.Hour)

	build := sampleAggregate(2, 1)
	build.FirstRun = &last
	build.LastRun = &last
	deploy := sampleAggregate(1, 1)
	deploy.WorkflowID = "wf-2"
	deploy.TotalRuns = 4 // two cancelled
	deploy.AvgDurationSeconds = f64(90)
	deploy.FirstRun = &first
	deploy.LastRun = &first
	nightly := sampleAggregate(0, 0)
	nightly.Repository = "acme/web"
	nightly.WorkflowID = "wf-3"
	nightly.TotalRuns = 2
	nightly.AvgDurationSeconds = nil

	q := schema.MetricsQuery{Days: schema.Some(7)}
	cutoff := clockStart.Add(-7 * 24 * time.Hour)
	m := &contract.MockRunStore{}
	m.On("QueryMetrics", mock.Anything, q, clockStart).
		Return([]schema.MetricsAggregate{build, deploy, nightly}, nil)
	m.On("MTTR", mock.Anything, schema.MTTRFilter{Repository: "acme/api", Since: &cutoff}).
		Return(schema.MTTRStat{Seconds: f64(600), Samples: 2}, nil)
	m.On("MTTR", mock.Anything, schema.MTTRFilter{Repository: "acme/web", Since: &cutoff}).
		Return(schema.MTTRStat{}, nil)

	svc := NewMetricsService(m, MetricsOptions{Clock: newFakeClock(clockStart)})
	summaries, err := svc.Summarize(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	api := summaries[0]
	assert.Equal(t, "acme/api", api.Repository)
	assert.Equal(t, 2, api.Workflows)
	assert.Equal(t, 7, api.TotalRuns)
	assert.Equal(t, 3, api.SuccessCount)
	assert.Equal(t, 2, api.FailureCount)
	assert.Equal(t, 60.0, api.SuccessRate)
	require.NotNil(t, api.AvgDurationSeconds)
	assert.Equal(t, 154.29, *api.AvgDurationSeconds) // (240*3 + 90*4) / 7
	require.NotNil(t, api.MTTRSeconds)
	assert.Equal(t, 600.0, *api.MTTRSeconds)
	assert.Equal(t, first, *api.FirstRun)
	assert.Equal(t, last, *api.LastRun)
	assert.Empty(t, api.Warnings)

	web := summaries[1]
	assert.Equal(t, "acme/web", web.Repository)
	assert.Equal(t, 0.0, web.SuccessRate)
	assert.Equal(t, []string{noDecidedRuns}, web.Warnings)
	assert.Nil(t, web.AvgDurationSeconds)
	assert.Nil(t, web.MTTRSeconds)
	m.AssertExpectations(t)
}

func TestSummarizeAllTimeHasNoCutoff(t *testing.T) {
	m := &contract.MockRunStore{}
	m.On("QueryMetrics", mock.Anything, schema.MetricsQuery{}, mock.Anything).
		Return([]schema.MetricsAggregate{sampleAggregate(1, 1)}, nil)
	m.On("MTTR", mock.Anything, schema.MTTRFilter{Repository: "acme/api"}).
		Return(schema.MTTRStat{}, assert.AnError)

	_, err := NewMetricsService(m, MetricsOptions{}).Summarize(context.Background(), schema.MetricsQuery{})
	require.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "failed to summarize acme/api")
}

func TestSummarizeEmpty(t *testing.T) {
	m := &contract.MockRunStore{}
	m.On("QueryMetrics", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)

	summaries, err := NewMetricsService(m, MetricsOptions{}).Summarize(context.Background(), schema.MetricsQuery{})
	require.NoError(t, err)
	assert.Empty(t, summaries)
	m.AssertNotCalled(t, "MTTR", mock.Anything, mock.Anything)
}

func TestExecuteMetricsSummary(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := newCoreStore(t)
	require.NoError(t, ExecuteIngest([]string{writeSnapshot(t, dir)})(ctx, newCoreConfig(filepath.Join(dir, "ingest.json")), s))

	summaryFile := filepath.Join(dir, "summary.json")
	cfg := newCoreConfig(summaryFile)
	cfg.Summary = true
	require.NoError(t, ExecuteMetrics(ctx, cfg, s))

	var summaries []schema.RepositorySummary
	readJSON(t, summaryFile, &summaries)
	require.Len(t, summaries, 1)
	sum := summaries[0]
	assert.Equal(t, "acme/api", sum.Repository)
	assert.Equal(t, 1, sum.Workflows)
	assert.Equal(t, 2, sum.TotalRuns)
	assert.Equal(t, 50.0, sum.SuccessRate)
	require.NotNil(t, sum.AvgDurationSeconds)
	assert.Equal(t, 600.0, *sum.AvgDurationSeconds)
	require.NotNil(t, sum.MTTRSeconds)
	assert.Equal(t, 1800.0, *sum.MTTRSeconds)
}
