package outwriter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/huangsam/cipette/internal/contract"
	"github.com/huangsam/cipette/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSummaries() []schema.RepositorySummary {
	last := time.Date(2024, 3, 1, 10, 11, 0, 0, time.UTC)
	return []schema.RepositorySummary{
		{
			Repository:         "acme/api",
			Workflows:          2,
			TotalRuns:          7,
			SuccessCount:       5,
			FailureCount:       2,
			SuccessRate:        71.43,
			AvgDurationSeconds: schema.Float64Ptr(240),
			MTTRSeconds:        schema.Float64Ptr(720),
			LastRun:            &last,
		},
		{
			Repository: "acme/web",
			Workflows:  1,
			TotalRuns:  2,
			Warnings:   []string{"No successful or failed runs - success rate reported as 0"},
		},
	}
}

func TestWriteSummaryTable(t *testing.T) {
	cfg := &contract.Config{Backend: schema.PostgreSQLBackend, Precision: 2, Width: 160, Days: schema.Some(30)}
	fmtFloat, intFmt := createFormatters(cfg.Precision)

	var buf bytes.Buffer
	require.NoError(t, writeSummaryTable(&buf, sampleSummaries(), cfg, fmtFloat, intFmt, 2*time.Millisecond))

	output := buf.String()
	assert.Contains(t, output, "acme/api")
	assert.Contains(t, output, "71.43")
	assert.Contains(t, output, "12m0s")
	assert.Contains(t, output, "2024-03-01")
	assert.Contains(t, output, "Showing 2 repositories (window: last 30 days)")
	assert.Contains(t, output, "Backend: postgresql")
}

func TestWriteCSVSummaries(t *testing.T) {
	fmtFloat, intFmt := createFormatters(1)

	var buf bytes.Buffer
	require.NoError(t, writeCSVSummaries(&buf, sampleSummaries(), fmtFloat, intFmt))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "workflows", records[0][1])
	assert.Equal(t, []string{"acme/api", "2", "7", "5", "2", "71.4", "240.0", "720.0"}, records[1][:8])
	assert.Equal(t, "", records[2][7], "missing MTTR stays empty")
	assert.Equal(t, "No successful or failed runs - success rate reported as 0", records[2][10])
}

func TestWriteRepositorySummariesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.json")
	cfg := &contract.Config{Output: schema.JSONOut, OutputFile: path, Precision: 2}
	require.NoError(t, WriteRepositorySummaries(nil, cfg, 0))

	var decoded []schema.RepositorySummary
	readJSONFile(t, path, &decoded)
	assert.Empty(t, decoded)

	require.NoError(t, WriteRepositorySummaries(sampleSummaries(), cfg, 0))
	var raw []map[string]any
	readJSONFile(t, path, &raw)
	require.Len(t, raw, 2)
	assert.Equal(t, 720.0, raw[0]["mttr_seconds"])
	assert.Contains(t, raw[1], "mttr_seconds")
	assert.Nil(t, raw[1]["mttr_seconds"])
}

func TestWriteRepositorySummariesParquetNeedsFile(t *testing.T) {
	cfg := &contract.Config{Output: schema.ParquetOut}
	assert.ErrorIs(t, WriteRepositorySummaries(sampleSummaries(), cfg, 0), ErrParquetNeedsFile)
}

func readJSONFile(t *testing.T, path string, v any) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, v))
}
