package outwriter

import (
	"bytes"
	"testing"
	"time"

	"github.com/huangsam/cipette/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteStatusText(t *testing.T) {
	lastRun := time.Date(2024, 3, 1, 10, 15, 0, 0, time.UTC)
	status := schema.StoreStatus{
		Backend:       "sqlite",
		Connected:     true,
		SchemaVersion: 2,
		TableCounts:   map[string]int64{"runs": 3, "workflows": 1, "mttr_cache": 1},
		LastRunTime:   &lastRun,
	}

	var buf bytes.Buffer
	require.NoError(t, writeStatusText(&buf, status))

	expected := `Store Backend: sqlite
Connected: true
Schema Version: 2
Last Run Ingested: 2024-03-01 10:15:00
Last Cache Refresh: never
Table Sizes:
  mttr_cache: 1 rows
  runs: 3 rows
  workflows: 1 rows
`
	assert.Equal(t, expected, buf.String())
}

func TestWriteStatusTextDisconnected(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeStatusText(&buf, schema.StoreStatus{Backend: "mysql", Dirty: true}))
	assert.Equal(t, "Store Backend: mysql\nConnected: false\n", buf.String())
}

func TestWriteRefreshText(t *testing.T) {
	var buf bytes.Buffer
	report := schema.RefreshReport{Workflows: 4, MTTRUpdated: 2, MTTRDeleted: 1, HealthUpdated: 3, Failures: 1, Duration: 1234 * time.Millisecond}
	require.NoError(t, writeRefreshText(&buf, report))
	assert.Equal(t, "Refreshed 4 workflows in 1.234s: mttr 2 updated, 1 cleared; health 3 updated; 1 failures\n", buf.String())
}

func TestWriteCollectText(t *testing.T) {
	report := schema.CollectReport{
		Repositories:       1,
		Workflows:          2,
		Runs:               schema.IngestResult{Upserted: 10, Skipped: 1},
		FailedRepositories: []string{"acme/web", ""},
		Refresh:            &schema.RefreshReport{Workflows: 2, MTTRUpdated: 2, HealthUpdated: 2},
		Duration:           2 * time.Second,
	}

	var buf bytes.Buffer
	require.NoError(t, writeCollectText(&buf, report))

	output := buf.String()
	assert.Contains(t, output, "Ingested 1 repositories, 2 workflows, 10 runs (1 skipped) in 2s\n")
	assert.Contains(t, output, "  failed: acme/web\n")
	assert.Contains(t, output, "  failed: (unnamed)\n")
	assert.Contains(t, output, "Refreshed 2 workflows")
}
