//go:build basic || database

package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"

	"github.com/huangsam/cipette/schema"
	"github.com/stretchr/testify/require"
)

var (
	// sharedCipettePath holds the path to a shared cipette binary built once for all tests.
	sharedCipettePath string

	// buildOnce ensures we only build the binary once.
	buildOnce sync.Once

	// buildMutex protects the shared binary path.
	buildMutex sync.Mutex

	// tempDir holds the temp directory for cleanup.
	tempDir string
)

// snapshotFixture is one repository with a failure, its recovery and a run still in flight.
const snapshotFixture = `{
  "repository": "acme/api",
  "workflows": [
    {"id": 161335, "name": "CI", "path": ".github/workflows/ci.yml", "state": "active"},
    {"id": 161336, "name": "Release", "path": ".github/workflows/release.yml", "state": "active"}
  ],
  "workflow_runs": [
    {
      "id": 1001, "workflow_id": 161335, "run_number": 1,
      "head_sha": "a1", "head_branch": "main", "event": "push", "actor": {"login": "octocat"},
      "status": "completed", "conclusion": "failure",
      "created_at": "2024-03-01T10:00:00Z", "updated_at": "2024-03-01T10:05:00Z"
    },
    {
      "id": 1002, "workflow_id": 161335, "run_number": 2,
      "head_sha": "a2", "head_branch": "main", "event": "push", "actor": {"login": "octocat"},
      "status": "completed", "conclusion": "success",
      "created_at": "2024-03-01T10:30:00Z", "updated_at": "2024-03-01T10:35:00Z"
    },
    {
      "id": 1003, "workflow_id": 161335, "run_number": 3,
      "head_sha": "a3", "head_branch": "main", "event": "push", "actor": {"login": "octocat"},
      "status": "in_progress", "conclusion": null,
      "created_at": "2024-03-01T11:00:00Z", "updated_at": "2024-03-01T11:01:00Z"
    },
    {
      "id": 2001, "workflow_id": 161336, "run_number": 1,
      "head_sha": "b1", "head_branch": "main", "event": "release", "actor": {"login": "hubot"},
      "status": "completed", "conclusion": "success",
      "created_at": "2024-03-02T09:00:00Z", "updated_at": "2024-03-02T09:10:00Z"
    }
  ]
}`

// TestMain handles setup and cleanup for all integration tests.
func TestMain(m *testing.M) {
	// Run all tests
	code := m.Run()

	// Cleanup the shared binary after all tests
	if tempDir != "" {
		_ = os.RemoveAll(tempDir)
	}

	os.Exit(code)
}

// getCipetteBinary returns the path to the cipette binary, building it once if needed.
func getCipetteBinary() string {
	buildMutex.Lock()
	defer buildMutex.Unlock()

	buildOnce.Do(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "cipette-integration-*")
		if err != nil {
			panic(fmt.Sprintf("failed to create temp dir: %v", err))
		}

		cipettePath := filepath.Join(tempDir, "cipette")
		buildCmd := exec.Command("go", "build", "-o", cipettePath, ".")
		buildCmd.Dir = ".." // Build from parent directory (project root)
		if err := buildCmd.Run(); err != nil {
			panic(fmt.Sprintf("failed to build cipette: %v", err))
		}

		sharedCipettePath = cipettePath
	})

	return sharedCipettePath
}

// writeSnapshot stores the fixture in a temp file and returns its path.
func writeSnapshot(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "snapshot.json")
	if err := os.WriteFile(path, []byte(snapshotFixture), 0o644); err != nil {
		t.Fatalf("failed to write snapshot: %v", err)
	}
	return path
}

// runCipetteCommand runs the CLI and returns its stdout. Stderr is only logged on failure.
func runCipetteCommand(t *testing.T, env []string, args ...string) ([]byte, error) {
	t.Helper()
	cmd := exec.Command(getCipetteBinary(), args...)
	cmd.Dir = t.TempDir()
	cmd.Env = append(os.Environ(), env...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		t.Logf("Command failed: %s\nStdout: %s\nStderr: %s", cmd.String(), stdout.String(), stderr.String())
		return nil, err
	}
	return stdout.Bytes(), nil
}

// metricsJSON runs the metrics command and decodes its JSON rows.
func metricsJSON(t *testing.T, env []string, args ...string) []schema.MetricRow {
	t.Helper()
	out, err := runCipetteCommand(t, env, append([]string{"metrics", "--output", "json"}, args...)...)
	require.NoError(t, err)
	var rows []schema.MetricRow
	require.NoError(t, json.Unmarshal(out, &rows))
	return rows
}

// runsJSON runs the runs command and decodes its JSON rows.
func runsJSON(t *testing.T, env []string, args ...string) []schema.RunView {
	t.Helper()
	out, err := runCipetteCommand(t, env, append([]string{"runs", "--output", "json"}, args...)...)
	require.NoError(t, err)
	var runs []schema.RunView
	require.NoError(t, json.Unmarshal(out, &runs))
	return runs
}

// statusJSON runs db status and decodes the report.
func statusJSON(t *testing.T, env []string) schema.StoreStatus {
	t.Helper()
	out, err := runCipetteCommand(t, env, "db", "status", "--output", "json")
	require.NoError(t, err)
	var status schema.StoreStatus
	require.NoError(t, json.Unmarshal(out, &status))
	return status
}
