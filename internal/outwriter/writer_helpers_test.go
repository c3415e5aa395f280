package outwriter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/huangsam/cipette/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateFormatters(t *testing.T) {
	tests := []struct {
		name      string
		precision int
		value     float64
		expected  string
	}{
		{name: "success rate", precision: 2, value: 66.666666, expected: "66.67"},
		{name: "whole seconds", precision: 0, value: 719.6, expected: "720"},
		{name: "negative", precision: 1, value: -0.04, expected: "-0.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fmtFloat, intFmt := createFormatters(tt.precision)
			assert.Equal(t, tt.expected, fmtFloat(tt.value))
			assert.Equal(t, "%d", intFmt)
		})
	}
}

func TestOptionalFormatters(t *testing.T) {
	fmtFloat, _ := createFormatters(1)
	assert.Equal(t, "", optionalFloat(nil, fmtFloat))
	assert.Equal(t, "720.0", optionalFloat(schema.Float64Ptr(720), fmtFloat))
	assert.Equal(t, "", optionalInt(nil))
	assert.Equal(t, "180", optionalInt(schema.Int64Ptr(180)))
	assert.Equal(t, "", optionalTime(nil))

	local := time.Date(2024, 3, 1, 5, 3, 0, 0, time.FixedZone("EST", -5*3600))
	assert.Equal(t, "2024-03-01T10:03:00Z", optionalTime(&local))
	assert.Equal(t, "-", orDash(""))
	assert.Equal(t, "main", orDash("main"))
}

func TestWriteJSONKeepsNullMTTR(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeJSON(&buf, schema.MTTRStat{Samples: 0}))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Contains(t, decoded, "Seconds")
	assert.Nil(t, decoded["Seconds"])
	assert.Contains(t, buf.String(), "\n  \"Seconds\"")
}

func TestWriteJSONError(t *testing.T) {
	var buf bytes.Buffer
	err := writeJSON(&buf, make(chan int))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to encode JSON")
}

func TestWriteCSVWithHeader(t *testing.T) {
	var buf bytes.Buffer
	err := writeCSVWithHeader(&buf, []string{"repository", "workflow"}, func(w *csv.Writer) error {
		return w.Write([]string{"acme/api", "Build, test and deploy"})
	})
	require.NoError(t, err)
	assert.Equal(t, "repository,workflow\nacme/api,\"Build, test and deploy\"\n", buf.String())
}

func TestWriteCSVWithHeaderError(t *testing.T) {
	var buf bytes.Buffer
	err := writeCSVWithHeader(&buf, []string{"run_id"}, func(*csv.Writer) error {
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)
}

func TestWriteWithFile(t *testing.T) {
	t.Run("stdout", func(t *testing.T) {
		called := false
		err := writeWithFile("", func(w io.Writer) error {
			called = true
			assert.Equal(t, os.Stdout, w)
			return nil
		}, "Wrote JSON")
		require.NoError(t, err)
		assert.True(t, called)
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "runs.csv")
		err := writeWithFile(path, func(w io.Writer) error {
			return writeCSVWithHeader(w, []string{"run_id", "status"}, func(cw *csv.Writer) error {
				return cw.Write([]string{"30433642", string(schema.StatusCompleted)})
			})
		}, "Wrote CSV")
		require.NoError(t, err)

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "run_id,status\n30433642,completed\n", string(content))
	})

	t.Run("writer error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "metrics.json")
		err := writeWithFile(path, func(io.Writer) error { return assert.AnError }, "Wrote JSON")
		assert.ErrorIs(t, err, assert.AnError)
	})

	t.Run("invalid path", func(t *testing.T) {
		err := writeWithFile("/nonexistent/dir/metrics.json", func(io.Writer) error { return nil }, "Wrote JSON")
		assert.Error(t, err)
	})
}
