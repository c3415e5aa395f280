package contract

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/huangsam/cipette/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHealthClass(t *testing.T) {
	thresholds := DefaultHealthConfig().Thresholds
	tests := []struct {
		name     string
		input    float64
		expected schema.HealthClass
	}{
		{name: "smallest value possible", input: 0.0, expected: schema.HealthPoor},
		{name: "just before fair", input: 49.9, expected: schema.HealthPoor},
		{name: "exactly fair", input: 50.0, expected: schema.HealthFair},
		{name: "just before good", input: 69.9, expected: schema.HealthFair},
		{name: "exactly good", input: 70.0, expected: schema.HealthGood},
		{name: "just before excellent", input: 84.9, expected: schema.HealthGood},
		{name: "exactly excellent", input: 85.0, expected: schema.HealthExcellent},
		{name: "perfect", input: 100.0, expected: schema.HealthExcellent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetHealthClass(tt.input, thresholds))
		})
	}
}

func TestGetColorHealthLabel(t *testing.T) {
	tests := []struct {
		class schema.HealthClass
		label string
	}{
		{schema.HealthExcellent, "Excellent"},
		{schema.HealthGood, "Good"},
		{schema.HealthFair, "Fair"},
		{schema.HealthPoor, "Poor"},
		{schema.HealthUnknown, "Unknown"},
		{"", "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			assert.Equal(t, tt.label, GetPlainHealthLabel(tt.class))
			assert.Contains(t, GetColorHealthLabel(tt.class), tt.label)
		})
	}
}

func TestSelectOutputFile(t *testing.T) {
	t.Run("empty path returns stdout", func(t *testing.T) {
		file, err := SelectOutputFile("")
		require.NoError(t, err)
		assert.Equal(t, os.Stdout, file)
	})

	t.Run("valid path creates file", func(t *testing.T) {
		tempFile := filepath.Join(t.TempDir(), "test_output.txt")

		file, err := SelectOutputFile(tempFile)
		require.NoError(t, err)
		assert.NotNil(t, file)
		_ = file.Close()

		_, err = os.Stat(tempFile)
		assert.NoError(t, err)
	})
}

func TestGetDBFilePath(t *testing.T) {
	path := GetDBFilePath()
	assert.True(t, strings.HasSuffix(path, ".cipette.db"))
}

func TestTruncateText(t *testing.T) {
	assert.Equal(t, "short", TruncateText("short", 10))
	assert.Equal(t, "deploy-pr...", TruncateText("deploy-production", 12))
	assert.Equal(t, "abcdef", TruncateText("abcdef", 3))
}

func TestFormatSeconds(t *testing.T) {
	assert.Equal(t, "-", FormatSeconds(nil))
	assert.Equal(t, "12m0s", FormatSeconds(schema.Float64Ptr(720)))
	assert.Equal(t, "4m0s", FormatSeconds(schema.Float64Ptr(240.2)))
}

func TestParseBoolString(t *testing.T) {
	for _, s := range []string{"yes", "TRUE", "1"} {
		v, err := ParseBoolString(s)
		require.NoError(t, err)
		assert.True(t, v)
	}
	for _, s := range []string{"no", "False", "0"} {
		v, err := ParseBoolString(s)
		require.NoError(t, err)
		assert.False(t, v)
	}
	_, err := ParseBoolString("maybe")
	assert.Error(t, err)
}
