package outwriter

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/huangsam/cipette/internal/contract"
	"github.com/huangsam/cipette/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteHealthModelText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeHealthModelText(&buf, NewHealthModel(contract.DefaultHealthConfig())))

	output := buf.String()
	assert.Contains(t, output, "Workflow Health Score")
	assert.Contains(t, output, "SUCCESS RATE (weight 0.35)")
	assert.Contains(t, output, "falling linearly to 0 at 7200s")
	assert.Contains(t, output, "falling linearly to 0 at 1800s")
	assert.Contains(t, output, "Formula: Score = 0.35*success_rate+0.25*mttr+0.20*duration+0.20*throughput")
	assert.Contains(t, output, "Classes: excellent >= 85, good >= 70, fair >= 50, poor below")
}

func TestBuildHealthModelCustomWeights(t *testing.T) {
	health := contract.DefaultHealthConfig()
	health.Weights = map[schema.BreakdownKey]float64{
		schema.BreakdownSuccessRate: 0.5,
		schema.BreakdownMTTR:        0.5,
		schema.BreakdownThroughput:  0,
	}
	model := NewHealthModel(health)
	assert.Equal(t, "0.50*success_rate+0.50*mttr", model.Formula)
	assert.Equal(t, 0.0, model.Components[2].Weight)
}

func TestWriteHealthModelJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeJSON(&buf, NewHealthModel(contract.DefaultHealthConfig())))

	var result map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &result))
	assert.Equal(t, "Workflow Health Score", result["title"])
	thresholds := result["thresholds"].(map[string]any)
	assert.Equal(t, 85.0, thresholds["excellent"])
	assert.Len(t, result["components"], 4)
}

func TestWriteCSVHealthModel(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeCSVHealthModel(&buf, NewHealthModel(contract.DefaultHealthConfig())))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "Component,Weight,Purpose,Scale", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "success_rate,0.35,"))
}
