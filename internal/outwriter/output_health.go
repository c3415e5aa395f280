package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/huangsam/cipette/internal/contract"
	"github.com/huangsam/cipette/schema"
)

// HealthComponent describes one weighted input of the health score.
type HealthComponent struct {
	Key     schema.BreakdownKey `json:"key"`
	Name    string              `json:"name"`
	Purpose string              `json:"purpose"`
	Scale   string              `json:"scale"`
	Weight  float64             `json:"weight"`
}

// HealthModel describes the health score definition for rendering.
type HealthModel struct {
	Title       string                          `json:"title"`
	Description string                          `json:"description"`
	Components  []HealthComponent               `json:"components"`
	Formula     string                          `json:"formula"`
	Thresholds  contract.HealthThresholds       `json:"thresholds"`
	Weights     map[schema.BreakdownKey]float64 `json:"weights"`
}

// WriteHealthModel displays how workflow health scores are computed with the active configuration.
func WriteHealthModel(health contract.HealthConfig, cfg *contract.Config) error {
	model := NewHealthModel(health)

	switch cfg.Output {
	case schema.JSONOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, model)
		}, "Wrote JSON")
	case schema.CSVOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeCSVHealthModel(w, model)
		}, "Wrote CSV")
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeHealthModelText(w, model)
		}, "Wrote text")
	}
}

// NewHealthModel builds the description of the health score under health.
func NewHealthModel(health contract.HealthConfig) *HealthModel {
	components := []HealthComponent{
		{
			Key:     schema.BreakdownSuccessRate,
			Name:    "Success rate",
			Purpose: "Share of successful runs among runs that succeeded or failed",
			Scale:   "The rate itself, clamped to 0-100",
		},
		{
			Key:     schema.BreakdownMTTR,
			Name:    "MTTR",
			Purpose: "Mean time from a failed run to the next successful run",
			Scale:   fmt.Sprintf("100 at 0s, falling linearly to 0 at %vs", health.MaxMTTRSeconds),
		},
		{
			Key:     schema.BreakdownDuration,
			Name:    "Duration",
			Purpose: "Average wall-clock duration of completed runs",
			Scale:   fmt.Sprintf("100 at 0s, falling linearly to 0 at %vs", health.MaxDurationSeconds),
		},
		{
			Key:     schema.BreakdownThroughput,
			Name:    "Throughput",
			Purpose: "Runs per day over the scoring window",
			Scale:   fmt.Sprintf("100 at %v runs/day or more, linear below", health.MinRunsPerDay),
		},
	}
	for i := range components {
		components[i].Weight = health.Weights[components[i].Key]
	}

	return &HealthModel{
		Title:       "Workflow Health Score",
		Description: "Overall score = weighted sum of component scores, clamped to 0-100",
		Components:  components,
		Formula:     formatWeights(health.Weights),
		Thresholds:  health.Thresholds,
		Weights:     health.Weights,
	}
}

// formatWeights formats weights for display in formulas.
func formatWeights(weights map[schema.BreakdownKey]float64) string {
	var parts []string
	for _, key := range schema.AllBreakdownKeys {
		if weight, ok := weights[key]; ok && weight > 0 {
			parts = append(parts, fmt.Sprintf("%.2f*%s", weight, key))
		}
	}
	return strings.Join(parts, "+")
}

func writeHealthModelText(w io.Writer, model *HealthModel) error {
	lines := []string{
		"🩺 " + model.Title,
		strings.Repeat("=", len(model.Title)+3),
		"",
		model.Description,
		"",
	}
	for _, c := range model.Components {
		lines = append(lines,
			fmt.Sprintf("%s (weight %.2f): %s", strings.ToUpper(c.Name), c.Weight, c.Purpose),
			fmt.Sprintf("   Scale: %s", c.Scale),
			"",
		)
	}
	t := model.Thresholds
	lines = append(lines,
		fmt.Sprintf("Formula: Score = %s", model.Formula),
		fmt.Sprintf("Classes: excellent >= %v, good >= %v, fair >= %v, poor below", t.Excellent, t.Good, t.Fair),
	)
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func writeCSVHealthModel(w io.Writer, model *HealthModel) error {
	return writeCSVWithHeader(w, []string{"Component", "Weight", "Purpose", "Scale"}, func(cw *csv.Writer) error {
		for _, c := range model.Components {
			if err := cw.Write([]string{string(c.Key), fmt.Sprintf("%.2f", c.Weight), c.Purpose, c.Scale}); err != nil {
				return fmt.Errorf("failed to write CSV record: %w", err)
			}
		}
		return nil
	})
}
