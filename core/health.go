package core

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/huangsam/cipette/internal/contract"
	"github.com/huangsam/cipette/schema"
)

// Minimum run counts per data quality level.
const (
	minRunsExcellent = 10
	minRunsGood      = 5
	minRunsFair      = 3
	minRunsPoor      = 1
)

// HealthCalculator turns raw reliability inputs into a 0-100 health score.
type HealthCalculator struct {
	cfg      contract.HealthConfig
	logger   *slog.Logger
	classify func(float64, contract.HealthThresholds) schema.HealthClass
}

// NewHealthCalculator returns a calculator using cfg. A nil logger discards output.
func NewHealthCalculator(cfg contract.HealthConfig, logger *slog.Logger) *HealthCalculator {
	if logger == nil {
		logger = contract.NopLogger()
	}
	return &HealthCalculator{
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "health")),
		classify: contract.GetHealthClass,
	}
}

// Calculate scores in. It never panics: unexpected failures produce a zero
// score with health class unknown and the failure in Errors.
func (c *HealthCalculator) Calculate(in schema.HealthInput) (result schema.HealthScoreResult) {
	result.Metadata = c.metadata(in)

	var warnings []string
	warn := func(format string, args ...any) {
		warnings = append(warnings, fmt.Sprintf(format, args...))
	}

	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("Calculation error: %v", r)
			c.logger.Error("health score calculation failed", slog.Any("panic", r))
			result = schema.HealthScoreResult{
				OverallScore: 0,
				HealthClass:  schema.HealthUnknown,
				DataQuality:  schema.QualityInsufficient,
				Warnings:     warnings,
				Errors:       []string{msg},
				Metadata:     result.Metadata,
			}
		}
	}()

	in.SuccessRate = finiteOrNil(in.SuccessRate, "Success rate", warn)
	in.MTTRSeconds = finiteOrNil(in.MTTRSeconds, "MTTR", warn)
	in.AvgDurationSeconds = finiteOrNil(in.AvgDurationSeconds, "Duration", warn)

	breakdown := schema.HealthBreakdown{
		SuccessRate: c.successRateScore(in.SuccessRate, warn),
		MTTR:        c.mttrScore(in.MTTRSeconds, warn),
		Duration:    c.durationScore(in.AvgDurationSeconds, warn),
		Throughput:  c.throughputScore(in.TotalRuns, in.Days, warn),
	}

	var weightSum, overall float64
	for _, key := range schema.AllBreakdownKeys {
		w := c.cfg.Weights[key]
		weightSum += w
		overall += w * breakdown.Get(key)
	}
	if math.Abs(weightSum-1.0) > 0.001 {
		warn("Weights do not sum to 1.0: %.3f", weightSum)
	}
	if math.IsNaN(overall) || overall < 0 || overall > 100 {
		warn("Overall score out of valid range (0-100)")
		overall = clamp(overall, 0, 100)
	}
	overall = schema.Round(overall, 1)

	result.OverallScore = overall
	result.HealthClass = c.classify(overall, c.cfg.Thresholds)
	result.DataQuality = assessDataQuality(in)
	result.Breakdown = schema.HealthBreakdown{
		SuccessRate: schema.Round(breakdown.SuccessRate, 2),
		MTTR:        schema.Round(breakdown.MTTR, 2),
		Duration:    schema.Round(breakdown.Duration, 2),
		Throughput:  schema.Round(breakdown.Throughput, 2),
	}
	result.Warnings = warnings
	return result
}

func (c *HealthCalculator) metadata(in schema.HealthInput) schema.HealthMetadata {
	return schema.HealthMetadata{
		Input:              in,
		Weights:            c.cfg.Weights,
		MaxMTTRSeconds:     c.cfg.MaxMTTRSeconds,
		MaxDurationSeconds: c.cfg.MaxDurationSeconds,
		MinRunsPerDay:      c.cfg.MinRunsPerDay,
	}
}

func (c *HealthCalculator) successRateScore(rate *float64, warn func(string, ...any)) float64 {
	if rate == nil {
		warn("Success rate data not available")
		return 0
	}
	if *rate < 0 || *rate > 100 {
		warn("Success rate out of valid range (0-100): %v", *rate)
	}
	return clamp(*rate, 0, 100)
}

// mttrScore decays linearly to zero at the configured ceiling. Missing MTTR
// means nothing failed, which scores as fully healthy.
func (c *HealthCalculator) mttrScore(mttr *float64, warn func(string, ...any)) float64 {
	switch {
	case mttr == nil:
		warn("MTTR data not available - assuming no failures")
		return 100
	case *mttr < 0:
		warn("Negative MTTR value: %v", *mttr)
		return 0
	case *mttr == 0:
		warn("MTTR is zero - this may indicate data quality issues")
		return 100
	case *mttr > c.cfg.MaxMTTRSeconds:
		warn("MTTR exceeds maximum threshold (%vs): %vs", c.cfg.MaxMTTRSeconds, *mttr)
	}
	return linearDecay(*mttr, c.cfg.MaxMTTRSeconds)
}

func (c *HealthCalculator) durationScore(duration *float64, warn func(string, ...any)) float64 {
	switch {
	case duration == nil:
		warn("Duration data not available")
		return 0
	case *duration < 0:
		warn("Negative duration value")
		return 0
	case *duration == 0:
		warn("Duration is zero - this may indicate data quality issues")
		return 0
	case *duration > c.cfg.MaxDurationSeconds:
		warn("Duration exceeds maximum threshold (%vs): %vs", c.cfg.MaxDurationSeconds, *duration)
	}
	return linearDecay(*duration, c.cfg.MaxDurationSeconds)
}

func (c *HealthCalculator) throughputScore(totalRuns, days int, warn func(string, ...any)) float64 {
	switch {
	case totalRuns < 0:
		warn("Invalid total_runs value")
		return 0
	case days <= 0:
		warn("Invalid days value: %d", days)
		return 0
	case totalRuns == 0:
		warn("No runs found in the specified period")
		return 0
	}
	perDay := float64(totalRuns) / float64(days)
	if perDay < c.cfg.MinRunsPerDay {
		warn("Low throughput: %.2f runs/day (minimum: %v)", perDay, c.cfg.MinRunsPerDay)
	}
	if c.cfg.MinRunsPerDay <= 0 {
		return 100
	}
	return clamp(perDay/c.cfg.MinRunsPerDay*100, 0, 100)
}

// assessDataQuality grades how much of the input is present, independent of the score.
func assessDataQuality(in schema.HealthInput) schema.DataQuality {
	present := 0
	for _, v := range []*float64{in.SuccessRate, in.MTTRSeconds, in.AvgDurationSeconds} {
		if v != nil {
			present++
		}
	}
	if in.TotalRuns > 0 && in.Days > 0 {
		present++
	}

	switch {
	case present >= 4 && in.TotalRuns >= minRunsExcellent:
		return schema.QualityExcellent
	case present >= 3 && in.TotalRuns >= minRunsGood:
		return schema.QualityGood
	case present >= 2 && in.TotalRuns >= minRunsFair:
		return schema.QualityFair
	case present >= 1 && in.TotalRuns >= minRunsPoor:
		return schema.QualityPoor
	}
	return schema.QualityInsufficient
}

// linearDecay maps 0 to 100 and ceiling (or beyond) to 0.
func linearDecay(v, ceiling float64) float64 {
	if ceiling <= 0 {
		return 0
	}
	return clamp(100-(v/ceiling)*100, 0, 100)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

// finiteOrNil drops NaN and infinite inputs so they count as missing.
func finiteOrNil(v *float64, name string, warn func(string, ...any)) *float64 {
	if v == nil || (!math.IsNaN(*v) && !math.IsInf(*v, 0)) {
		return v
	}
	warn("%s is not a finite number: %v", name, *v)
	return nil
}
