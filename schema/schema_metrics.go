package schema

import (
	"fmt"
	"time"
)

// MetricsQuery filters a metrics request.
// Repository None and Unspecified both mean every repository. Days None and
// Unspecified both mean the all-time window served from the cache tables.
type MetricsQuery struct {
	Repository Option[string]
	Days       Option[int]
}

// Key renders the query as a stable cache key component.
func (q MetricsQuery) Key() string {
	repo, _ := q.Repository.Get()
	days, _ := q.Days.Get()
	return fmt.Sprintf("%s|%d", repo, days)
}

// MetricsAggregate is one (repository, workflow) row as aggregated by the store.
type MetricsAggregate struct {
	Repository         string
	WorkflowID         string
	WorkflowName       string
	TotalRuns          int
	SuccessCount       int
	FailureCount       int
	AvgDurationSeconds *float64
	FirstRun           *time.Time
	LastRun            *time.Time
	MTTRSeconds        *float64
	Health             *HealthScoreCacheRecord // all-time rows only, nil when not yet calculated
}

// HealthBreakdown holds the four component scores, each in [0, 100].
type HealthBreakdown struct {
	SuccessRate float64 `json:"success_rate"`
	MTTR        float64 `json:"mttr"`
	Duration    float64 `json:"duration"`
	Throughput  float64 `json:"throughput"`
}

// Get returns the component score for key.
func (b HealthBreakdown) Get(key BreakdownKey) float64 {
	switch key {
	case BreakdownSuccessRate:
		return b.SuccessRate
	case BreakdownMTTR:
		return b.MTTR
	case BreakdownDuration:
		return b.Duration
	case BreakdownThroughput:
		return b.Throughput
	}
	return 0
}

// HealthInput holds the raw values a health score is computed from.
type HealthInput struct {
	SuccessRate        *float64 `json:"success_rate"`
	MTTRSeconds        *float64 `json:"mttr_seconds"`
	AvgDurationSeconds *float64 `json:"avg_duration_seconds"`
	TotalRuns          int      `json:"total_runs"`
	Days               int      `json:"days"`
}

// HealthMetadata records what a health score was computed with.
type HealthMetadata struct {
	Input              HealthInput              `json:"input"`
	Weights            map[BreakdownKey]float64 `json:"weights"`
	MaxMTTRSeconds     float64                  `json:"max_mttr_seconds"`
	MaxDurationSeconds float64                  `json:"max_duration_seconds"`
	MinRunsPerDay      float64                  `json:"min_runs_per_day"`
}

// HealthScoreResult is the outcome of a health score calculation.
type HealthScoreResult struct {
	OverallScore float64         `json:"overall_score"`
	HealthClass  HealthClass     `json:"health_class"`
	DataQuality  DataQuality     `json:"data_quality"`
	Breakdown    HealthBreakdown `json:"breakdown"`
	Warnings     []string        `json:"warnings"`
	Errors       []string        `json:"errors"`
	Metadata     HealthMetadata  `json:"metadata"`
}

// MetricRow is the per-workflow reliability summary served to consumers.
type MetricRow struct {
	Repository         string          `json:"repository"`
	WorkflowID         string          `json:"workflow_id"`
	WorkflowName       string          `json:"workflow_name"`
	TotalRuns          int             `json:"total_runs"`
	SuccessCount       int             `json:"success_count"`
	FailureCount       int             `json:"failure_count"`
	AvgDurationSeconds *float64        `json:"avg_duration_seconds"`
	SuccessRate        float64         `json:"success_rate"`
	FirstRun           *time.Time      `json:"first_run"`
	LastRun            *time.Time      `json:"last_run"`
	MTTRSeconds        *float64        `json:"mttr_seconds"`
	HealthScore        float64         `json:"health_score"`
	HealthClass        HealthClass     `json:"health_class"`
	DataQuality        DataQuality     `json:"data_quality"`
	HealthBreakdown    HealthBreakdown `json:"health_breakdown"`
	Warnings           []string        `json:"warnings"`
	Errors             []string        `json:"errors"`
}

// RepositorySummary rolls the workflow rows of one repository into a single line.
type RepositorySummary struct {
	Repository         string     `json:"repository"`
	Workflows          int        `json:"workflows"`
	TotalRuns          int        `json:"total_runs"`
	SuccessCount       int        `json:"success_count"`
	FailureCount       int        `json:"failure_count"`
	SuccessRate        float64    `json:"success_rate"`
	AvgDurationSeconds *float64   `json:"avg_duration_seconds"` // weighted by each workflow's run count
	MTTRSeconds        *float64   `json:"mttr_seconds"`
	FirstRun           *time.Time `json:"first_run"`
	LastRun            *time.Time `json:"last_run"`
	Warnings           []string   `json:"warnings"`
}
