// Package parquet provides data structures and functions for exporting cipette
// metrics and runs to Parquet files using github.com/parquet-go/parquet-go.
package parquet

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/huangsam/cipette/schema"
	"github.com/parquet-go/parquet-go"
)

// WorkflowMetrics is one per-workflow reliability summary.
type WorkflowMetrics struct {
	// Repository is the owner/name of the repository
	Repository string `parquet:"repository,snappy"`

	// WorkflowID is the upstream workflow identifier
	WorkflowID string `parquet:"workflow_id,snappy"`

	WorkflowName string `parquet:"workflow_name,snappy"`

	TotalRuns    int32 `parquet:"total_runs,snappy"`
	SuccessCount int32 `parquet:"success_count,snappy"`
	FailureCount int32 `parquet:"failure_count,snappy"`

	// AvgDurationSeconds is nil when no run has a duration
	AvgDurationSeconds *float64 `parquet:"avg_duration_seconds,optional,snappy"`

	// SuccessRate is a percentage over success and failure runs only
	SuccessRate float64 `parquet:"success_rate,snappy"`

	FirstRun *time.Time `parquet:"first_run,optional,snappy"`
	LastRun  *time.Time `parquet:"last_run,optional,snappy"`

	// MTTRSeconds is nil when no failure has recovered
	MTTRSeconds *float64 `parquet:"mttr_seconds,optional,snappy"`

	HealthScore float64 `parquet:"health_score,snappy"`
	HealthClass string  `parquet:"health_class,snappy"`
	DataQuality string  `parquet:"data_quality,snappy"`

	ScoreSuccessRate float64 `parquet:"score_success_rate,snappy"`
	ScoreMTTR        float64 `parquet:"score_mttr,snappy"`
	ScoreDuration    float64 `parquet:"score_duration,snappy"`
	ScoreThroughput  float64 `parquet:"score_throughput,snappy"`

	// ExportedAt is when the export was produced
	ExportedAt time.Time `parquet:"exported_at,snappy"`
}

// RepositoryMetrics is one per-repository rollup.
type RepositoryMetrics struct {
	Repository         string     `parquet:"repository,snappy"`
	Workflows          int32      `parquet:"workflows,snappy"`
	TotalRuns          int32      `parquet:"total_runs,snappy"`
	SuccessCount       int32      `parquet:"success_count,snappy"`
	FailureCount       int32      `parquet:"failure_count,snappy"`
	SuccessRate        float64    `parquet:"success_rate,snappy"`
	AvgDurationSeconds *float64   `parquet:"avg_duration_seconds,optional,snappy"`
	MTTRSeconds        *float64   `parquet:"mttr_seconds,optional,snappy"`
	FirstRun           *time.Time `parquet:"first_run,optional,snappy"`
	LastRun            *time.Time `parquet:"last_run,optional,snappy"`
	ExportedAt         time.Time  `parquet:"exported_at,snappy"`
}

// WorkflowRun is one stored run with its workflow and repository names.
type WorkflowRun struct {
	RunID           string     `parquet:"run_id,snappy"`
	Repository      string     `parquet:"repository,snappy"`
	WorkflowID      string     `parquet:"workflow_id,snappy"`
	WorkflowName    string     `parquet:"workflow_name,snappy"`
	RunNumber       int64      `parquet:"run_number,snappy"`
	CommitSHA       *string    `parquet:"commit_sha,optional,snappy"`
	Branch          *string    `parquet:"branch,optional,snappy"`
	Event           *string    `parquet:"event,optional,snappy"`
	Actor           *string    `parquet:"actor,optional,snappy"`
	Status          string     `parquet:"status,snappy"`
	Conclusion      *string    `parquet:"conclusion,optional,snappy"`
	StartedAt       *time.Time `parquet:"started_at,optional,snappy"`
	CompletedAt     *time.Time `parquet:"completed_at,optional,snappy"`
	DurationSeconds *int64     `parquet:"duration_seconds,optional,snappy"`
	URL             *string    `parquet:"url,optional,snappy"`
}

// WriteMetricsParquet writes workflow metrics to a Parquet file.
func WriteMetricsParquet(data []WorkflowMetrics, outputPath string) error {
	return writeFile(outputPath, func(w io.Writer) error {
		return WriteRows(w, data)
	})
}

// WriteRunsParquet writes runs to a Parquet file.
func WriteRunsParquet(data []WorkflowRun, outputPath string) error {
	return writeFile(outputPath, func(w io.Writer) error {
		return WriteRows(w, data)
	})
}

// WriteRows encodes rows to w. The schema is derived from the struct tags of T.
func WriteRows[T any](w io.Writer, rows []T) error {
	writer := parquet.NewGenericWriter[T](w)
	if _, err := writer.Write(rows); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return nil
}

func writeFile(outputPath string, write func(io.Writer) error) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := write(file); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

// ConvertMetricRows converts schema.MetricRow to WorkflowMetrics for Parquet export.
func ConvertMetricRows(rows []schema.MetricRow, exportedAt time.Time) []WorkflowMetrics {
	result := make([]WorkflowMetrics, len(rows))
	for i, row := range rows {
		result[i] = WorkflowMetrics{
			Repository:         row.Repository,
			WorkflowID:         row.WorkflowID,
			WorkflowName:       row.WorkflowName,
			TotalRuns:          int32(row.TotalRuns),
			SuccessCount:       int32(row.SuccessCount),
			FailureCount:       int32(row.FailureCount),
			AvgDurationSeconds: row.AvgDurationSeconds,
			SuccessRate:        row.SuccessRate,
			FirstRun:           row.FirstRun,
			LastRun:            row.LastRun,
			MTTRSeconds:        row.MTTRSeconds,
			HealthScore:        row.HealthScore,
			HealthClass:        string(row.HealthClass),
			DataQuality:        string(row.DataQuality),
			ScoreSuccessRate:   row.HealthBreakdown.SuccessRate,
			ScoreMTTR:          row.HealthBreakdown.MTTR,
			ScoreDuration:      row.HealthBreakdown.Duration,
			ScoreThroughput:    row.HealthBreakdown.Throughput,
			ExportedAt:         exportedAt.UTC(),
		}
	}
	return result
}

// ConvertRunViews converts schema.RunView to WorkflowRun for Parquet export.
func ConvertRunViews(runs []schema.RunView) []WorkflowRun {
	result := make([]WorkflowRun, len(runs))
	for i, run := range runs {
		var conclusion *string
		if run.Conclusion != nil {
			c := string(*run.Conclusion)
			conclusion = &c
		}
		result[i] = WorkflowRun{
			RunID:           run.ID,
			Repository:      run.Repository,
			WorkflowID:      run.WorkflowID,
			WorkflowName:    run.WorkflowName,
			RunNumber:       run.RunNumber,
			CommitSHA:       schema.StringPtr(run.CommitSHA),
			Branch:          schema.StringPtr(run.Branch),
			Event:           schema.StringPtr(run.Event),
			Actor:           schema.StringPtr(run.Actor),
			Status:          string(run.Status),
			Conclusion:      conclusion,
			StartedAt:       run.StartedAt,
			CompletedAt:     run.CompletedAt,
			DurationSeconds: run.DurationSeconds,
			URL:             schema.StringPtr(run.URL),
		}
	}
	return result
}

// ConvertRepositorySummaries converts schema.RepositorySummary to RepositoryMetrics for Parquet export.
func ConvertRepositorySummaries(summaries []schema.RepositorySummary, exportedAt time.Time) []RepositoryMetrics {
	result := make([]RepositoryMetrics, len(summaries))
	for i, sum := range summaries {
		result[i] = RepositoryMetrics{
			Repository:         sum.Repository,
			Workflows:          int32(sum.Workflows),
			TotalRuns:          int32(sum.TotalRuns),
			SuccessCount:       int32(sum.SuccessCount),
			FailureCount:       int32(sum.FailureCount),
			SuccessRate:        sum.SuccessRate,
			AvgDurationSeconds: sum.AvgDurationSeconds,
			MTTRSeconds:        sum.MTTRSeconds,
			FirstRun:           sum.FirstRun,
			LastRun:            sum.LastRun,
			ExportedAt:         exportedAt.UTC(),
		}
	}
	return result
}
