package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/huangsam/cipette/internal/contract"
	"github.com/huangsam/cipette/internal/parquet"
	"github.com/huangsam/cipette/schema"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// metricsFixedWidth reserves room for every metrics column except the two names.
const metricsFixedWidth = 110

// WriteMetricRows outputs per-workflow metrics, dispatching based on the output format configured.
func WriteMetricRows(rows []schema.MetricRow, cfg *contract.Config, duration time.Duration) error {
	fmtFloat, intFmt := createFormatters(cfg.Precision)

	switch cfg.Output {
	case schema.JSONOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSONMetricRows(w, rows)
		}, "Wrote JSON")
	case schema.CSVOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeCSVMetricRows(w, rows, fmtFloat, intFmt)
		}, "Wrote CSV")
	case schema.ParquetOut:
		return writeParquetFile(cfg.OutputFile, parquet.ConvertMetricRows(rows, time.Now()))
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeMetricsTable(w, rows, cfg, fmtFloat, intFmt, duration)
		}, "Wrote table")
	}
}

// writeMetricsTable generates and writes the human-readable table.
func writeMetricsTable(w io.Writer, rows []schema.MetricRow, cfg *contract.Config, fmtFloat func(float64) string, intFmt string, duration time.Duration) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Repository", "Workflow", "Runs", "Pass", "Fail", "Rate %", "Avg Dur", "MTTR", "Health", "Class", "Quality"})
	table.Configure(func(c *tablewriter.Config) {
		c.Row.Alignment.Global = tw.AlignRight
	})

	nameWidth := getMaxTableNameWidth(cfg, metricsFixedWidth)
	repos := make(map[string]struct{})
	data := make([][]string, 0, len(rows))
	for _, r := range rows {
		repos[r.Repository] = struct{}{}
		data = append(data, []string{
			contract.TruncateText(r.Repository, nameWidth),
			contract.TruncateText(r.WorkflowName, nameWidth),
			fmt.Sprintf(intFmt, r.TotalRuns),
			fmt.Sprintf(intFmt, r.SuccessCount),
			fmt.Sprintf(intFmt, r.FailureCount),
			fmtFloat(r.SuccessRate),
			contract.FormatSeconds(r.AvgDurationSeconds),
			contract.FormatSeconds(r.MTTRSeconds),
			fmt.Sprintf("%.1f", r.HealthScore),
			healthLabel(r.HealthClass, cfg.UseColors),
			string(r.DataQuality),
		})
	}

	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	window := "all time"
	if days, ok := cfg.Days.Get(); ok {
		window = fmt.Sprintf("last %d days", days)
	}
	if _, err := fmt.Fprintf(w, "Showing %d workflows across %d repositories (window: %s)\n", len(rows), len(repos), window); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "Query completed in %v. Backend: %s\n", duration.Round(time.Millisecond), cfg.Backend)
	return err
}

// writeCSVMetricRows writes per-workflow metrics in CSV format.
func writeCSVMetricRows(w io.Writer, rows []schema.MetricRow, fmtFloat func(float64) string, intFmt string) error {
	header := []string{
		"repository",
		"workflow_id",
		"workflow_name",
		"total_runs",
		"success_count",
		"failure_count",
		"success_rate",
		"avg_duration_seconds",
		"mttr_seconds",
		"first_run",
		"last_run",
		"health_score",
		"health_class",
		"data_quality",
		"score_success_rate",
		"score_mttr",
		"score_duration",
		"score_throughput",
		"warnings",
	}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for _, r := range rows {
			rec := []string{
				r.Repository,
				r.WorkflowID,
				r.WorkflowName,
				fmt.Sprintf(intFmt, r.TotalRuns),
				fmt.Sprintf(intFmt, r.SuccessCount),
				fmt.Sprintf(intFmt, r.FailureCount),
				fmtFloat(r.SuccessRate),
				optionalFloat(r.AvgDurationSeconds, fmtFloat),
				optionalFloat(r.MTTRSeconds, fmtFloat),
				optionalTime(r.FirstRun),
				optionalTime(r.LastRun),
				fmtFloat(r.HealthScore),
				string(r.HealthClass),
				string(r.DataQuality),
				fmtFloat(r.HealthBreakdown.SuccessRate),
				fmtFloat(r.HealthBreakdown.MTTR),
				fmtFloat(r.HealthBreakdown.Duration),
				fmtFloat(r.HealthBreakdown.Throughput),
				strings.Join(r.Warnings, "|"),
			}
			if err := cw.Write(rec); err != nil {
				return fmt.Errorf("failed to write CSV record: %w", err)
			}
		}
		return nil
	})
}

// writeJSONMetricRows writes per-workflow metrics in JSON format.
func writeJSONMetricRows(w io.Writer, rows []schema.MetricRow) error {
	if rows == nil {
		rows = []schema.MetricRow{}
	}
	return writeJSON(w, rows)
}

// healthLabel picks the colored or plain label for table output.
func healthLabel(class schema.HealthClass, useColors bool) string {
	if useColors {
		return contract.GetColorHealthLabel(class)
	}
	return contract.GetPlainHealthLabel(class)
}
