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

// summaryFixedWidth reserves room for every summary column except the repository name.
const summaryFixedWidth = 80

// WriteRepositorySummaries outputs per-repository rollups, dispatching based on the output format configured.
func WriteRepositorySummaries(summaries []schema.RepositorySummary, cfg *contract.Config, duration time.Duration) error {
	fmtFloat, intFmt := createFormatters(cfg.Precision)

	switch cfg.Output {
	case schema.JSONOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			if summaries == nil {
				summaries = []schema.RepositorySummary{}
			}
			return writeJSON(w, summaries)
		}, "Wrote JSON")
	case schema.CSVOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeCSVSummaries(w, summaries, fmtFloat, intFmt)
		}, "Wrote CSV")
	case schema.ParquetOut:
		return writeParquetFile(cfg.OutputFile, parquet.ConvertRepositorySummaries(summaries, time.Now()))
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeSummaryTable(w, summaries, cfg, fmtFloat, intFmt, duration)
		}, "Wrote table")
	}
}

func writeSummaryTable(w io.Writer, summaries []schema.RepositorySummary, cfg *contract.Config, fmtFloat func(float64) string, intFmt string, duration time.Duration) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Repository", "Workflows", "Runs", "Pass", "Fail", "Rate %", "Avg Dur", "MTTR", "Last Run"})
	table.Configure(func(c *tablewriter.Config) {
		c.Row.Alignment.Global = tw.AlignRight
	})

	nameWidth := getMaxTableNameWidth(cfg, summaryFixedWidth)
	data := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		data = append(data, []string{
			contract.TruncateText(s.Repository, nameWidth),
			fmt.Sprintf(intFmt, s.Workflows),
			fmt.Sprintf(intFmt, s.TotalRuns),
			fmt.Sprintf(intFmt, s.SuccessCount),
			fmt.Sprintf(intFmt, s.FailureCount),
			fmtFloat(s.SuccessRate),
			contract.FormatSeconds(s.AvgDurationSeconds),
			contract.FormatSeconds(s.MTTRSeconds),
			orDash(optionalTime(s.LastRun)),
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
	if _, err := fmt.Fprintf(w, "Showing %d repositories (window: %s)\n", len(summaries), window); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "Query completed in %v. Backend: %s\n", duration.Round(time.Millisecond), cfg.Backend)
	return err
}

func writeCSVSummaries(w io.Writer, summaries []schema.RepositorySummary, fmtFloat func(float64) string, intFmt string) error {
	header := []string{
		"repository",
		"workflows",
		"total_runs",
		"success_count",
		"failure_count",
		"success_rate",
		"avg_duration_seconds",
		"mttr_seconds",
		"first_run",
		"last_run",
		"warnings",
	}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for _, s := range summaries {
			rec := []string{
				s.Repository,
				fmt.Sprintf(intFmt, s.Workflows),
				fmt.Sprintf(intFmt, s.TotalRuns),
				fmt.Sprintf(intFmt, s.SuccessCount),
				fmt.Sprintf(intFmt, s.FailureCount),
				fmtFloat(s.SuccessRate),
				optionalFloat(s.AvgDurationSeconds, fmtFloat),
				optionalFloat(s.MTTRSeconds, fmtFloat),
				optionalTime(s.FirstRun),
				optionalTime(s.LastRun),
				strings.Join(s.Warnings, "|"),
			}
			if err := cw.Write(rec); err != nil {
				return fmt.Errorf("failed to write CSV record: %w", err)
			}
		}
		return nil
	})
}
