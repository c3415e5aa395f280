package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/huangsam/cipette/internal/contract"
	"github.com/huangsam/cipette/internal/parquet"
	"github.com/huangsam/cipette/schema"
	"github.com/olekukonko/tablewriter"
)

// runsFixedWidth reserves room for every runs column except the two names.
const runsFixedWidth = 100

// WriteRuns outputs a run listing, dispatching based on the output format configured.
func WriteRuns(runs []schema.RunView, cfg *contract.Config) error {
	switch cfg.Output {
	case schema.JSONOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSONRuns(w, runs)
		}, "Wrote JSON")
	case schema.CSVOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeCSVRuns(w, runs)
		}, "Wrote CSV")
	case schema.ParquetOut:
		return writeParquetFile(cfg.OutputFile, parquet.ConvertRunViews(runs))
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeRunsTable(w, runs, cfg)
		}, "Wrote table")
	}
}

func writeRunsTable(w io.Writer, runs []schema.RunView, cfg *contract.Config) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Started", "Repository", "Workflow", "#", "Branch", "Event", "Status", "Conclusion", "Duration"})

	nameWidth := getMaxTableNameWidth(cfg, runsFixedWidth)
	data := make([][]string, 0, len(runs))
	for _, r := range runs {
		started := "-"
		if r.StartedAt != nil {
			started = r.StartedAt.UTC().Format(time.DateTime)
		}
		conclusion := "-"
		if r.Conclusion != nil {
			conclusion = string(*r.Conclusion)
		}
		duration := "-"
		if r.DurationSeconds != nil {
			duration = (time.Duration(*r.DurationSeconds) * time.Second).String()
		}
		data = append(data, []string{
			started,
			contract.TruncateText(r.Repository, nameWidth),
			contract.TruncateText(r.WorkflowName, nameWidth),
			strconv.FormatInt(r.RunNumber, 10),
			orDash(r.Branch),
			orDash(r.Event),
			string(r.Status),
			conclusion,
			duration,
		})
	}

	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "Showing %d runs (newest first, limit %d)\n", len(runs), effectiveRunLimit(cfg.RunLimit))
	return err
}

func writeCSVRuns(w io.Writer, runs []schema.RunView) error {
	header := []string{
		"run_id",
		"repository",
		"workflow_id",
		"workflow_name",
		"run_number",
		"commit_sha",
		"branch",
		"event",
		"actor",
		"status",
		"conclusion",
		"started_at",
		"completed_at",
		"duration_seconds",
		"url",
	}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for _, r := range runs {
			conclusion := ""
			if r.Conclusion != nil {
				conclusion = string(*r.Conclusion)
			}
			rec := []string{
				r.ID,
				r.Repository,
				r.WorkflowID,
				r.WorkflowName,
				strconv.FormatInt(r.RunNumber, 10),
				r.CommitSHA,
				r.Branch,
				r.Event,
				r.Actor,
				string(r.Status),
				conclusion,
				optionalTime(r.StartedAt),
				optionalTime(r.CompletedAt),
				optionalInt(r.DurationSeconds),
				r.URL,
			}
			if err := cw.Write(rec); err != nil {
				return fmt.Errorf("failed to write CSV record: %w", err)
			}
		}
		return nil
	})
}

func writeJSONRuns(w io.Writer, runs []schema.RunView) error {
	if runs == nil {
		runs = []schema.RunView{}
	}
	return writeJSON(w, runs)
}

func effectiveRunLimit(limit int) int {
	switch {
	case limit <= 0:
		return contract.DefaultRunLimit
	case limit > contract.MaxRunLimit:
		return contract.MaxRunLimit
	}
	return limit
}
