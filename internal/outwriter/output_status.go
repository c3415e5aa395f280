package outwriter

import (
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/huangsam/cipette/internal/contract"
	"github.com/huangsam/cipette/schema"
)

const statusTimeFormat = "2006-01-02 15:04:05"

// WriteStatus prints store status information.
func WriteStatus(status schema.StoreStatus, cfg *contract.Config) error {
	if cfg.Output == schema.JSONOut {
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, status)
		}, "Wrote JSON")
	}
	return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
		return writeStatusText(w, status)
	}, "Wrote status")
}

func writeStatusText(w io.Writer, status schema.StoreStatus) error {
	lines := []string{
		fmt.Sprintf("Store Backend: %s", status.Backend),
		fmt.Sprintf("Connected: %t", status.Connected),
	}
	if status.Connected {
		version := fmt.Sprintf("Schema Version: %d", status.SchemaVersion)
		if status.Dirty {
			version += " (dirty)"
		}
		lines = append(lines,
			version,
			fmt.Sprintf("Last Run Ingested: %s", formatStatusTime(status.LastRunTime)),
			fmt.Sprintf("Last Cache Refresh: %s", formatStatusTime(status.LastRefreshTime)),
			"Table Sizes:",
		)
		tables := make([]string, 0, len(status.TableCounts))
		for table := range status.TableCounts {
			tables = append(tables, table)
		}
		slices.Sort(tables)
		for _, table := range tables {
			lines = append(lines, fmt.Sprintf("  %s: %d rows", table, status.TableCounts[table]))
		}
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func formatStatusTime(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.UTC().Format(statusTimeFormat)
}

// WriteRepositories prints the known repository names.
func WriteRepositories(repos []string, cfg *contract.Config) error {
	if repos == nil {
		repos = []string{}
	}
	if cfg.Output == schema.JSONOut {
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, repos)
		}, "Wrote JSON")
	}
	return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
		for _, repo := range repos {
			if _, err := fmt.Fprintln(w, repo); err != nil {
				return err
			}
		}
		return nil
	}, "Wrote repositories")
}

// WriteRefreshReport prints the outcome of a cache refresh pass.
func WriteRefreshReport(report schema.RefreshReport, cfg *contract.Config) error {
	if cfg.Output == schema.JSONOut {
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, report)
		}, "Wrote JSON")
	}
	return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
		return writeRefreshText(w, report)
	}, "Wrote refresh report")
}

func writeRefreshText(w io.Writer, report schema.RefreshReport) error {
	_, err := fmt.Fprintf(w, "Refreshed %d workflows in %v: mttr %d updated, %d cleared; health %d updated; %d failures\n",
		report.Workflows, report.Duration.Round(time.Millisecond),
		report.MTTRUpdated, report.MTTRDeleted, report.HealthUpdated, report.Failures)
	return err
}

// WriteCollectReport prints the outcome of an ingest job.
func WriteCollectReport(report schema.CollectReport, cfg *contract.Config) error {
	if cfg.Output == schema.JSONOut {
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, report)
		}, "Wrote JSON")
	}
	return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
		return writeCollectText(w, report)
	}, "Wrote ingest report")
}

func writeCollectText(w io.Writer, report schema.CollectReport) error {
	if _, err := fmt.Fprintf(w, "Ingested %d repositories, %d workflows, %d runs (%d skipped) in %v\n",
		report.Repositories, report.Workflows, report.Runs.Upserted, report.Runs.Skipped,
		report.Duration.Round(time.Millisecond)); err != nil {
		return err
	}
	for _, repo := range report.FailedRepositories {
		if repo == "" {
			repo = "(unnamed)"
		}
		if _, err := fmt.Fprintf(w, "  failed: %s\n", repo); err != nil {
			return err
		}
	}
	if report.Refresh != nil {
		return writeRefreshText(w, *report.Refresh)
	}
	return nil
}
