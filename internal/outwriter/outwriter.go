package outwriter

import (
	"errors"
	"io"
	"time"

	"github.com/huangsam/cipette/internal/contract"
	"github.com/huangsam/cipette/internal/parquet"
	"github.com/huangsam/cipette/schema"
)

// ErrParquetNeedsFile is returned when Parquet output is requested without an output file.
var ErrParquetNeedsFile = errors.New("parquet output requires --output-file")

// OutWriter provides a unified interface for all output operations.
// It encapsulates the various output formats and provides a clean API for the core logic.
type OutWriter struct{}

// NewOutWriter creates a new instance of the output writer.
func NewOutWriter() *OutWriter {
	return &OutWriter{}
}

// WriteMetrics prints per-workflow metrics using the configured output format.
func (ow *OutWriter) WriteMetrics(rows []schema.MetricRow, cfg *contract.Config, duration time.Duration) error {
	return WriteMetricRows(rows, cfg, duration)
}

// WriteSummaries prints per-repository rollups using the configured output format.
func (ow *OutWriter) WriteSummaries(summaries []schema.RepositorySummary, cfg *contract.Config, duration time.Duration) error {
	return WriteRepositorySummaries(summaries, cfg, duration)
}

// WriteRuns prints a run listing using the configured output format.
func (ow *OutWriter) WriteRuns(runs []schema.RunView, cfg *contract.Config) error {
	return WriteRuns(runs, cfg)
}

// WriteRepositories prints repository names using the configured output format.
func (ow *OutWriter) WriteRepositories(repos []string, cfg *contract.Config) error {
	return WriteRepositories(repos, cfg)
}

// WriteStatus prints store status using the configured output format.
func (ow *OutWriter) WriteStatus(status schema.StoreStatus, cfg *contract.Config) error {
	return WriteStatus(status, cfg)
}

// WriteRefresh prints a refresh report using the configured output format.
func (ow *OutWriter) WriteRefresh(report schema.RefreshReport, cfg *contract.Config) error {
	return WriteRefreshReport(report, cfg)
}

// WriteCollect prints an ingest report using the configured output format.
func (ow *OutWriter) WriteCollect(report schema.CollectReport, cfg *contract.Config) error {
	return WriteCollectReport(report, cfg)
}

// WriteHealthModel prints the health score definition using the configured output format.
func (ow *OutWriter) WriteHealthModel(health contract.HealthConfig, cfg *contract.Config) error {
	return WriteHealthModel(health, cfg)
}

// writeParquetFile writes rows to outputFile. Parquet is binary, so stdout is refused.
func writeParquetFile[T any](outputFile string, rows []T) error {
	if outputFile == "" {
		return ErrParquetNeedsFile
	}
	return writeWithFile(outputFile, func(w io.Writer) error {
		return parquet.WriteRows(w, rows)
	}, "Wrote Parquet")
}
