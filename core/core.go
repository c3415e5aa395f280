// Package core has core logic for reliability metrics, health scoring and cache refresh.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/huangsam/cipette/internal/contract"
	"github.com/huangsam/cipette/internal/loader"
	"github.com/huangsam/cipette/internal/outwriter"
	"github.com/huangsam/cipette/internal/parquet"
	"github.com/huangsam/cipette/schema"
)

// ExecutorFunc defines the function signature for executing the CLI commands.
type ExecutorFunc func(ctx context.Context, cfg *contract.Config, store contract.RunStore) error

// Export file names written by ExecuteExport.
const (
	MetricsExportFile = "metrics.parquet"
	RunsExportFile    = "runs.parquet"
)

var ow = outwriter.NewOutWriter()

func metricsOptions(cfg *contract.Config) MetricsOptions {
	return MetricsOptions{
		CacheTTL:      cfg.CacheTTL,
		CacheCapacity: cfg.CacheCapacity,
		Health:        &cfg.Health,
		Logger:        slog.Default(),
	}
}

func refreshOptions(cfg *contract.Config) RefreshOptions {
	return RefreshOptions{
		Interval:     cfg.RefreshInterval,
		InitialDelay: cfg.RefreshInitialDelay,
		WindowDays:   cfg.HealthWindowDays,
		Health:       &cfg.Health,
		Logger:       slog.Default(),
	}
}

// GetMetricsResults runs one metrics query for the filters in cfg.
func GetMetricsResults(ctx context.Context, cfg *contract.Config, store contract.RunStore) ([]schema.MetricRow, error) {
	return NewMetricsService(store, metricsOptions(cfg)).GetMetrics(ctx, cfg.MetricsQuery())
}

// ExecuteMetrics prints per-workflow reliability metrics, or per-repository
// rollups when cfg.Summary is set.
// It serves as the main entry point for the 'metrics' command.
func ExecuteMetrics(ctx context.Context, cfg *contract.Config, store contract.RunStore) error {
	start := time.Now()
	if cfg.Summary {
		summaries, err := NewMetricsService(store, metricsOptions(cfg)).Summarize(ctx, cfg.MetricsQuery())
		if err != nil {
			return err
		}
		return ow.WriteSummaries(summaries, cfg, time.Since(start))
	}
	rows, err := GetMetricsResults(ctx, cfg, store)
	if err != nil {
		return err
	}
	return ow.WriteMetrics(rows, cfg, time.Since(start))
}

// ExecuteRuns prints stored runs, newest first.
func ExecuteRuns(ctx context.Context, cfg *contract.Config, store contract.RunStore) error {
	runs, err := store.ListRuns(ctx, cfg.RunFilter())
	if err != nil {
		return err
	}
	return ow.WriteRuns(runs, cfg)
}

// ExecuteRepositories prints every known repository.
func ExecuteRepositories(ctx context.Context, cfg *contract.Config, store contract.RunStore) error {
	repos, err := store.ListRepositories(ctx)
	if err != nil {
		return err
	}
	return ow.WriteRepositories(repos, cfg)
}

// ExecuteStatus prints store status.
func ExecuteStatus(ctx context.Context, cfg *contract.Config, store contract.RunStore) error {
	status, err := store.Status(ctx)
	if err != nil {
		return err
	}
	return ow.WriteStatus(status, cfg)
}

// ExecuteRefresh runs one MTTR and health cache refresh pass.
func ExecuteRefresh(ctx context.Context, cfg *contract.Config, store contract.RunStore) error {
	report, err := NewRefreshTask(store, refreshOptions(cfg)).RunOnce(ctx)
	if err != nil {
		return err
	}
	return ow.WriteRefresh(report, cfg)
}

// ExecuteWorker keeps the caches fresh until ctx is cancelled.
func ExecuteWorker(ctx context.Context, cfg *contract.Config, store contract.RunStore) error {
	task := NewRefreshTask(store, refreshOptions(cfg))
	if err := task.Start(ctx); err != nil {
		return err
	}
	done := task.Done()
	select {
	case <-ctx.Done():
		task.Stop()
	case <-done:
	}
	return nil
}

// ExecuteIngest returns an executor that loads the snapshot files at paths
// and writes them to the store.
func ExecuteIngest(paths []string) ExecutorFunc {
	return func(ctx context.Context, cfg *contract.Config, store contract.RunStore) error {
		snapshots, err := loader.LoadFiles(ctx, paths)
		if err != nil {
			return err
		}
		refresher := NewRefreshTask(store, refreshOptions(cfg))
		report, err := NewCollector(store, refresher, slog.Default()).Collect(ctx, snapshots)
		if err != nil {
			return err
		}
		if err := ow.WriteCollect(report, cfg); err != nil {
			return err
		}
		if len(report.FailedRepositories) > 0 {
			return fmt.Errorf("%d of %d repositories failed to ingest", len(report.FailedRepositories), len(snapshots))
		}
		return nil
	}
}

// ExecuteExport returns an executor that writes the metric rows and the
// matching runs as Parquet files into dir.
func ExecuteExport(dir string) ExecutorFunc {
	return func(ctx context.Context, cfg *contract.Config, store contract.RunStore) error {
		rows, err := GetMetricsResults(ctx, cfg, store)
		if err != nil {
			return err
		}
		runs, err := store.ListRuns(ctx, cfg.RunFilter())
		if err != nil {
			return err
		}

		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create export directory: %w", err)
		}
		metricsPath := filepath.Join(dir, MetricsExportFile)
		if err := parquet.WriteMetricsParquet(parquet.ConvertMetricRows(rows, time.Now()), metricsPath); err != nil {
			return err
		}
		runsPath := filepath.Join(dir, RunsExportFile)
		if err := parquet.WriteRunsParquet(parquet.ConvertRunViews(runs), runsPath); err != nil {
			return err
		}
		slog.Default().Info("export complete",
			slog.String("metrics_file", metricsPath),
			slog.Int("metrics_rows", len(rows)),
			slog.String("runs_file", runsPath),
			slog.Int("runs", len(runs)))
		return nil
	}
}

// ExecuteHealthModel prints how health scores are computed.
// No store access is needed, so store may be nil.
func ExecuteHealthModel(_ context.Context, cfg *contract.Config, _ contract.RunStore) error {
	return ow.WriteHealthModel(cfg.Health, cfg)
}
