package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/huangsam/cipette/internal/contract"
	"github.com/huangsam/cipette/schema"
)

// Refresher runs one cache refresh pass.
type Refresher interface {
	RunOnce(ctx context.Context) (schema.RefreshReport, error)
}

// Collector writes upstream snapshots into the store, one transaction per repository.
type Collector struct {
	store     contract.IngestStore
	refresher Refresher
	logger    *slog.Logger
}

// NewCollector returns a collector. refresher may be nil to skip the refresh pass.
func NewCollector(store contract.IngestStore, refresher Refresher, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = contract.NopLogger()
	}
	return &Collector{store: store, refresher: refresher, logger: logger.With(slog.String("component", "collector"))}
}

// Collect ingests every snapshot. A repository that fails is rolled back,
// logged and skipped while the rest continue. When anything was written the
// caches are refreshed once at the end.
func (c *Collector) Collect(ctx context.Context, snapshots []schema.Snapshot) (schema.CollectReport, error) {
	start := time.Now()
	var report schema.CollectReport

	for _, snap := range snapshots {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		log := c.logger.With(slog.String("repository", snap.Repository))

		runs, err := c.collectRepository(ctx, snap)
		if err != nil {
			report.FailedRepositories = append(report.FailedRepositories, snap.Repository)
			log.Error("repository ingest failed, skipping", slog.String("error", err.Error()))
			continue
		}
		report.Repositories++
		report.Workflows += len(snap.Workflows)
		report.Runs.Add(runs)
		log.Info("repository ingested",
			slog.Int("workflows", len(snap.Workflows)),
			slog.Int("runs", runs.Upserted),
			slog.Int("skipped", runs.Skipped))
	}

	if c.refresher != nil && report.Repositories > 0 {
		refresh, err := c.refresher.RunOnce(ctx)
		if err != nil {
			c.logger.Warn("post-ingest refresh failed", slog.String("error", err.Error()))
		} else {
			report.Refresh = &refresh
		}
	}

	report.Duration = time.Since(start)
	return report, nil
}

func (c *Collector) collectRepository(ctx context.Context, snap schema.Snapshot) (schema.IngestResult, error) {
	if snap.Repository == "" {
		return schema.IngestResult{}, fmt.Errorf("%w: snapshot has no repository", contract.ErrInvalidRecord)
	}

	var result schema.IngestResult
	err := c.store.InTx(ctx, func(w contract.IngestWriter) error {
		for _, wf := range snap.Workflows {
			if wf.Repository == "" {
				wf.Repository = snap.Repository
			}
			if err := w.UpsertWorkflow(ctx, wf); err != nil {
				return err
			}
		}
		var err error
		result, err = w.UpsertRunsBatch(ctx, snap.Runs)
		return err
	})
	result.Skipped += snap.Skipped
	return result, err
}
