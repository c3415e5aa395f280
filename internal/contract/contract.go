// Package contract provides interfaces and shared utilities for cipette's internal architecture.
package contract

import (
	"context"
	"time"

	"github.com/huangsam/cipette/schema"
)

// Clock supplies the current time. Tests inject a fake one.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now implements the Clock interface.
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock.
var SystemClock Clock = ClockFunc(time.Now)

// IngestWriter writes workflows and runs.
// A store writes each call in its own transaction while a transaction
// handle writes into the caller's scope.
type IngestWriter interface {
	// UpsertWorkflow creates or updates a workflow and its repository.
	UpsertWorkflow(ctx context.Context, w schema.WorkflowRecord) error

	// UpsertRunsBatch creates or updates runs, skipping malformed ones.
	UpsertRunsBatch(ctx context.Context, runs []schema.RunRecord) (schema.IngestResult, error)
}

// IngestStore is an IngestWriter that can also group writes atomically.
type IngestStore interface {
	IngestWriter

	// InTx runs fn in one transaction. It commits when fn returns nil
	// and rolls back otherwise.
	InTx(ctx context.Context, fn func(IngestWriter) error) error
}

// MetricsReader serves the per-workflow aggregation query.
type MetricsReader interface {
	// QueryMetrics aggregates runs per (repository, workflow). Windowed
	// queries compute MTTR inline, all-time queries join the cache tables.
	QueryMetrics(ctx context.Context, q schema.MetricsQuery, now time.Time) ([]schema.MetricsAggregate, error)

	// MTTR computes mean time to recovery over the filtered failures.
	MTTR(ctx context.Context, f schema.MTTRFilter) (schema.MTTRStat, error)
}

// CacheRefresher is what the background refresh needs from a store.
type CacheRefresher interface {
	ListWorkflowIDs(ctx context.Context) ([]string, error)
	MTTR(ctx context.Context, f schema.MTTRFilter) (schema.MTTRStat, error)
	WorkflowStats(ctx context.Context, workflowID string, since time.Time) (schema.WorkflowStats, error)
	ReplaceMTTRCache(ctx context.Context, rec schema.MTTRCacheRecord) error
	DeleteMTTRCache(ctx context.Context, workflowID string) error
	ReplaceHealthCache(ctx context.Context, rec schema.HealthScoreCacheRecord) error
}

// RunStore is the full persistence surface of cipette.
type RunStore interface {
	IngestStore
	MetricsReader
	CacheRefresher

	// ListRepositories returns all known repository names, sorted.
	ListRepositories(ctx context.Context) ([]string, error)

	// ListRuns returns runs newest first.
	ListRuns(ctx context.Context, f schema.RunFilter) ([]schema.RunView, error)

	// Status returns information about the store.
	Status(ctx context.Context) (schema.StoreStatus, error)

	// ClearCaches drops every derived cache row.
	ClearCaches(ctx context.Context) error

	// Close closes the underlying connection.
	Close() error
}
