package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/huangsam/cipette/schema"
)

var (
	mttrCacheColumns   = []string{"mttr_seconds", "failure_count", "calculated_at"}
	healthCacheColumns = []string{
		"overall_score", "health_class", "data_quality",
		"success_rate_score", "mttr_score", "duration_score", "throughput_score",
		"sample_size", "calculated_at",
	}
)

// ListWorkflowIDs returns the ids of every known workflow, sorted.
func (s *Store) ListWorkflowIDs(ctx context.Context) ([]string, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	return s.queryStrings(ctx, "list workflows", "SELECT id FROM workflows ORDER BY id")
}

// WorkflowStats collects run counts and mean duration for completed runs started at or after since.
func (s *Store) WorkflowStats(ctx context.Context, workflowID string, since time.Time) (schema.WorkflowStats, error) {
	stats := schema.WorkflowStats{WorkflowID: workflowID}
	if err := s.checkOpen(); err != nil {
		return stats, err
	}

	const query = `SELECT
	COUNT(r.id),
	COALESCE(SUM(CASE WHEN r.conclusion = 'success' THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN r.conclusion = 'failure' THEN 1 ELSE 0 END), 0),
	AVG(r.duration_seconds)
FROM runs r
WHERE r.workflow_id = ? AND r.status = 'completed' AND r.started_at >= ?`

	var total, success, failure int64
	var avg sql.NullFloat64
	err := s.queryRow(ctx, s.db, "workflow stats", query, []any{workflowID, since.Unix()},
		&total, &success, &failure, &avg)
	if err != nil {
		return stats, fmt.Errorf("failed to collect stats for workflow %s: %w", workflowID, err)
	}

	stats.TotalRuns = int(total)
	stats.SuccessCount = int(success)
	stats.FailureCount = int(failure)
	stats.AvgDurationSeconds = schema.RoundPtr(floatPtr(avg), 2)
	return stats, nil
}

// ReplaceMTTRCache writes the MTTR cache row for a workflow.
func (s *Store) ReplaceMTTRCache(ctx context.Context, rec schema.MTTRCacheRecord) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	query := upsertQuery(s.backend, mttrCacheTable, "workflow_id", mttrCacheColumns)
	_, err := s.exec(ctx, s.db, "replace mttr cache", query,
		rec.WorkflowID, nullFloat64(rec.MTTRSeconds), rec.FailureCount, rec.CalculatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to cache MTTR for workflow %s: %w", rec.WorkflowID, err)
	}
	return nil
}

// DeleteMTTRCache drops the MTTR cache row for a workflow.
func (s *Store) DeleteMTTRCache(ctx context.Context, workflowID string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	_, err := s.exec(ctx, s.db, "delete mttr cache", "DELETE FROM mttr_cache WHERE workflow_id = ?", workflowID)
	if err != nil {
		return fmt.Errorf("failed to delete MTTR cache for workflow %s: %w", workflowID, err)
	}
	return nil
}

// ReplaceHealthCache writes the health score cache row for a workflow.
func (s *Store) ReplaceHealthCache(ctx context.Context, rec schema.HealthScoreCacheRecord) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	query := upsertQuery(s.backend, healthCacheTable, "workflow_id", healthCacheColumns)
	_, err := s.exec(ctx, s.db, "replace health cache", query,
		rec.WorkflowID, rec.OverallScore, string(rec.HealthClass), string(rec.DataQuality),
		rec.Breakdown.SuccessRate, rec.Breakdown.MTTR, rec.Breakdown.Duration, rec.Breakdown.Throughput,
		rec.SampleSize, rec.CalculatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to cache health score for workflow %s: %w", rec.WorkflowID, err)
	}
	return nil
}

// ClearCaches removes every row from the derived cache tables.
func (s *Store) ClearCaches(ctx context.Context) error {
	return s.inTx(ctx, func(tx *Tx) error {
		for _, table := range []string{mttrCacheTable, healthCacheTable} {
			if _, err := s.exec(ctx, tx.tx, "clear "+table, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}
		return nil
	})
}

// queryStrings runs a single-column query and collects the values.
func (s *Store) queryStrings(ctx context.Context, op, query string, args ...any) ([]string, error) {
	var values []string
	err := s.retry.Do(ctx, op, func() error {
		values = nil
		rows, err := s.db.QueryContext(ctx, rebind(s.backend, query), args...)
		if err != nil {
			return err
		}
		defer func() { _ = rows.Close() }()
		for rows.Next() {
			var v string
			if err := rows.Scan(&v); err != nil {
				return err
			}
			values = append(values, v)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	return values, nil
}
