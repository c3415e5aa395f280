package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/huangsam/cipette/internal/contract"
	"github.com/huangsam/cipette/schema"
)

const aggregateColumns = `repo.name, w.id, w.name,
	COUNT(r.id),
	SUM(CASE WHEN r.conclusion = 'success' THEN 1 ELSE 0 END),
	SUM(CASE WHEN r.conclusion = 'failure' THEN 1 ELSE 0 END),
	AVG(r.duration_seconds),
	MIN(r.started_at),
	MAX(r.started_at)`

// Each workflow has at most one row per cache table, so MAX just lifts it through GROUP BY.
const cachedColumns = `MAX(mc.mttr_seconds),
	MAX(hc.workflow_id),
	MAX(hc.overall_score),
	MAX(hc.health_class),
	MAX(hc.data_quality),
	MAX(hc.success_rate_score),
	MAX(hc.mttr_score),
	MAX(hc.duration_score),
	MAX(hc.throughput_score),
	MAX(hc.sample_size),
	MAX(hc.calculated_at)`

// MetricsStatement is a built aggregation query.
type MetricsStatement struct {
	Query    string
	Args     []any
	Windowed bool // MTTR computed inline, no cache columns
}

// BuildMetricsQuery builds the per-workflow aggregation for q.
// Only completed runs are aggregated; queued and in-progress runs are invisible here.
// With a day window the MTTR is computed inline for failures completed inside
// the window; without one the MTTR and health score come from the cache tables.
func BuildMetricsQuery(backend schema.DatabaseBackend, q schema.MetricsQuery, now time.Time) (MetricsStatement, error) {
	if err := contract.ValidateDays(q.Days); err != nil {
		return MetricsStatement{}, err
	}

	var conditions []string
	var args []any
	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(aggregateColumns)

	days, windowed := q.Days.Get()
	if windowed {
		cutoff := now.Add(-time.Duration(days) * 24 * time.Hour).Unix()
		fmt.Fprintf(&b, `,
	(SELECT AVG(%s - f.completed_at) FROM runs f
		WHERE f.workflow_id = w.id AND %s AND f.completed_at >= ?)`, nextSuccessExpr, failureAnchorPredicate)
		args = append(args, cutoff)
		conditions = append(conditions, "r.started_at >= ?")
		args = append(args, cutoff)
	} else {
		b.WriteString(",\n\t")
		b.WriteString(cachedColumns)
	}

	b.WriteString(`
FROM workflows w
JOIN repositories repo ON repo.id = w.repository_id
JOIN runs r ON r.workflow_id = w.id AND r.status = 'completed'`)
	if !windowed {
		b.WriteString(`
LEFT JOIN mttr_cache mc ON mc.workflow_id = w.id
LEFT JOIN health_score_cache hc ON hc.workflow_id = w.id`)
	}

	if repo, ok := q.Repository.Get(); ok {
		conditions = append(conditions, "repo.name = ?")
		args = append(args, repo)
	}
	if len(conditions) > 0 {
		b.WriteString("\nWHERE ")
		b.WriteString(strings.Join(conditions, " AND "))
	}
	b.WriteString("\nGROUP BY repo.name, w.id, w.name\nORDER BY repo.name, w.name, w.id")

	return MetricsStatement{Query: rebind(backend, b.String()), Args: args, Windowed: windowed}, nil
}

// QueryMetrics aggregates runs per (repository, workflow).
func (s *Store) QueryMetrics(ctx context.Context, q schema.MetricsQuery, now time.Time) ([]schema.MetricsAggregate, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	stmt, err := BuildMetricsQuery(s.backend, q, now)
	if err != nil {
		return nil, err
	}

	var results []schema.MetricsAggregate
	err = s.retry.Do(ctx, "query metrics", func() error {
		results = nil
		rows, err := s.db.QueryContext(ctx, stmt.Query, stmt.Args...)
		if err != nil {
			return err
		}
		defer func() { _ = rows.Close() }()

		for rows.Next() {
			agg, err := scanAggregate(rows, stmt.Windowed)
			if err != nil {
				return err
			}
			results = append(results, agg)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query metrics: %w", err)
	}
	return results, nil
}

func scanAggregate(rows *sql.Rows, windowed bool) (schema.MetricsAggregate, error) {
	var agg schema.MetricsAggregate
	var total, success, failure int64
	var avgDuration, mttr sql.NullFloat64
	var firstRun, lastRun sql.NullInt64

	dest := []any{
		&agg.Repository, &agg.WorkflowID, &agg.WorkflowName,
		&total, &success, &failure, &avgDuration, &firstRun, &lastRun, &mttr,
	}

	var healthID, healthClass, dataQuality sql.NullString
	var overall, srScore, mttrScore, durScore, tpScore sql.NullFloat64
	var sampleSize, calculatedAt sql.NullInt64
	if !windowed {
		dest = append(dest, &healthID, &overall, &healthClass, &dataQuality,
			&srScore, &mttrScore, &durScore, &tpScore, &sampleSize, &calculatedAt)
	}

	if err := rows.Scan(dest...); err != nil {
		return agg, fmt.Errorf("failed to scan metrics row: %w", err)
	}

	agg.TotalRuns = int(total)
	agg.SuccessCount = int(success)
	agg.FailureCount = int(failure)
	agg.AvgDurationSeconds = schema.RoundPtr(floatPtr(avgDuration), 2)
	agg.FirstRun = fromEpoch(firstRun)
	agg.LastRun = fromEpoch(lastRun)
	agg.MTTRSeconds = schema.RoundPtr(floatPtr(mttr), 2)

	if healthID.Valid {
		agg.Health = &schema.HealthScoreCacheRecord{
			WorkflowID:   healthID.String,
			OverallScore: overall.Float64,
			HealthClass:  schema.HealthClass(healthClass.String),
			DataQuality:  schema.DataQuality(dataQuality.String),
			Breakdown: schema.HealthBreakdown{
				SuccessRate: srScore.Float64,
				MTTR:        mttrScore.Float64,
				Duration:    durScore.Float64,
				Throughput:  tpScore.Float64,
			},
			SampleSize: int(sampleSize.Int64),
		}
		if t := fromEpoch(calculatedAt); t != nil {
			agg.Health.CalculatedAt = *t
		}
	}
	return agg, nil
}
