package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/huangsam/cipette/schema"
)

// nextSuccessExpr finds the nearest success completed strictly after failure f
// on the same workflow. Intervening failures do not reset the pairing.
const nextSuccessExpr = `(SELECT MIN(s.completed_at) FROM runs s
	WHERE s.workflow_id = f.workflow_id
	AND s.status = 'completed' AND s.conclusion = 'success'
	AND s.completed_at > f.completed_at)`

// failureAnchorPredicate selects completed failures usable as MTTR anchors.
const failureAnchorPredicate = `f.status = 'completed' AND f.conclusion = 'failure' AND f.completed_at IS NOT NULL`

// buildMTTRQuery returns the mean and count of recovery delays over the filtered failures.
// Failures with no later success produce NULL and drop out of both aggregates.
func buildMTTRQuery(backend schema.DatabaseBackend, f schema.MTTRFilter) (string, []any) {
	conditions := []string{failureAnchorPredicate}
	var args []any

	if f.WorkflowID != "" {
		conditions = append(conditions, "f.workflow_id = ?")
		args = append(args, f.WorkflowID)
	}
	if f.Repository != "" {
		conditions = append(conditions, "repo.name = ?")
		args = append(args, f.Repository)
	}
	if f.Since != nil {
		conditions = append(conditions, "f.completed_at >= ?")
		args = append(args, f.Since.Unix())
	}

	query := fmt.Sprintf(`SELECT AVG(recovery), COUNT(recovery) FROM (
	SELECT %s - f.completed_at AS recovery
	FROM runs f
	JOIN workflows w ON w.id = f.workflow_id
	JOIN repositories repo ON repo.id = w.repository_id
	WHERE %s
) recoveries`, nextSuccessExpr, strings.Join(conditions, " AND "))

	return rebind(backend, query), args
}

// MTTR computes the mean time to recovery in seconds, rounded to 2 decimals.
// Seconds is nil when no failure in scope has a later success.
func (s *Store) MTTR(ctx context.Context, f schema.MTTRFilter) (schema.MTTRStat, error) {
	if err := s.checkOpen(); err != nil {
		return schema.MTTRStat{}, err
	}

	query, args := buildMTTRQuery(s.backend, f)
	var avg sql.NullFloat64
	var samples int64
	err := s.retry.Do(ctx, "mttr", func() error {
		return s.db.QueryRowContext(ctx, query, args...).Scan(&avg, &samples)
	})
	if err != nil {
		return schema.MTTRStat{}, fmt.Errorf("failed to calculate MTTR: %w", err)
	}

	stat := schema.MTTRStat{Samples: int(samples)}
	if samples > 0 && avg.Valid {
		v := schema.Round(avg.Float64, 2)
		stat.Seconds = &v
	}
	return stat, nil
}
