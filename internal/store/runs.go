package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/huangsam/cipette/internal/contract"
	"github.com/huangsam/cipette/schema"
)

const runViewColumns = `r.id, r.workflow_id, r.run_number, r.commit_sha, b.name, e.name, a.login,
	r.status, r.conclusion, r.started_at, r.completed_at, r.duration_seconds, r.url,
	repo.name, w.name`

// ListRepositories returns all known repository names, sorted.
func (s *Store) ListRepositories(ctx context.Context) ([]string, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	return s.queryStrings(ctx, "list repositories", "SELECT name FROM repositories ORDER BY name")
}

// buildRunsQuery turns a run filter into a query, newest runs first.
func buildRunsQuery(backend schema.DatabaseBackend, f schema.RunFilter) (string, []any) {
	var conditions []string
	var args []any

	if repo, ok := f.Repository.Get(); ok {
		conditions = append(conditions, "repo.name = ?")
		args = append(args, repo)
	}
	if id, ok := f.WorkflowID.Get(); ok {
		conditions = append(conditions, "r.workflow_id = ?")
		args = append(args, id)
	}
	if status, ok := f.Status.Get(); ok {
		conditions = append(conditions, "r.status = ?")
		args = append(args, string(status))
	}
	if f.Conclusion.IsNone() {
		conditions = append(conditions, "r.conclusion IS NULL")
	} else if c, ok := f.Conclusion.Get(); ok {
		conditions = append(conditions, "r.conclusion = ?")
		args = append(args, string(c))
	}

	limit := f.Limit
	if limit <= 0 {
		limit = contract.DefaultRunLimit
	}
	limit = min(limit, contract.MaxRunLimit)

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(runViewColumns)
	b.WriteString(`
FROM runs r
JOIN workflows w ON w.id = r.workflow_id
JOIN repositories repo ON repo.id = w.repository_id
LEFT JOIN branches b ON b.id = r.branch_id
LEFT JOIN events e ON e.id = r.event_id
LEFT JOIN actors a ON a.id = r.actor_id`)
	if len(conditions) > 0 {
		b.WriteString("\nWHERE ")
		b.WriteString(strings.Join(conditions, " AND "))
	}
	b.WriteString("\nORDER BY r.started_at DESC, r.id DESC\nLIMIT ?")
	args = append(args, limit)

	return rebind(backend, b.String()), args
}

// ListRuns returns runs matching f, newest first.
func (s *Store) ListRuns(ctx context.Context, f schema.RunFilter) ([]schema.RunView, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	query, args := buildRunsQuery(s.backend, f)

	var runs []schema.RunView
	err := s.retry.Do(ctx, "list runs", func() error {
		runs = nil
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer func() { _ = rows.Close() }()
		for rows.Next() {
			run, err := scanRunView(rows)
			if err != nil {
				return err
			}
			runs = append(runs, run)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

func scanRunView(rows *sql.Rows) (schema.RunView, error) {
	var v schema.RunView
	var commit, branch, event, actor, conclusion, url sql.NullString
	var startedAt, completedAt, duration sql.NullInt64
	var status string

	err := rows.Scan(&v.ID, &v.WorkflowID, &v.RunNumber, &commit, &branch, &event, &actor,
		&status, &conclusion, &startedAt, &completedAt, &duration, &url,
		&v.Repository, &v.WorkflowName)
	if err != nil {
		return v, fmt.Errorf("failed to scan run: %w", err)
	}

	v.CommitSHA = commit.String
	v.Branch = branch.String
	v.Event = event.String
	v.Actor = actor.String
	v.Status = schema.RunStatus(status)
	if conclusion.Valid {
		v.Conclusion = schema.ConclusionPtr(schema.Conclusion(conclusion.String))
	}
	v.StartedAt = fromEpoch(startedAt)
	v.CompletedAt = fromEpoch(completedAt)
	if duration.Valid {
		v.DurationSeconds = schema.Int64Ptr(duration.Int64)
	}
	v.URL = url.String
	return v, nil
}
