package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/huangsam/cipette/internal/contract"
	"github.com/huangsam/cipette/schema"
)

var (
	workflowColumns = []string{"repository_id", "name", "path", "state", "updated_at"}
	runColumns      = []string{
		"workflow_id", "run_number", "commit_sha", "branch_id", "event_id", "actor_id",
		"status", "conclusion", "started_at", "completed_at", "duration_seconds", "url", "ingested_at",
	}
)

// Tx is an ingestion handle bound to a caller-scoped transaction.
type Tx struct {
	tx    querier
	store *Store
}

var _ contract.IngestWriter = &Tx{} // Compile-time check

// UpsertWorkflow creates or updates a workflow inside the transaction.
func (t *Tx) UpsertWorkflow(ctx context.Context, w schema.WorkflowRecord) error {
	return t.store.upsertWorkflow(ctx, t.tx, w)
}

// UpsertRunsBatch creates or updates runs inside the transaction.
func (t *Tx) UpsertRunsBatch(ctx context.Context, runs []schema.RunRecord) (schema.IngestResult, error) {
	return t.store.upsertRunsBatch(ctx, t.tx, runs)
}

// UpsertWorkflow creates or updates a workflow in its own transaction.
func (s *Store) UpsertWorkflow(ctx context.Context, w schema.WorkflowRecord) error {
	return s.inTx(ctx, func(tx *Tx) error {
		return tx.UpsertWorkflow(ctx, w)
	})
}

// UpsertRunsBatch creates or updates runs in its own transaction.
func (s *Store) UpsertRunsBatch(ctx context.Context, runs []schema.RunRecord) (schema.IngestResult, error) {
	var result schema.IngestResult
	err := s.inTx(ctx, func(tx *Tx) error {
		var batchErr error
		result, batchErr = tx.UpsertRunsBatch(ctx, runs)
		return batchErr
	})
	if err != nil {
		return schema.IngestResult{}, err
	}
	return result, nil
}

func (s *Store) upsertWorkflow(ctx context.Context, q querier, w schema.WorkflowRecord) error {
	if err := w.Validate(); err != nil {
		return err
	}

	repoID, err := s.ensureRef(ctx, q, repositoriesTable, "name", w.Repository)
	if err != nil {
		return err
	}

	query := upsertQuery(s.backend, workflowsTable, "id", workflowColumns)
	_, err = s.exec(ctx, q, "upsert workflow", query,
		w.ID, repoID, w.Name, nullString(w.Path), nullString(string(w.State)), s.clock.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert workflow %s: %w", w.ID, err)
	}
	return nil
}

func (s *Store) upsertRunsBatch(ctx context.Context, q querier, runs []schema.RunRecord) (schema.IngestResult, error) {
	var result schema.IngestResult
	if len(runs) == 0 {
		return result, nil
	}

	refs := newRefResolver(s, q)
	query := upsertQuery(s.backend, runsTable, "id", runColumns)
	now := s.clock.Now().Unix()

	for _, r := range runs {
		r = r.WithDerivedDuration()
		if err := r.Validate(); err != nil {
			s.logger.Warn("skipping malformed run", slog.String("run_id", r.ID), slog.String("error", err.Error()))
			result.Skipped++
			continue
		}

		branchID, err := refs.resolve(ctx, branchesTable, "name", r.Branch)
		if err != nil {
			return result, err
		}
		eventID, err := refs.resolve(ctx, eventsTable, "name", r.Event)
		if err != nil {
			return result, err
		}
		actorID, err := refs.resolve(ctx, actorsTable, "login", r.Actor)
		if err != nil {
			return result, err
		}

		var conclusion any
		if r.Conclusion != nil {
			conclusion = string(*r.Conclusion)
		}

		_, err = s.exec(ctx, q, "upsert run", query,
			r.ID, r.WorkflowID, r.RunNumber, nullString(r.CommitSHA), branchID, eventID, actorID,
			string(r.Status), conclusion, toEpoch(r.StartedAt), toEpoch(r.CompletedAt),
			nullInt64(r.DurationSeconds), nullString(r.URL), now)
		if err != nil {
			return result, fmt.Errorf("failed to upsert run %s: %w", r.ID, err)
		}
		result.Upserted++
	}
	return result, nil
}

// ensureRef inserts value into a reference table if missing and returns its id.
func (s *Store) ensureRef(ctx context.Context, q querier, table, column, value string) (int64, error) {
	if _, err := s.exec(ctx, q, "insert "+table, insertIgnoreQuery(s.backend, table, column), value); err != nil {
		return 0, fmt.Errorf("failed to insert into %s: %w", table, err)
	}
	var id int64
	lookup := fmt.Sprintf("SELECT id FROM %s WHERE %s = ?", table, column)
	if err := s.queryRow(ctx, q, "lookup "+table, lookup, []any{value}, &id); err != nil {
		return 0, fmt.Errorf("failed to look up %s %q: %w", table, value, err)
	}
	return id, nil
}

// refResolver memoizes reference ids within one batch.
type refResolver struct {
	store *Store
	q     querier
	seen  map[string]int64
}

func newRefResolver(s *Store, q querier) *refResolver {
	return &refResolver{store: s, q: q, seen: make(map[string]int64)}
}

// resolve returns the id for value, or nil when value is empty.
func (r *refResolver) resolve(ctx context.Context, table, column, value string) (any, error) {
	if value == "" {
		return nil, nil
	}
	key := table + "\x00" + value
	if id, ok := r.seen[key]; ok {
		return id, nil
	}
	id, err := r.store.ensureRef(ctx, r.q, table, column, value)
	if err != nil {
		return nil, err
	}
	r.seen[key] = id
	return id, nil
}
