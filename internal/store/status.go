package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/huangsam/cipette/schema"
)

var statusTables = []string{
	repositoriesTable, workflowsTable, runsTable,
	branchesTable, eventsTable, actorsTable,
	mttrCacheTable, healthCacheTable,
}

// Status reports connectivity, schema version, row counts and freshness of the store.
func (s *Store) Status(ctx context.Context) (schema.StoreStatus, error) {
	status := schema.StoreStatus{
		Backend:     string(s.backend),
		TableCounts: make(map[string]int64, len(statusTables)),
	}
	if err := s.checkOpen(); err != nil {
		return status, err
	}
	if err := s.db.PingContext(ctx); err != nil {
		return status, fmt.Errorf("failed to ping %s store: %w", s.backend, err)
	}
	status.Connected = true

	version, dirty, err := schemaVersion(ctx, s.db)
	if err != nil {
		return status, err
	}
	status.SchemaVersion = version
	status.Dirty = dirty

	for _, table := range statusTables {
		var count int64
		if err := s.queryRow(ctx, s.db, "count "+table, "SELECT COUNT(*) FROM "+table, nil, &count); err != nil {
			return status, fmt.Errorf("failed to count %s: %w", table, err)
		}
		status.TableCounts[table] = count
	}

	var lastRun, lastMTTR, lastHealth sql.NullInt64
	if err := s.queryRow(ctx, s.db, "last ingest", "SELECT MAX(ingested_at) FROM runs", nil, &lastRun); err != nil {
		return status, fmt.Errorf("failed to read last ingest time: %w", err)
	}
	if err := s.queryRow(ctx, s.db, "last mttr refresh", "SELECT MAX(calculated_at) FROM mttr_cache", nil, &lastMTTR); err != nil {
		return status, fmt.Errorf("failed to read last refresh time: %w", err)
	}
	if err := s.queryRow(ctx, s.db, "last health refresh", "SELECT MAX(calculated_at) FROM health_score_cache", nil, &lastHealth); err != nil {
		return status, fmt.Errorf("failed to read last refresh time: %w", err)
	}

	status.LastRunTime = fromEpoch(lastRun)
	if lastHealth.Valid && (!lastMTTR.Valid || lastHealth.Int64 > lastMTTR.Int64) {
		status.LastRefreshTime = fromEpoch(lastHealth)
	} else {
		status.LastRefreshTime = fromEpoch(lastMTTR)
	}
	return status, nil
}
