package contract

import (
	"context"
	"time"

	"github.com/huangsam/cipette/schema"
	"github.com/stretchr/testify/mock"
)

// MockRunStore is a mock implementation of RunStore for testing.
type MockRunStore struct {
	mock.Mock
}

var _ RunStore = &MockRunStore{} // Compile-time check

// UpsertWorkflow implements the IngestWriter interface.
func (m *MockRunStore) UpsertWorkflow(ctx context.Context, w schema.WorkflowRecord) error {
	args := m.Called(ctx, w)
	return args.Error(0)
}

// UpsertRunsBatch implements the IngestWriter interface.
func (m *MockRunStore) UpsertRunsBatch(ctx context.Context, runs []schema.RunRecord) (schema.IngestResult, error) {
	args := m.Called(ctx, runs)
	return args.Get(0).(schema.IngestResult), args.Error(1)
}

// InTx implements the IngestStore interface. The mock itself acts as the
// transaction handle, so writes inside fn are recorded like any other call.
func (m *MockRunStore) InTx(ctx context.Context, fn func(IngestWriter) error) error {
	args := m.Called(ctx)
	if err := args.Error(0); err != nil {
		return err
	}
	return fn(m)
}

// QueryMetrics implements the MetricsReader interface.
func (m *MockRunStore) QueryMetrics(ctx context.Context, q schema.MetricsQuery, now time.Time) ([]schema.MetricsAggregate, error) {
	args := m.Called(ctx, q, now)
	rows, _ := args.Get(0).([]schema.MetricsAggregate)
	return rows, args.Error(1)
}

// MTTR implements the MetricsReader interface.
func (m *MockRunStore) MTTR(ctx context.Context, f schema.MTTRFilter) (schema.MTTRStat, error) {
	args := m.Called(ctx, f)
	return args.Get(0).(schema.MTTRStat), args.Error(1)
}

// ListWorkflowIDs implements the CacheRefresher interface.
func (m *MockRunStore) ListWorkflowIDs(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	ids, _ := args.Get(0).([]string)
	return ids, args.Error(1)
}

// WorkflowStats implements the CacheRefresher interface.
func (m *MockRunStore) WorkflowStats(ctx context.Context, workflowID string, since time.Time) (schema.WorkflowStats, error) {
	args := m.Called(ctx, workflowID, since)
	return args.Get(0).(schema.WorkflowStats), args.Error(1)
}

// ReplaceMTTRCache implements the CacheRefresher interface.
func (m *MockRunStore) ReplaceMTTRCache(ctx context.Context, rec schema.MTTRCacheRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

// DeleteMTTRCache implements the CacheRefresher interface.
func (m *MockRunStore) DeleteMTTRCache(ctx context.Context, workflowID string) error {
	args := m.Called(ctx, workflowID)
	return args.Error(0)
}

// ReplaceHealthCache implements the CacheRefresher interface.
func (m *MockRunStore) ReplaceHealthCache(ctx context.Context, rec schema.HealthScoreCacheRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

// ListRepositories implements the RunStore interface.
func (m *MockRunStore) ListRepositories(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	repos, _ := args.Get(0).([]string)
	return repos, args.Error(1)
}

// ListRuns implements the RunStore interface.
func (m *MockRunStore) ListRuns(ctx context.Context, f schema.RunFilter) ([]schema.RunView, error) {
	args := m.Called(ctx, f)
	runs, _ := args.Get(0).([]schema.RunView)
	return runs, args.Error(1)
}

// Status implements the RunStore interface.
func (m *MockRunStore) Status(ctx context.Context) (schema.StoreStatus, error) {
	args := m.Called(ctx)
	return args.Get(0).(schema.StoreStatus), args.Error(1)
}

// ClearCaches implements the RunStore interface.
func (m *MockRunStore) ClearCaches(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// Close implements the RunStore interface.
func (m *MockRunStore) Close() error {
	args := m.Called()
	return args.Error(0)
}
