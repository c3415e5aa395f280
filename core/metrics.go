package core

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/huangsam/cipette/internal/contract"
	"github.com/huangsam/cipette/schema"
)

// healthNotCalculated is attached to all-time rows with no health cache entry yet.
const healthNotCalculated = "Health score not yet calculated"

// noDecidedRuns marks a zero success rate that means no data rather than 0%.
const noDecidedRuns = "No successful or failed runs - success rate reported as 0"

// MetricsService answers per-workflow reliability questions with bounded latency.
type MetricsService struct {
	reader contract.MetricsReader
	calc   *HealthCalculator
	memo   *MemoCache[[]schema.MetricRow]
	clock  contract.Clock
	logger *slog.Logger
}

// MetricsOptions tunes a MetricsService. Zero values fall back to defaults.
type MetricsOptions struct {
	CacheTTL      time.Duration
	CacheCapacity int
	Health        *contract.HealthConfig
	Clock         contract.Clock
	Logger        *slog.Logger
}

// NewMetricsService builds a service reading from reader.
func NewMetricsService(reader contract.MetricsReader, opts MetricsOptions) *MetricsService {
	if opts.CacheTTL == 0 {
		opts.CacheTTL = contract.DefaultCacheTTL
	}
	if opts.CacheCapacity == 0 {
		opts.CacheCapacity = contract.DefaultCacheCapacity
	}
	if opts.Clock == nil {
		opts.Clock = contract.SystemClock
	}
	if opts.Logger == nil {
		opts.Logger = contract.NopLogger()
	}
	health := contract.DefaultHealthConfig()
	if opts.Health != nil {
		health = *opts.Health
	}

	return &MetricsService{
		reader: reader,
		calc:   NewHealthCalculator(health, opts.Logger),
		memo:   NewMemoCache[[]schema.MetricRow](opts.CacheTTL, opts.CacheCapacity, opts.Clock),
		clock:  opts.Clock,
		logger: opts.Logger.With(slog.String("component", "metrics")),
	}
}

// GetMetrics returns one row per (repository, workflow) matching q.
// Results are memoized per query for the current cache TTL bucket, so data
// written inside a bucket shows up once the bucket rolls over.
func (s *MetricsService) GetMetrics(ctx context.Context, q schema.MetricsQuery) ([]schema.MetricRow, error) {
	if err := contract.ValidateDays(q.Days); err != nil {
		return nil, err
	}

	rows, hit, err := s.memo.GetOrCompute(ctx, q.Key(), func(ctx context.Context) ([]schema.MetricRow, error) {
		return s.compute(ctx, q)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("metrics served",
		slog.String("repository", q.Repository.String()),
		slog.String("days", q.Days.String()),
		slog.Bool("cached", hit),
		slog.Int("rows", len(rows)))
	return slices.Clone(rows), nil
}

// Invalidate drops every memoized result.
func (s *MetricsService) Invalidate() {
	s.memo.Purge()
}

func (s *MetricsService) compute(ctx context.Context, q schema.MetricsQuery) ([]schema.MetricRow, error) {
	aggs, err := s.reader.QueryMetrics(ctx, q, s.clock.Now())
	if err != nil {
		return nil, err
	}

	days, windowed := q.Days.Get()
	rows := make([]schema.MetricRow, 0, len(aggs))
	for _, agg := range aggs {
		row := newMetricRow(agg)
		if windowed {
			s.applyCalculatedHealth(&row, agg, days)
		} else {
			applyCachedHealth(&row, agg.Health)
		}
		if agg.SuccessCount+agg.FailureCount == 0 {
			row.Warnings = append(row.Warnings, noDecidedRuns)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func newMetricRow(agg schema.MetricsAggregate) schema.MetricRow {
	row := schema.MetricRow{
		Repository:         agg.Repository,
		WorkflowID:         agg.WorkflowID,
		WorkflowName:       agg.WorkflowName,
		TotalRuns:          agg.TotalRuns,
		SuccessCount:       agg.SuccessCount,
		FailureCount:       agg.FailureCount,
		AvgDurationSeconds: agg.AvgDurationSeconds,
		FirstRun:           agg.FirstRun,
		LastRun:            agg.LastRun,
		MTTRSeconds:        agg.MTTRSeconds,
	}
	if rate, ok := schema.SuccessRate(agg.SuccessCount, agg.FailureCount); ok {
		row.SuccessRate = rate
	}
	return row
}

// applyCalculatedHealth scores a windowed row at read time.
func (s *MetricsService) applyCalculatedHealth(row *schema.MetricRow, agg schema.MetricsAggregate, days int) {
	in := schema.HealthInput{
		MTTRSeconds:        agg.MTTRSeconds,
		AvgDurationSeconds: agg.AvgDurationSeconds,
		TotalRuns:          agg.TotalRuns,
		Days:               days,
	}
	if rate, ok := schema.SuccessRate(agg.SuccessCount, agg.FailureCount); ok {
		in.SuccessRate = &rate
	}

	res := s.calc.Calculate(in)
	row.HealthScore = res.OverallScore
	row.HealthClass = res.HealthClass
	row.DataQuality = res.DataQuality
	row.HealthBreakdown = res.Breakdown
	row.Warnings = res.Warnings
	row.Errors = res.Errors
}

// applyCachedHealth copies the refreshed health score onto an all-time row.
func applyCachedHealth(row *schema.MetricRow, cached *schema.HealthScoreCacheRecord) {
	if cached == nil {
		row.HealthClass = schema.HealthUnknown
		row.DataQuality = schema.QualityInsufficient
		row.Warnings = []string{healthNotCalculated}
		return
	}
	row.HealthScore = cached.OverallScore
	row.HealthClass = cached.HealthClass
	row.DataQuality = cached.DataQuality
	row.HealthBreakdown = cached.Breakdown
}
