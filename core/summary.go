package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/huangsam/cipette/schema"
	"golang.org/x/sync/errgroup"
)

// maxParallelSummaries bounds concurrent per-repository MTTR queries.
const maxParallelSummaries = 4

// Summarize rolls the rows of GetMetrics up to one line per repository.
// MTTR is recomputed over the repository's failures instead of averaging
// the per-workflow values.
func (s *MetricsService) Summarize(ctx context.Context, q schema.MetricsQuery) ([]schema.RepositorySummary, error) {
	rows, err := s.GetMetrics(ctx, q)
	if err != nil {
		return nil, err
	}
	summaries := summarizeRows(rows)

	var since *time.Time
	if days, ok := q.Days.Get(); ok {
		cutoff := s.clock.Now().Add(-time.Duration(days) * 24 * time.Hour)
		since = &cutoff
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelSummaries)
	for i := range summaries {
		g.Go(func() error {
			repo := summaries[i].Repository
			stat, err := s.reader.MTTR(ctx, schema.MTTRFilter{Repository: repo, Since: since})
			if err != nil {
				return fmt.Errorf("failed to summarize %s: %w", repo, err)
			}
			summaries[i].MTTRSeconds = stat.Seconds
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.logger.Debug("repositories summarized",
		slog.String("days", q.Days.String()),
		slog.Int("repositories", len(summaries)))
	return summaries, nil
}

// summarizeRows groups rows by repository in first-seen order.
func summarizeRows(rows []schema.MetricRow) []schema.RepositorySummary {
	var summaries []schema.RepositorySummary
	index := make(map[string]int)
	durationWeight := make(map[string]float64)
	durationRuns := make(map[string]int)

	for _, r := range rows {
		i, ok := index[r.Repository]
		if !ok {
			i = len(summaries)
			index[r.Repository] = i
			summaries = append(summaries, schema.RepositorySummary{Repository: r.Repository})
		}
		sum := &summaries[i]
		sum.Workflows++
		sum.TotalRuns += r.TotalRuns
		sum.SuccessCount += r.SuccessCount
		sum.FailureCount += r.FailureCount
		if r.AvgDurationSeconds != nil && r.TotalRuns > 0 {
			durationWeight[r.Repository] += *r.AvgDurationSeconds * float64(r.TotalRuns)
			durationRuns[r.Repository] += r.TotalRuns
		}
		if r.FirstRun != nil && (sum.FirstRun == nil || r.FirstRun.Before(*sum.FirstRun)) {
			sum.FirstRun = r.FirstRun
		}
		if r.LastRun != nil && (sum.LastRun == nil || r.LastRun.After(*sum.LastRun)) {
			sum.LastRun = r.LastRun
		}
	}

	for i := range summaries {
		sum := &summaries[i]
		if rate, ok := schema.SuccessRate(sum.SuccessCount, sum.FailureCount); ok {
			sum.SuccessRate = rate
		} else {
			sum.Warnings = append(sum.Warnings, noDecidedRuns)
		}
		if n := durationRuns[sum.Repository]; n > 0 {
			avg := schema.Round(durationWeight[sum.Repository]/float64(n), 2)
			sum.AvgDurationSeconds = &avg
		}
	}
	return summaries
}
