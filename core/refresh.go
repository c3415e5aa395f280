package core

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/huangsam/cipette/internal/contract"
	"github.com/huangsam/cipette/schema"
)

// ErrRefreshRunning is returned by Start when the task is already running.
var ErrRefreshRunning = errors.New("refresh task already running")

// RefreshOptions tunes a RefreshTask. Zero values fall back to defaults.
type RefreshOptions struct {
	Interval     time.Duration
	InitialDelay time.Duration
	WindowDays   int
	Health       *contract.HealthConfig
	Clock        contract.Clock
	Logger       *slog.Logger
	OnRefresh    func(schema.RefreshReport) // called after every completed pass
}

// RefreshTask recomputes the MTTR and health score caches on a schedule.
type RefreshTask struct {
	store        contract.CacheRefresher
	calc         *HealthCalculator
	interval     time.Duration
	initialDelay time.Duration
	windowDays   int
	clock        contract.Clock
	logger       *slog.Logger
	onRefresh    func(schema.RefreshReport)

	mu     sync.Mutex
	stop   chan struct{}
	done   chan struct{}
	passMu sync.Mutex // one pass at a time
}

// NewRefreshTask builds a task over store. It does not start it.
func NewRefreshTask(store contract.CacheRefresher, opts RefreshOptions) *RefreshTask {
	if opts.Interval <= 0 {
		opts.Interval = contract.DefaultRefreshInterval
	}
	if opts.InitialDelay < 0 {
		opts.InitialDelay = 0
	}
	if opts.WindowDays <= 0 {
		opts.WindowDays = contract.DefaultHealthWindowDays
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

	return &RefreshTask{
		store:        store,
		calc:         NewHealthCalculator(health, opts.Logger),
		interval:     opts.Interval,
		initialDelay: opts.InitialDelay,
		windowDays:   opts.WindowDays,
		clock:        opts.Clock,
		logger:       opts.Logger.With(slog.String("component", "refresh")),
		onRefresh:    opts.OnRefresh,
	}
}

// Start runs the task in the background: one pass after the initial delay,
// then one per interval until Stop is called or ctx is done.
func (t *RefreshTask) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop != nil {
		return ErrRefreshRunning
	}
	t.stop = make(chan struct{})
	t.done = make(chan struct{})
	go t.run(ctx, t.stop, t.done)
	t.logger.Info("refresh task started",
		slog.Duration("interval", t.interval),
		slog.Duration("initial_delay", t.initialDelay))
	return nil
}

// Stop cancels the background loop and waits for an in-flight pass to finish.
// It is safe to call when the task is not running.
func (t *RefreshTask) Stop() {
	t.mu.Lock()
	stop, done := t.stop, t.done
	t.stop, t.done = nil, nil
	t.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
	t.logger.Info("refresh task stopped")
}

// Done is closed once the background loop exits. It is nil when not running.
func (t *RefreshTask) Done() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

func (t *RefreshTask) run(parent context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	timer := time.NewTimer(t.initialDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}
	t.runLogged(ctx)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.runLogged(ctx)
		}
	}
}

func (t *RefreshTask) runLogged(ctx context.Context) {
	if _, err := t.RunOnce(ctx); err != nil && ctx.Err() == nil {
		t.logger.Error("refresh pass failed", slog.String("error", err.Error()))
	}
}

// RunOnce refreshes both caches for every workflow. Per-workflow failures are
// logged and counted; only failing to list workflows or cancellation abort the pass.
func (t *RefreshTask) RunOnce(ctx context.Context) (schema.RefreshReport, error) {
	t.passMu.Lock()
	defer t.passMu.Unlock()

	start := time.Now()
	var report schema.RefreshReport

	ids, err := t.store.ListWorkflowIDs(ctx)
	if err != nil {
		report.Duration = time.Since(start)
		return report, err
	}
	report.Workflows = len(ids)
	now := t.clock.Now()

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			report.Duration = time.Since(start)
			return report, err
		}
		log := t.logger.With(slog.String("workflow_id", id))

		deleted, err := t.refreshMTTR(ctx, id, now)
		if err != nil {
			report.Failures++
			log.Warn("mttr refresh failed", slog.String("error", err.Error()))
		} else if deleted {
			report.MTTRDeleted++
		} else {
			report.MTTRUpdated++
		}

		if err := t.refreshHealth(ctx, id, now); err != nil {
			report.Failures++
			log.Warn("health refresh failed", slog.String("error", err.Error()))
		} else {
			report.HealthUpdated++
		}
	}

	report.Duration = time.Since(start)
	attrs := []any{
		slog.Int("workflows", report.Workflows),
		slog.Int("mttr_updated", report.MTTRUpdated),
		slog.Int("mttr_deleted", report.MTTRDeleted),
		slog.Int("health_updated", report.HealthUpdated),
		slog.Int("failures", report.Failures),
		slog.Duration("duration", report.Duration),
	}
	if report.Duration > t.interval/2 {
		t.logger.Warn("refresh pass is slow relative to its interval", attrs...)
	} else {
		t.logger.Info("refresh pass complete", attrs...)
	}
	if t.onRefresh != nil {
		t.onRefresh(report)
	}
	return report, nil
}

// refreshMTTR stores the all-time MTTR, or removes the row when no failure has recovered.
func (t *RefreshTask) refreshMTTR(ctx context.Context, workflowID string, now time.Time) (bool, error) {
	stat, err := t.store.MTTR(ctx, schema.MTTRFilter{WorkflowID: workflowID})
	if err != nil {
		return false, err
	}
	if stat.Seconds == nil {
		return true, t.store.DeleteMTTRCache(ctx, workflowID)
	}
	return false, t.store.ReplaceMTTRCache(ctx, schema.MTTRCacheRecord{
		WorkflowID:   workflowID,
		MTTRSeconds:  stat.Seconds,
		FailureCount: stat.Samples,
		CalculatedAt: now,
	})
}

// refreshHealth scores the trailing window and stores the result.
func (t *RefreshTask) refreshHealth(ctx context.Context, workflowID string, now time.Time) error {
	since := now.Add(-time.Duration(t.windowDays) * 24 * time.Hour)

	stats, err := t.store.WorkflowStats(ctx, workflowID, since)
	if err != nil {
		return err
	}
	mttr, err := t.store.MTTR(ctx, schema.MTTRFilter{WorkflowID: workflowID, Since: &since})
	if err != nil {
		return err
	}

	in := schema.HealthInput{
		MTTRSeconds:        mttr.Seconds,
		AvgDurationSeconds: stats.AvgDurationSeconds,
		TotalRuns:          stats.TotalRuns,
		Days:               t.windowDays,
	}
	if rate, ok := schema.SuccessRate(stats.SuccessCount, stats.FailureCount); ok {
		in.SuccessRate = &rate
	}
	res := t.calc.Calculate(in)

	return t.store.ReplaceHealthCache(ctx, schema.HealthScoreCacheRecord{
		WorkflowID:   workflowID,
		OverallScore: res.OverallScore,
		HealthClass:  res.HealthClass,
		DataQuality:  res.DataQuality,
		Breakdown:    res.Breakdown,
		SampleSize:   stats.TotalRuns,
		CalculatedAt: now,
	})
}
