package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/huangsam/cipette/internal/contract"
	"github.com/huangsam/cipette/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestRefreshRunOnce(t *testing.T) {
	clock := newFakeClock(clockStart)
	since := clockStart.AddDate(0, 0, -30)
	m := &contract.MockRunStore{}

	m.On("ListWorkflowIDs", mock.Anything).Return([]string{"wf-1", "wf-2"}, nil)

	// wf-1 has recovered failures.
	m.On("MTTR", mock.Anything, schema.MTTRFilter{WorkflowID: "wf-1"}).
		Return(schema.MTTRStat{Seconds: f64(720), Samples: 1}, nil)
	m.On("ReplaceMTTRCache", mock.Anything, schema.MTTRCacheRecord{
		WorkflowID: "wf-1", MTTRSeconds: f64(720), FailureCount: 1, CalculatedAt: clockStart,
	}).Return(nil)
	m.On("WorkflowStats", mock.Anything, "wf-1", since).
		Return(schema.WorkflowStats{WorkflowID: "wf-1", TotalRuns: 30, SuccessCount: 28, FailureCount: 2, AvgDurationSeconds: f64(300)}, nil)
	m.On("MTTR", mock.Anything, schema.MTTRFilter{WorkflowID: "wf-1", Since: &since}).
		Return(schema.MTTRStat{Seconds: f64(600), Samples: 2}, nil)
	m.On("ReplaceHealthCache", mock.Anything, mock.MatchedBy(func(rec schema.HealthScoreCacheRecord) bool {
		return rec.WorkflowID == "wf-1" && rec.SampleSize == 30 && rec.HealthClass == schema.HealthExcellent && rec.CalculatedAt.Equal(clockStart)
	})).Return(nil)

	// wf-2 never failed, and its stats lookup breaks.
	m.On("MTTR", mock.Anything, schema.MTTRFilter{WorkflowID: "wf-2"}).Return(schema.MTTRStat{}, nil)
	m.On("DeleteMTTRCache", mock.Anything, "wf-2").Return(nil)
	m.On("WorkflowStats", mock.Anything, "wf-2", since).Return(schema.WorkflowStats{}, errors.New("database is locked"))

	var reported []schema.RefreshReport
	task := NewRefreshTask(m, RefreshOptions{
		Clock:     clock,
		OnRefresh: func(r schema.RefreshReport) { reported = append(reported, r) },
	})
	report, err := task.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Workflows)
	assert.Equal(t, 1, report.MTTRUpdated)
	assert.Equal(t, 1, report.MTTRDeleted)
	assert.Equal(t, 1, report.HealthUpdated)
	assert.Equal(t, 1, report.Failures)
	require.Len(t, reported, 1)
	assert.Equal(t, report, reported[0])
	m.AssertExpectations(t)
}

func TestRefreshRunOnceListFailure(t *testing.T) {
	boom := errors.New("no such table: workflows")
	m := &contract.MockRunStore{}
	m.On("ListWorkflowIDs", mock.Anything).Return(nil, boom)

	_, err := NewRefreshTask(m, RefreshOptions{}).RunOnce(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestRefreshRunOnceCancelled(t *testing.T) {
	m := &contract.MockRunStore{}
	m.On("ListWorkflowIDs", mock.Anything).Return([]string{"wf-1"}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRefreshTask(m, RefreshOptions{}).RunOnce(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	m.AssertNotCalled(t, "MTTR", mock.Anything, mock.Anything)
}

func TestRefreshTaskStartStop(t *testing.T) {
	m := &contract.MockRunStore{}
	passes := make(chan schema.RefreshReport, 16)
	m.On("ListWorkflowIDs", mock.Anything).Return([]string{}, nil)

	task := NewRefreshTask(m, RefreshOptions{
		Interval:     10 * time.Millisecond,
		InitialDelay: time.Millisecond,
		OnRefresh: func(r schema.RefreshReport) {
			select {
			case passes <- r:
			default:
			}
		},
	})
	require.NoError(t, task.Start(context.Background()))
	assert.ErrorIs(t, task.Start(context.Background()), ErrRefreshRunning)

	for range 2 {
		select {
		case <-passes:
		case <-time.After(2 * time.Second):
			t.Fatal("refresh pass did not run")
		}
	}

	task.Stop()
	task.Stop()
	assert.Nil(t, task.Done())

	// The task can be started again after stopping.
	require.NoError(t, task.Start(context.Background()))
	task.Stop()
}

func TestRefreshTaskStopsWithContext(t *testing.T) {
	m := &contract.MockRunStore{}
	task := NewRefreshTask(m, RefreshOptions{InitialDelay: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, task.Start(ctx))
	done := task.Done()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("refresh loop did not exit on cancellation")
	}
	task.Stop()
	m.AssertNotCalled(t, "ListWorkflowIDs", mock.Anything)
}
