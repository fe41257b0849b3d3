package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

const everyHour = "0 0 * * * *"

func TestRegisterJobValidates(t *testing.T) {
	s := NewService(arbor.NewLogger())

	err := s.RegisterJob("bad", "*/5 * * * *", false, func(ctx context.Context) error { return nil })
	assert.ErrorContains(t, err, "invalid schedule")

	require.NoError(t, s.RegisterJob("anet", everyHour, false, func(ctx context.Context) error { return nil }))
	err = s.RegisterJob("anet", everyHour, false, func(ctx context.Context) error { return nil })
	assert.ErrorContains(t, err, "already registered")
}

func TestJobRemovedAfterSuccess(t *testing.T) {
	s := NewService(arbor.NewLogger())
	calls := 0
	fail := true
	require.NoError(t, s.RegisterJob("anet", everyHour, false, func(ctx context.Context) error {
		calls++
		if fail {
			return errors.New("earnings link not found")
		}
		return nil
	}))

	s.executeJob("anet")
	status, err := s.GetJobStatus("anet")
	require.NoError(t, err)
	assert.Equal(t, "earnings link not found", status.LastError)
	assert.False(t, status.Completed)
	assert.Len(t, s.cron.Entries(), 1)

	fail = false
	s.executeJob("anet")
	status, err = s.GetJobStatus("anet")
	require.NoError(t, err)
	assert.Empty(t, status.LastError)
	assert.True(t, status.Completed)
	assert.Nil(t, status.NextRun)
	assert.Equal(t, 2, status.Runs)
	assert.Empty(t, s.cron.Entries())

	select {
	case <-s.Done():
	default:
		t.Fatal("Done should be closed once every job completed")
	}

	s.executeJob("anet")
	assert.Equal(t, 2, calls, "completed jobs do not run again")
}

func TestKeepAfterSuccess(t *testing.T) {
	s := NewService(arbor.NewLogger())
	require.NoError(t, s.RegisterJob("anet", everyHour, true, func(ctx context.Context) error { return nil }))
	require.NoError(t, s.RegisterJob("nvda", everyHour, false, func(ctx context.Context) error { return nil }))

	s.executeJob("anet")
	s.executeJob("nvda")

	statuses := s.GetAllJobStatuses()
	require.Len(t, statuses, 2)
	assert.False(t, statuses["anet"].Completed)
	assert.True(t, statuses["nvda"].Completed)
	assert.Len(t, s.cron.Entries(), 1)

	select {
	case <-s.Done():
		t.Fatal("Done must stay open while a job remains scheduled")
	default:
	}
}

func TestPanickingJobStaysScheduled(t *testing.T) {
	s := NewService(arbor.NewLogger())
	require.NoError(t, s.RegisterJob("anet", everyHour, false, func(ctx context.Context) error {
		panic("browser crashed")
	}))

	s.executeJob("anet")
	status, err := s.GetJobStatus("anet")
	require.NoError(t, err)
	assert.Equal(t, "panic: browser crashed", status.LastError)
	assert.False(t, status.IsRunning)
	assert.False(t, status.Completed)
}

func TestTriggerAndStop(t *testing.T) {
	s := NewService(arbor.NewLogger())
	started := make(chan struct{})
	require.NoError(t, s.RegisterJob("anet", everyHour, false, func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}))

	require.NoError(t, s.Start(context.Background()))
	assert.Error(t, s.Start(context.Background()))
	assert.ErrorContains(t, s.TriggerJob("missing"), "not found")
	require.NoError(t, s.TriggerJob("anet"))

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("job did not start")
	}

	require.NoError(t, s.Stop())
	status, err := s.GetJobStatus("anet")
	require.NoError(t, err)
	assert.False(t, status.IsRunning)
	assert.Equal(t, context.Canceled.Error(), status.LastError)
}
