package scheduler_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/phrazzld/tasknotify/internal/scheduler"
	"github.com/phrazzld/tasknotify/internal/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_RunsAtStartupAndOnTicks(t *testing.T) {
	t.Parallel()

	var scans, drains atomic.Int32
	s := scheduler.New(scheduler.Config{StartupDelay: 5 * time.Millisecond}, testdb.DiscardLogger(),
		scheduler.Job{Name: "scan", Interval: time.Hour, Run: func(context.Context) error {
			scans.Add(1)
			return nil
		}},
		scheduler.Job{Name: "drain", Interval: 10 * time.Millisecond, Run: func(context.Context) error {
			drains.Add(1)
			return errors.New("transport down")
		}},
	)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	assert.Eventually(t, func() bool { return drains.Load() >= 3 }, 2*time.Second, 5*time.Millisecond,
		"a failing run must not stop the ticker")
	assert.Equal(t, int32(1), scans.Load(), "startup run only")
}

func TestScheduler_StopWaitsForInFlightRun(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	var finished atomic.Bool
	var sawCancel atomic.Bool

	s := scheduler.New(scheduler.Config{}, testdb.DiscardLogger(),
		scheduler.Job{Name: "slow", Interval: time.Hour, Run: func(ctx context.Context) error {
			close(started)
			time.Sleep(50 * time.Millisecond)
			sawCancel.Store(ctx.Err() != nil)
			finished.Store(true)
			return nil
		}},
	)
	require.NoError(t, s.Start(context.Background()))

	<-started
	s.Stop()

	assert.True(t, finished.Load(), "Stop must wait for the in-flight run")
	assert.False(t, sawCancel.Load(), "in-flight run must not be cancelled")
}

func TestScheduler_StopBeforeStartupDelay(t *testing.T) {
	t.Parallel()

	var runs atomic.Int32
	s := scheduler.New(scheduler.Config{StartupDelay: time.Hour}, testdb.DiscardLogger(),
		scheduler.Job{Name: "never", Interval: time.Hour, Run: func(context.Context) error {
			runs.Add(1)
			return nil
		}},
	)
	require.NoError(t, s.Start(context.Background()))
	s.Stop()
	assert.Zero(t, runs.Load())
}

func TestScheduler_PanicIsRecovered(t *testing.T) {
	t.Parallel()

	var runs atomic.Int32
	s := scheduler.New(scheduler.Config{}, testdb.DiscardLogger(),
		scheduler.Job{Name: "boom", Interval: 5 * time.Millisecond, Run: func(context.Context) error {
			runs.Add(1)
			panic("boom")
		}},
	)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
}

func TestScheduler_StartTwice(t *testing.T) {
	t.Parallel()

	s := scheduler.New(scheduler.Config{StartupDelay: time.Hour}, testdb.DiscardLogger())
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()
	assert.ErrorIs(t, s.Start(context.Background()), scheduler.ErrAlreadyRunning)
}

func TestScheduler_LockFile(t *testing.T) {
	t.Parallel()

	lock := filepath.Join(t.TempDir(), "scheduler.lock")
	cfg := scheduler.Config{StartupDelay: time.Hour, LockFile: lock}

	first := scheduler.New(cfg, testdb.DiscardLogger())
	require.NoError(t, first.Start(context.Background()))

	second := scheduler.New(cfg, testdb.DiscardLogger())
	assert.ErrorIs(t, second.Start(context.Background()), scheduler.ErrLocked)

	first.Stop()
	require.NoError(t, second.Start(context.Background()))
	second.Stop()
}
