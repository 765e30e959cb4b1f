package testqueue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_RunOnce(t *testing.T) {
	var calls atomic.Int32
	s := NewScheduler(0, log.NewLogger(log.DiscardHandler()), func(context.Context) error {
		calls.Add(1)
		return nil
	})

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, int32(1), calls.Load())

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load(), "run-once mode must not schedule more cycles")
}

func TestScheduler_RunOnceReturnsCycleError(t *testing.T) {
	want := NewTestFailureError("FAIL")
	s := NewScheduler(0, log.NewLogger(log.DiscardHandler()), func(context.Context) error {
		return want
	})
	err := s.Start(context.Background())
	require.ErrorIs(t, err, want)
	assert.True(t, IsTestFailureError(err))
}

func TestScheduler_Periodic(t *testing.T) {
	calls := make(chan struct{}, 10)
	s := NewScheduler(10*time.Millisecond, log.NewLogger(log.DiscardHandler()), func(context.Context) error {
		select {
		case calls <- struct{}{}:
		default:
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Start(ctx))

	for i := 0; i < 4; i++ {
		select {
		case <-calls:
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for cycle %d", i+1)
		}
	}

	s.Stop()
	assert.True(t, s.Stopped())
	require.NoError(t, s.WaitForShutdown(context.Background()))
}

func TestScheduler_PeriodicErrorsAreLogged(t *testing.T) {
	var calls atomic.Int32
	s := NewScheduler(5*time.Millisecond, log.NewLogger(log.DiscardHandler()), func(context.Context) error {
		if calls.Add(1) > 1 {
			return errors.New("boom")
		}
		return nil
	})

	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	s.Stop()
	require.NoError(t, s.WaitForShutdown(context.Background()))
}

func TestScheduler_FirstCycleErrorAbortsPeriodic(t *testing.T) {
	var calls atomic.Int32
	s := NewScheduler(5*time.Millisecond, log.NewLogger(log.DiscardHandler()), func(context.Context) error {
		calls.Add(1)
		return errors.New("boom")
	})

	require.Error(t, s.Start(context.Background()))
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestScheduler_ContextCancel(t *testing.T) {
	s := NewScheduler(time.Hour, log.NewLogger(log.DiscardHandler()), func(context.Context) error { return nil })
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))

	cancel()
	require.NoError(t, s.WaitForShutdown(context.Background()))
	assert.True(t, s.Stopped())
}

func TestScheduler_StopIsIdempotent(t *testing.T) {
	s := NewScheduler(time.Hour, log.NewLogger(log.DiscardHandler()), func(context.Context) error { return nil })
	require.NoError(t, s.Start(context.Background()))
	s.Stop()
	s.Stop()
	assert.True(t, s.Stopped())
}

func TestScheduler_RequiresCycle(t *testing.T) {
	s := NewScheduler(0, log.NewLogger(log.DiscardHandler()), nil)
	require.Error(t, s.Start(context.Background()))
}
