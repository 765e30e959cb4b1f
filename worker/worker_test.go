package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum-optimism/infra/op-testqueue/queue"
	"github.com/ethereum-optimism/infra/op-testqueue/registry"
	"github.com/ethereum-optimism/infra/op-testqueue/runner"
	"github.com/ethereum-optimism/infra/op-testqueue/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) SaveJobResult(ctx context.Context, result *queue.JobResult) error {
	args := m.Called(ctx, result)
	return args.Error(0)
}

func testLogger() log.Logger {
	return log.NewLogger(log.DiscardHandler())
}

func newTestRegistry(t *testing.T, classHooks *atomic.Int32) *registry.Registry {
	t.Helper()
	reg := registry.NewRegistry(registry.Config{Log: testLogger()})
	countHook := func(context.Context, *types.Class) error {
		classHooks.Add(1)
		return nil
	}
	reg.MustRegister("passing", func() *types.Class {
		return &types.Class{
			SetUpClass: countHook,
			Methods: []types.Method{
				{Name: "TestA", Body: func(context.Context, *types.TestCase) error { return nil }},
				{Name: "TestB", Body: func(context.Context, *types.TestCase) error { return nil }},
			},
		}
	})
	reg.MustRegister("failing", func() *types.Class {
		return &types.Class{
			Methods: []types.Method{
				{Name: "TestA", Body: func(context.Context, *types.TestCase) error { return types.Failf("nope") }},
			},
		}
	})
	reg.MustRegister("empty", func() *types.Class {
		return &types.Class{Tag: "default", SetUpClass: countHook, TearDownClass: countHook}
	})
	return reg
}

func TestRunJob(t *testing.T) {
	var classHooks atomic.Int32
	reg := newTestRegistry(t, &classHooks)
	r := runner.NewClassRunner(runner.Config{Log: testLogger()})
	cfg := types.RunConfig{TestTimeout: time.Second}

	t.Run("passing class", func(t *testing.T) {
		job := queue.NewJob("passing", "smoke", cfg, 0)
		result := RunJob(context.Background(), reg, r, job, "w-0")
		assert.Equal(t, queue.JobStatusDone, result.Status)
		assert.Equal(t, types.TestStatusPass, result.ClassStatus)
		assert.Equal(t, "smoke", result.Tag)
		assert.Equal(t, "w-0", result.Worker)
		assert.Len(t, result.Tests, 2)
		assert.False(t, result.Failed())
	})

	t.Run("failing class", func(t *testing.T) {
		result := RunJob(context.Background(), reg, r, queue.NewJob("failing", "", cfg, 0), "w-0")
		assert.Equal(t, queue.JobStatusDone, result.Status)
		assert.Equal(t, types.TestStatusFail, result.ClassStatus)
		require.Len(t, result.Tests, 1)
		assert.Equal(t, "body: nope", result.Tests[0].Error)
		assert.Contains(t, result.Tests[0].Trace, "nope")
		assert.True(t, result.Failed())
	})

	t.Run("empty class runs no class hooks", func(t *testing.T) {
		before := classHooks.Load()
		result := RunJob(context.Background(), reg, r, queue.NewJob("empty", "", cfg, 0), "w-0")
		assert.Equal(t, queue.JobStatusDone, result.Status)
		assert.Equal(t, types.TestStatusSkip, result.ClassStatus)
		assert.Equal(t, "default", result.Tag)
		assert.Empty(t, result.Tests)
		assert.Equal(t, before, classHooks.Load())
	})

	t.Run("unknown class", func(t *testing.T) {
		result := RunJob(context.Background(), reg, r, queue.NewJob("missing", "", cfg, 0), "w-0")
		assert.Equal(t, queue.JobStatusError, result.Status)
		assert.Contains(t, result.Error, "unknown test class")
		assert.True(t, result.Failed())
	})

	t.Run("duplicate method names", func(t *testing.T) {
		require.NoError(t, reg.Register("dup", func() *types.Class {
			return &types.Class{Methods: []types.Method{
				{Name: "TestA", Body: func(context.Context, *types.TestCase) error { return nil }},
				{Name: "TestA", Body: func(context.Context, *types.TestCase) error { return types.Failf("boom") }},
			}}
		}))
		result := RunJob(context.Background(), reg, r, queue.NewJob("dup", "", cfg, 0), "w-0")
		assert.Equal(t, queue.JobStatusError, result.Status)
		assert.Contains(t, result.Error, "duplicate method TestA")
		assert.Empty(t, result.Tests)
		assert.True(t, result.Failed())
	})

	t.Run("expired job", func(t *testing.T) {
		job := queue.NewJob("passing", "", cfg, time.Millisecond)
		job.Expiry = time.Now().Add(-time.Minute)
		result := RunJob(context.Background(), reg, r, job, "w-0")
		assert.Equal(t, queue.JobStatusExpired, result.Status)
		assert.Empty(t, result.Tests)
	})

	t.Run("zero timeout falls back to default", func(t *testing.T) {
		result := RunJob(context.Background(), reg, r, queue.NewJob("passing", "", types.RunConfig{}, 0), "w-0")
		assert.Equal(t, queue.JobStatusDone, result.Status)
	})

	t.Run("invalid config", func(t *testing.T) {
		bad := types.RunConfig{TestTimeout: time.Second, Concurrency: -1}
		result := RunJob(context.Background(), reg, r, queue.NewJob("passing", "", bad, 0), "w-0")
		assert.Equal(t, queue.JobStatusError, result.Status)
	})
}

func TestPool(t *testing.T) {
	var classHooks atomic.Int32
	reg := newTestRegistry(t, &classHooks)
	q := queue.NewMemoryQueue(8)
	defer q.Close()

	store := new(mockStore)
	store.On("SaveJobResult", mock.Anything, mock.MatchedBy(func(r *queue.JobResult) bool {
		return r.Class == "failing"
	})).Return(errors.New("db down")).Once()
	store.On("SaveJobResult", mock.Anything, mock.Anything).Return(nil)

	pool, err := NewPool(Config{
		Log:     testLogger(),
		Queue:   q,
		Classes: reg,
		Store:   store,
		Workers: 2,
		Name:    "test",
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pool.Run(ctx) }()

	cfg := types.RunConfig{TestTimeout: time.Second}
	jobs := []*queue.Job{
		queue.NewJob("passing", "", cfg, 0),
		queue.NewJob("failing", "", cfg, 0),
		queue.NewJob("missing", "", cfg, 0),
	}
	for _, job := range jobs {
		require.NoError(t, q.Enqueue(ctx, job))
	}

	awaitCtx, awaitCancel := context.WithTimeout(ctx, 10*time.Second)
	defer awaitCancel()
	statuses := make(map[string]queue.JobStatus)
	for _, job := range jobs {
		result, err := q.AwaitResult(awaitCtx, job.ID)
		require.NoError(t, err)
		statuses[job.Class] = result.Status
	}
	assert.Equal(t, queue.JobStatusDone, statuses["passing"])
	assert.Equal(t, queue.JobStatusDone, statuses["failing"])
	assert.Equal(t, queue.JobStatusError, statuses["missing"])

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("pool did not stop")
	}
	assert.Equal(t, int64(3), pool.Processed())
	store.AssertNumberOfCalls(t, "SaveJobResult", 3)
}

func TestNewPoolValidation(t *testing.T) {
	_, err := NewPool(Config{Log: testLogger()})
	require.Error(t, err)

	_, err = NewPool(Config{Log: testLogger(), Queue: queue.NewMemoryQueue(1)})
	require.Error(t, err)
}

func TestPoolStopsWhenQueueCloses(t *testing.T) {
	q := queue.NewMemoryQueue(1)
	pool, err := NewPool(Config{
		Log:     testLogger(),
		Queue:   q,
		Classes: registry.NewRegistry(registry.Config{Log: testLogger()}),
	})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- pool.Run(context.Background()) }()
	require.NoError(t, q.Close())

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("pool did not stop")
	}
}
