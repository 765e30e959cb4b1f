package testqueue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum-optimism/infra/op-testqueue/flags"
	"github.com/ethereum-optimism/infra/op-testqueue/queue"
	"github.com/ethereum-optimism/infra/op-testqueue/registry"
	"github.com/ethereum-optimism/infra/op-testqueue/reporting"
	"github.com/ethereum-optimism/infra/op-testqueue/runner"
	"github.com/ethereum-optimism/infra/op-testqueue/service"
	"github.com/ethereum-optimism/infra/op-testqueue/store"
	"github.com/ethereum-optimism/infra/op-testqueue/suites"
	"github.com/ethereum-optimism/infra/op-testqueue/types"
	"github.com/ethereum-optimism/infra/op-testqueue/worker"
	"github.com/ethereum-optimism/optimism/op-service/cliapp"
	"github.com/ethereum/go-ethereum/log"
)

const resultsTitle = "Test Queue Results"

var _ cliapp.Lifecycle = (*TestQueue)(nil)

// TestQueue submits test classes to a job queue, consumes them, or both,
// depending on its role.
type TestQueue struct {
	config    *Config
	version   string
	log       log.Logger
	queue     queue.Queue
	registry  *registry.Registry
	runner    runner.ClassRunner
	pool      *worker.Pool     // nil for the submit role
	db        store.Connection // nil without a postgres url
	service   *service.Service
	scheduler *Scheduler
	out       io.Writer

	mu      sync.Mutex
	results []*queue.JobResult

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	shutdownCallback func(error)
}

func New(ctx context.Context, config *Config, version string, shutdownCallback func(error)) (*TestQueue, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if config.Log == nil {
		config.Log = log.New()
	}
	if shutdownCallback == nil {
		shutdownCallback = func(error) {}
	}
	if err := config.Check(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	config.Log.Debug("Creating test queue with config",
		"role", config.Role,
		"classes", config.Classes,
		"plan", config.PlanFile,
		"workers", config.Workers,
		"runInterval", config.RunInterval)

	q, err := newQueue(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create queue: %w", err)
	}

	reg := registry.NewRegistry(registry.Config{Log: config.Log})
	if err := suites.Register(reg, suites.Deps{Backend: q}); err != nil {
		_ = q.Close()
		return nil, fmt.Errorf("failed to register classes: %w", err)
	}
	if config.PlanFile != "" {
		if err := reg.LoadPlan(config.PlanFile); err != nil {
			_ = q.Close()
			return nil, fmt.Errorf("failed to load plan: %w", err)
		}
	}

	classRunner := runner.NewClassRunner(runner.Config{
		Log: config.Log,
		Sinks: []types.ResultSink{
			reporting.NewLogSink(config.Log),
			reporting.NewMetricsSink(),
		},
	})

	t := &TestQueue{
		config:           config,
		version:          version,
		log:              config.Log,
		queue:            q,
		registry:         reg,
		runner:           classRunner,
		out:              os.Stdout,
		shutdownCallback: shutdownCallback,
	}

	if config.Role != flags.RoleSubmit {
		poolCfg := worker.Config{
			Log:     config.Log,
			Queue:   q,
			Classes: reg,
			Runner:  classRunner,
			Workers: config.Workers,
		}
		if config.PostgresURL != "" {
			db, err := store.New(ctx, config.PostgresURL)
			if err != nil {
				_ = q.Close()
				return nil, fmt.Errorf("failed to connect to postgres: %w", err)
			}
			if err := db.Migrate(ctx); err != nil {
				_ = db.Close()
				_ = q.Close()
				return nil, fmt.Errorf("failed to migrate postgres: %w", err)
			}
			t.db = db
			poolCfg.Store = store.NewStore(db, config.Log)
		}
		pool, err := worker.NewPool(poolCfg)
		if err != nil {
			_ = t.closeBackends()
			return nil, fmt.Errorf("failed to create worker pool: %w", err)
		}
		t.pool = pool
	}

	t.service = service.New(service.Config{
		Log:            config.Log,
		HealthzHost:    service.HealthzHost,
		HealthzPort:    config.HealthzPort,
		MetricsEnabled: config.MetricsConfig.Enabled,
		MetricsHost:    config.MetricsConfig.ListenAddr,
		MetricsPort:    config.MetricsConfig.ListenPort,
		Backend:        q,
	})

	config.Log.Info("testqueue.New: created queue, registry and runner", "classes", reg.Names())
	return t, nil
}

func newQueue(ctx context.Context, config *Config) (queue.Queue, error) {
	if config.RedisURL == "" {
		return queue.NewMemoryQueue(queue.DefaultMemoryCapacity), nil
	}
	client, err := queue.NewRedisClient(config.RedisURL)
	if err != nil {
		return nil, err
	}
	if err := queue.CheckRedisConnection(ctx, client); err != nil {
		_ = client.Close()
		return nil, err
	}
	return queue.NewRedisQueue(client, queue.RedisConfig{
		Log:  config.Log,
		Name: config.QueueName,
	}), nil
}

// Start implements the cliapp.Lifecycle interface.
func (t *TestQueue) Start(ctx context.Context) error {
	t.log.Info("Starting op-testqueue", "version", t.version, "role", t.config.Role)

	runCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.running.Store(true)

	t.service.Start(runCtx)

	if t.pool != nil {
		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			if err := t.pool.Run(runCtx); err != nil {
				t.log.Error("Worker pool failed", "err", err)
				t.shutdownCallback(NewRuntimeError(err))
			}
		}()
	}

	if t.config.Role == flags.RoleWorker {
		return nil
	}

	t.scheduler = NewScheduler(t.config.RunInterval, t.log, t.runCycle)
	if err := t.scheduler.Start(runCtx); err != nil {
		return err
	}

	if t.config.RunOnce {
		t.log.Info("Run completed, exiting (run-once mode)")
		go t.shutdownCallback(nil)
	}
	return nil
}

// runCycle submits one job per selected class and waits for every result.
// Failing jobs are an error only in run-once mode.
func (t *TestQueue) runCycle(ctx context.Context) error {
	start := time.Now()
	names, err := t.selectedClasses()
	if err != nil {
		return NewRuntimeError(err)
	}

	jobs := make([]*queue.Job, 0, len(names))
	for _, name := range names {
		job := queue.NewJob(name, t.config.Tag, t.config.Run, t.config.JobTTL)
		if err := t.queue.Enqueue(ctx, job); err != nil {
			return NewRuntimeError(fmt.Errorf("failed to enqueue job for class %s: %w", name, err))
		}
		t.log.Debug("Submitted job", "job", job.ID, "class", name)
		jobs = append(jobs, job)
	}

	awaitCtx := ctx
	if t.config.ResultTimeout > 0 {
		var cancel context.CancelFunc
		awaitCtx, cancel = context.WithTimeout(ctx, t.config.ResultTimeout)
		defer cancel()
	}

	results := make([]*queue.JobResult, 0, len(jobs))
	for _, job := range jobs {
		res, err := t.queue.AwaitResult(awaitCtx, job.ID)
		if err != nil {
			if ctx.Err() != nil {
				return NewRuntimeError(fmt.Errorf("run interrupted: %w", err))
			}
			t.log.Warn("No result for job", "job", job.ID, "err", err)
			res = queue.NewErrorResult(job, "", queue.JobStatusError, fmt.Errorf("no result: %w", err))
		}
		results = append(results, res)
	}
	duration := time.Since(start)

	formatter := reporting.NewTableFormatter(resultsTitle, t.config.Color, t.config.ShowDetails)
	if err := formatter.Format(t.out, results, duration); err != nil {
		t.log.Error("Failed to print results", "err", err)
	}
	summary := reporting.Summarize(results, duration)
	_, _ = fmt.Fprintln(t.out, summary.String())

	t.mu.Lock()
	t.results = results
	t.mu.Unlock()

	t.log.Info("Run completed", "status", summary.Status, "jobs", summary.Jobs, "duration", duration)
	if summary.Status != types.TestStatusFail {
		return nil
	}

	var failed []string
	for _, r := range results {
		if r.Failed() {
			failed = append(failed, r.JobID)
		}
	}
	if t.config.RunOnce {
		return NewTestFailureError(summary.String(), failed...)
	}
	t.log.Warn("Run completed with failures", "failed", failed)
	return nil
}

// selectedClasses returns the configured classes, or the planned ones
func (t *TestQueue) selectedClasses() ([]string, error) {
	names := t.config.Classes
	if len(names) == 0 {
		names = t.registry.Planned()
	}
	if len(names) == 0 {
		return nil, errors.New("no classes selected")
	}
	for _, name := range names {
		if !t.registry.Has(name) {
			return nil, fmt.Errorf("%w: %s", registry.ErrUnknownClass, name)
		}
	}
	return names, nil
}

// Results returns the job results of the latest run
func (t *TestQueue) Results() []*queue.JobResult {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.results
}

// Stop implements the cliapp.Lifecycle interface.
func (t *TestQueue) Stop(ctx context.Context) error {
	t.log.Info("Stopping op-testqueue")
	if !t.running.Swap(false) {
		t.log.Debug("Service already stopped, nothing to do")
		return nil
	}

	var result error
	if t.scheduler != nil {
		t.scheduler.Stop()
		if err := t.scheduler.WaitForShutdown(ctx); err != nil {
			result = errors.Join(result, err)
		}
	}

	t.cancel()
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		result = errors.Join(result, fmt.Errorf("waiting for workers: %w", ctx.Err()))
	}

	t.service.Shutdown()
	if err := t.closeBackends(); err != nil {
		result = errors.Join(result, err)
	}
	t.log.Info("op-testqueue stopped")
	return result
}

func (t *TestQueue) closeBackends() error {
	var result error
	if err := t.queue.Close(); err != nil {
		result = errors.Join(result, fmt.Errorf("closing queue: %w", err))
	}
	if t.db != nil {
		if err := t.db.Close(); err != nil {
			result = errors.Join(result, fmt.Errorf("closing postgres: %w", err))
		}
	}
	return result
}

// Stopped implements the cliapp.Lifecycle interface.
func (t *TestQueue) Stopped() bool {
	return !t.running.Load()
}
