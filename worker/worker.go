package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/ethereum-optimism/infra/op-testqueue/metrics"
	"github.com/ethereum-optimism/infra/op-testqueue/queue"
	"github.com/ethereum-optimism/infra/op-testqueue/runner"
	"github.com/ethereum-optimism/infra/op-testqueue/types"
	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/sync/errgroup"
)

const defaultRetryDelay = time.Second

// ClassSource resolves a class name into a fresh class value
type ClassSource interface {
	Class(name string) (*types.Class, error)
}

// ResultStore persists job results
type ResultStore interface {
	SaveJobResult(ctx context.Context, result *queue.JobResult) error
}

// Config holds configuration for a worker pool
type Config struct {
	Log        log.Logger
	Queue      queue.Queue
	Classes    ClassSource
	Runner     runner.ClassRunner
	Store      ResultStore // Optional
	Workers    int
	Name       string        // Worker name prefix, defaults to the host name
	RetryDelay time.Duration // Pause after a failed dequeue
}

// Pool runs consumer loops that take jobs off a queue and run them
type Pool struct {
	log        log.Logger
	queue      queue.Queue
	classes    ClassSource
	runner     runner.ClassRunner
	store      ResultStore
	workers    int
	name       string
	retryDelay time.Duration
	processed  atomic.Int64
}

// NewPool validates cfg and creates a pool
func NewPool(cfg Config) (*Pool, error) {
	if cfg.Queue == nil {
		return nil, errors.New("queue is required")
	}
	if cfg.Classes == nil {
		return nil, errors.New("class source is required")
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	if cfg.Runner == nil {
		cfg.Runner = runner.NewClassRunner(runner.Config{Log: cfg.Log})
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Name == "" {
		host, err := os.Hostname()
		if err != nil {
			host = "worker"
		}
		cfg.Name = host
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	return &Pool{
		log:        cfg.Log.New("component", "worker-pool"),
		queue:      cfg.Queue,
		classes:    cfg.Classes,
		runner:     cfg.Runner,
		store:      cfg.Store,
		workers:    cfg.Workers,
		name:       cfg.Name,
		retryDelay: cfg.RetryDelay,
	}, nil
}

// Run consumes jobs until ctx is done or the queue is closed
func (p *Pool) Run(ctx context.Context) error {
	p.log.Info("Starting workers", "workers", p.workers, "name", p.name)
	g, ctx := errgroup.WithContext(ctx)
	for i := range p.workers {
		id := fmt.Sprintf("%s-%d", p.name, i)
		g.Go(func() error {
			return p.loop(ctx, id)
		})
	}
	err := g.Wait()
	p.log.Info("Workers stopped", "processed", p.processed.Load())
	return err
}

// Processed returns the number of jobs processed so far
func (p *Pool) Processed() int64 {
	return p.processed.Load()
}

func (p *Pool) loop(ctx context.Context, id string) error {
	logger := p.log.New("worker", id)
	for {
		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, queue.ErrClosed) {
				return nil
			}
			logger.Error("Failed to dequeue job", "err", err)
			metrics.RecordErrorDetails("dequeue", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(p.retryDelay):
			}
			continue
		}
		p.process(ctx, logger, id, job)
	}
}

// process runs one job and publishes its result. The result is published
// even when ctx is cancelled mid-run, so a submitter never waits forever.
func (p *Pool) process(ctx context.Context, logger log.Logger, id string, job *queue.Job) {
	done := metrics.TrackJob()
	defer done()

	logger.Info("Processing job", "job", job.ID, "class", job.Class)
	result := RunJob(ctx, p.classes, p.runner, job, id)
	metrics.RecordJob(string(result.Status))
	p.processed.Add(1)

	pubCtx := context.WithoutCancel(ctx)
	if p.store != nil {
		if err := p.store.SaveJobResult(pubCtx, result); err != nil {
			logger.Error("Failed to store job result", "job", job.ID, "err", err)
			metrics.RecordErrorDetails("store", err)
		}
	}
	if err := p.queue.PublishResult(pubCtx, result); err != nil {
		logger.Error("Failed to publish job result", "job", job.ID, "err", err)
		metrics.RecordErrorDetails("publish", err)
		return
	}
	logger.Info("Job processed", "job", job.ID, "status", result.Status, "class_status", result.ClassStatus)
}

// RunJob resolves the class of job and runs it.
//
// Expired jobs and unknown classes produce a result without running anything.
// A class without test cases produces an empty result and its class hooks do not run.
func RunJob(ctx context.Context, classes ClassSource, r runner.ClassRunner, job *queue.Job, worker string) *queue.JobResult {
	if job.Expired(time.Now()) {
		return queue.NewErrorResult(job, worker, queue.JobStatusExpired, fmt.Errorf("job expired at %s", job.Expiry.Format(time.RFC3339)))
	}

	cfg := job.Config
	if cfg.TestTimeout <= 0 {
		cfg.TestTimeout = types.DefaultTestTimeout
	}
	if err := cfg.Validate(); err != nil {
		return queue.NewErrorResult(job, worker, queue.JobStatusError, fmt.Errorf("invalid run config: %w", err))
	}

	cls, err := classes.Class(job.Class)
	if err != nil {
		return queue.NewErrorResult(job, worker, queue.JobStatusError, err)
	}

	cases := cls.Cases(job.Tag, cfg)
	if len(cases) == 0 {
		empty := types.NewClassResult(cls.Name, jobTag(cls, job.Tag))
		empty.Sequential = cls.IsSequential(cfg)
		empty.Finalize()
		return queue.NewJobResult(job, worker, empty)
	}
	return queue.NewJobResult(job, worker, r.Run(ctx, cls, cases, cfg))
}

// jobTag resolves the tag of a job, falling back to the class tag
func jobTag(cls *types.Class, tag string) string {
	if tag == "" {
		return cls.Tag
	}
	return tag
}
