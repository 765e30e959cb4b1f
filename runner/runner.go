package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum-optimism/infra/op-testqueue/metrics"
	"github.com/ethereum-optimism/infra/op-testqueue/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// ClassRunner defines the interface for running a test class
type ClassRunner interface {
	Run(ctx context.Context, cls *types.Class, cases []*types.TestCase, cfg types.RunConfig) *types.ClassResult
}

// Config holds configuration for creating a new runner
type Config struct {
	Log   log.Logger
	Sinks []types.ResultSink // Listeners notified of every lifecycle event, in order
}

// runner implements the ClassRunner interface. It keeps no per-run state, so
// one runner may drive several classes at once.
type runner struct {
	log    log.Logger
	sinks  []types.ResultSink
	tracer trace.Tracer
}

var _ ClassRunner = (*runner)(nil)

// NewClassRunner creates a new class runner instance
func NewClassRunner(cfg Config) ClassRunner {
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	return &runner{
		log:    cfg.Log.New("component", "class-runner"),
		sinks:  cfg.Sinks,
		tracer: otel.Tracer("class runner"),
	}
}

// classRun is the transient state of one class run
type classRun struct {
	log      log.Logger
	tracer   trace.Tracer
	sink     *Collector
	lc       *lifecycle
	total    int
	skip     bool
	classErr error
}

// Run runs every test case of a class and returns the aggregated result.
//
// The algorithm is:
//
//   - Run setUpClass unless the class is skipped. A fault is kept as the class error.
//   - Without a class error, drive every case sequentially or concurrently,
//     depending on the class policy.
//   - With a class error, report that fault as the outcome of every case
//     without running any case hook.
//   - Run tearDownClass unless the class is skipped, whatever happened before.
//
// Cancelling ctx stops cases that have not started; they are reported as skipped.
func (r *runner) Run(ctx context.Context, cls *types.Class, cases []*types.TestCase, cfg types.RunConfig) *types.ClassResult {
	cfg = cls.EffectiveConfig(cfg)
	ctx, span := r.tracer.Start(ctx, fmt.Sprintf("class %s", cls.Name))
	defer span.End()

	tag := cls.Tag
	if len(cases) > 0 {
		tag = cases[0].Tag
	}
	logger := r.log.New("class", cls.Name, "tag", tag)
	collector := NewCollector(cls.Name, tag, logger, r.sinks...)
	cr := &classRun{
		log:    logger,
		tracer: r.tracer,
		sink:   collector,
		lc:     &lifecycle{log: logger, sink: collector},
		total:  len(cases),
		skip:   cls.Skip,
	}

	start := time.Now()
	logger.Info("Running test class", "tests", cr.total, "sequential", cfg.Sequential, "skip", cr.skip)
	collector.StartTestClass(cls)

	if !cr.skip {
		cr.classErr = cr.lc.runClassHook(ctx, cls, types.StageSetUpClass, cls.SetUpClass, cfg)
	}
	collector.setClassError(cr.classErr, cfg.Sequential)

	switch {
	case cr.classErr != nil:
		for _, tc := range cases {
			cr.reportClassError(tc, cr.classErr)
		}
	case cfg.Sequential:
		cr.runSequential(ctx, cases)
	default:
		cr.runConcurrent(ctx, cases, cfg.Concurrency)
	}

	if !cr.skip {
		// tearDownClass must run even when the run was cancelled
		_ = cr.lc.runClassHook(context.WithoutCancel(ctx), cls, types.StageTearDownClass, cls.TearDownClass, cfg)
	}
	collector.StopTestClass(cls)

	result := collector.Result()
	metrics.RecordClassRun(cls.Name, string(result.Status), time.Since(start))
	logger.Info("Test class completed", "status", result.Status, "passed", result.Stats.Passed,
		"failed", result.Stats.Failed, "errors", result.Stats.Errored, "skipped", result.Stats.Skipped,
		"duration", result.Duration)
	return result
}

// runSequential runs the cases one at a time; a case starts only after the
// previous one has been fully reported.
func (cr *classRun) runSequential(ctx context.Context, cases []*types.TestCase) {
	for _, tc := range cases {
		if ctx.Err() != nil {
			cr.reportCancelled(tc)
			continue
		}
		cr.runTest(ctx, tc)
	}
}

// runConcurrent launches every case and waits for all of them. A positive
// limit caps the number of cases in flight.
func (cr *classRun) runConcurrent(ctx context.Context, cases []*types.TestCase, limit int) {
	p := pool.New()
	if limit > 0 {
		p = p.WithMaxGoroutines(limit)
	}
	for _, tc := range cases {
		p.Go(func() {
			if ctx.Err() != nil {
				cr.reportCancelled(tc)
				return
			}
			cr.runTest(ctx, tc)
		})
	}
	p.Wait()
}
