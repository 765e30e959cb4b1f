package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum-optimism/infra/op-testqueue/metrics"
	"github.com/ethereum-optimism/infra/op-testqueue/types"
	"github.com/ethereum/go-ethereum/log"
)

// lifecycle runs single lifecycle hooks for one class run and reports
// their faults to the run's sink.
type lifecycle struct {
	log  log.Logger
	sink types.ResultSink
}

// runHook executes one test-case hook and returns the outcome the driver should
// carry into the next stage.
//
// A nil hook passes previous through unchanged. A fault is recorded on the sink
// only when record is set and no earlier stage produced an outcome; otherwise
// it is logged and the earlier outcome is kept.
func (l *lifecycle) runHook(ctx context.Context, tc *types.TestCase, stage types.Stage, hook types.Hook, previous *types.Outcome, record bool) *types.Outcome {
	if hook == nil {
		return previous
	}
	fault := invoke(ctx, stage, tc.Config.TestTimeout, func(ctx context.Context) error {
		return hook(ctx, tc)
	})
	if fault == nil {
		return previous
	}
	return l.addFault(tc, stage, fault, previous, record)
}

// runClassHook executes a class-level hook. Class hook faults are never
// recorded against a test: they are logged and returned to the caller.
func (l *lifecycle) runClassHook(ctx context.Context, cls *types.Class, stage types.Stage, hook types.ClassHook, cfg types.RunConfig) error {
	if hook == nil {
		return nil
	}
	fault := invoke(ctx, stage, cfg.TestTimeout, func(ctx context.Context) error {
		return hook(ctx, cls)
	})
	if fault == nil {
		return nil
	}
	l.log.Error("Class hook failed", "class", cls.Name, "stage", stage, "err", types.FormatFault(fault))
	return &types.StageFault{Stage: stage, Err: fault}
}

// addFault applies the first-fault-wins rule to a fault raised by a stage.
// An unrecorded fault is logged and never becomes an outcome, so the caller
// still owes the sink exactly one terminal notification for the test.
func (l *lifecycle) addFault(tc *types.TestCase, stage types.Stage, fault error, previous *types.Outcome, record bool) *types.Outcome {
	if previous == nil && record {
		return l.record(tc, stage, fault)
	}
	l.log.Error("Exception in test stage", "test", tc.ID(), "stage", stage, "err", types.FormatFault(fault))
	if previous != nil {
		if s, ok := l.sink.(types.SuppressedFaultSink); ok {
			s.AddSuppressed(tc, stage, fault)
		}
	}
	return previous
}

// record classifies a fault and reports it as the terminal outcome of the test.
func (l *lifecycle) record(tc *types.TestCase, stage types.Stage, fault error) *types.Outcome {
	var sf *types.StageFault
	if !errors.As(fault, &sf) {
		fault = &types.StageFault{Stage: stage, Err: fault}
	}
	status := Classify(fault, tc.Class.Failure(), tc.Class.ExpectedFailure())
	switch status {
	case types.TestStatusFail:
		l.sink.AddFailure(tc, fault)
	case types.TestStatusExpectedFailure:
		l.sink.AddExpectedFailure(tc, fault)
	default:
		l.sink.AddError(tc, fault)
	}
	return &types.Outcome{Status: status, Stage: stage, Fault: fault}
}

// invoke calls fn bounded by timeout. Panics and timeouts come back as faults.
// A hook that overruns is abandoned: its context is cancelled and its result dropped.
func invoke(ctx context.Context, stage types.Stage, timeout time.Duration, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		timeout = types.DefaultTestTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- types.NewPanicError(stage, rec)
			}
		}()
		done <- fn(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		// Prefer a result that raced with the deadline
		select {
		case err := <-done:
			return err
		default:
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			metrics.RecordHookTimeout(string(stage))
			return types.NewTimeoutError(stage, timeout)
		}
		return fmt.Errorf("%s interrupted: %w", stage, ctx.Err())
	}
}
