package runner

import (
	"context"
	"fmt"

	"github.com/ethereum-optimism/infra/op-testqueue/types"
)

// CancelledReason is the skip reason reported for test cases that never
// started because their class run was cancelled.
const CancelledReason = "run cancelled"

// runTest drives one test case through pre_setup, setUp, body, tearDown and
// post_teardown, and reports exactly one terminal notification for it.
//
// Later stages are skipped once an earlier one faults, except the teardown
// stages which always run, on a context that survives cancellation of the run.
func (cr *classRun) runTest(ctx context.Context, tc *types.TestCase) (outcome *types.Outcome) {
	ctx, span := cr.tracer.Start(ctx, fmt.Sprintf("test %s", tc.ID()))
	defer span.End()

	cr.sink.StartTest(tc)
	defer cr.sink.StopTest(tc)

	// Nothing escapes the driver; a fault here is reported unless an outcome exists.
	defer func() {
		if rec := recover(); rec != nil {
			fault := types.NewPanicError(types.StageBody, rec)
			if outcome == nil {
				outcome = cr.lc.record(tc, types.StageBody, fault)
				return
			}
			cr.log.Error("Panic after outcome was recorded", "test", tc.ID(), "err", types.FormatFault(fault))
		}
	}()

	if skip, reason := tc.SkipReason(); skip {
		cr.sink.AddSkip(tc, reason)
		return types.Skipped(reason)
	}

	cls := tc.Class
	teardownCtx := context.WithoutCancel(ctx)

	outcome = cr.lc.runHook(ctx, tc, types.StagePreSetup, cls.PreSetup, nil, true)
	if outcome == nil {
		outcome = cr.lc.runHook(ctx, tc, types.StageSetUp, cls.SetUp, nil, true)
	}
	if outcome == nil {
		outcome = cr.lc.runHook(ctx, tc, types.StageBody, bodyHook(tc.Method), nil, true)
	}
	outcome = cr.lc.runHook(teardownCtx, tc, types.StageTearDown, cls.TearDown, outcome, true)
	outcome = cr.lc.runHook(teardownCtx, tc, types.StagePostTeardown, cls.PostTeardown, outcome, true)

	if outcome == nil {
		cr.sink.AddSuccess(tc)
		outcome = types.Success()
	}
	return outcome
}

// reportCancelled closes out a test case that was never started.
func (cr *classRun) reportCancelled(tc *types.TestCase) *types.Outcome {
	cr.sink.StartTest(tc)
	cr.sink.AddSkip(tc, CancelledReason)
	cr.sink.StopTest(tc)
	return types.Skipped(CancelledReason)
}

// reportClassError applies the setUpClass fault to a test case without running any of its hooks.
func (cr *classRun) reportClassError(tc *types.TestCase, classErr error) *types.Outcome {
	cr.sink.StartTest(tc)
	defer cr.sink.StopTest(tc)
	return cr.lc.record(tc, types.StageSetUpClass, classErr)
}

// bodyHook returns the hook for the test body, translating the outcome of
// bodies declared as expected failures.
func bodyHook(m types.Method) types.Hook {
	if m.Body == nil || !m.ExpectedFailure {
		return m.Body
	}
	return func(ctx context.Context, tc *types.TestCase) (err error) {
		defer func() {
			if rec := recover(); rec != nil {
				err = &types.ExpectedFailureError{Err: types.NewPanicError(types.StageBody, rec)}
			}
		}()
		if err := m.Body(ctx, tc); err != nil {
			return &types.ExpectedFailureError{Err: err}
		}
		return &types.UnexpectedSuccessError{Test: tc.ID()}
	}
}
