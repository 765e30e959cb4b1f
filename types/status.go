package types

// TestStatus represents the terminal outcome of a single test case
type TestStatus string

const (
	TestStatusPass            TestStatus = "pass"
	TestStatusFail            TestStatus = "fail"
	TestStatusExpectedFailure TestStatus = "xfail"
	TestStatusError           TestStatus = "error"
	TestStatusSkip            TestStatus = "skip"
)

// IsFailing reports whether the status should fail a run.
// Expected failures and skips are acceptable outcomes.
func (s TestStatus) IsFailing() bool {
	return s == TestStatusFail || s == TestStatusError
}

// Stage names a point in the lifecycle of a test case or test class
type Stage string

const (
	StagePreSetup      Stage = "pre_setup"
	StageSetUp         Stage = "setUp"
	StageBody          Stage = "body"
	StageTearDown      Stage = "tearDown"
	StagePostTeardown  Stage = "post_teardown"
	StageSetUpClass    Stage = "setUpClass"
	StageTearDownClass Stage = "tearDownClass"
)

// IsTeardown reports whether the stage belongs to the teardown half of a lifecycle.
// Teardown stages run even after an earlier stage has faulted.
func (s Stage) IsTeardown() bool {
	switch s {
	case StageTearDown, StagePostTeardown, StageTearDownClass:
		return true
	default:
		return false
	}
}

// Outcome is the classified result of a test case. Once recorded it is never replaced.
type Outcome struct {
	Status TestStatus
	Stage  Stage  // Stage that produced the fault, empty for success and skip
	Fault  error  // Nil for success and skip
	Reason string // Skip reason
}

// Success returns the outcome of a test case whose stages all completed.
func Success() *Outcome {
	return &Outcome{Status: TestStatusPass}
}

// Skipped returns a skip outcome carrying the given reason.
func Skipped(reason string) *Outcome {
	return &Outcome{Status: TestStatusSkip, Reason: reason}
}
