package testqueue

import (
	"errors"
	"fmt"
	"strings"
)

// RuntimeError is an operational error: bad configuration, an unknown class
// or an unreachable backend. It maps to exit code 2.
type RuntimeError struct {
	Err error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime error: %v", e.Err)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

func NewRuntimeError(err error) *RuntimeError {
	return &RuntimeError{Err: err}
}

// IsRuntimeError checks if the error is or wraps a RuntimeError
func IsRuntimeError(err error) bool {
	var runtimeErr *RuntimeError
	return err != nil && errors.As(err, &runtimeErr)
}

// TestFailureError reports a run in which at least one job failed.
// It maps to exit code 1.
type TestFailureError struct {
	Summary    string
	FailedJobs []string
}

func (e *TestFailureError) Error() string {
	if len(e.FailedJobs) == 0 {
		return fmt.Sprintf("test failure: %s", e.Summary)
	}
	return fmt.Sprintf("test failure: %s (failed jobs: %s)", e.Summary, strings.Join(e.FailedJobs, ", "))
}

func NewTestFailureError(summary string, failedJobs ...string) *TestFailureError {
	return &TestFailureError{Summary: summary, FailedJobs: failedJobs}
}

// IsTestFailureError checks if the error is or wraps a TestFailureError
func IsTestFailureError(err error) bool {
	var testErr *TestFailureError
	return err != nil && errors.As(err, &testErr)
}
