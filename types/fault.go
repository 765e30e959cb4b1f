package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// FaultMatcher decides whether a fault belongs to a fault family.
type FaultMatcher func(err error) bool

// AssertionError is returned by test code when an expectation does not hold.
// It is the default failure marker: faults matching it are reported as failures
// rather than errors.
type AssertionError struct {
	Message string
}

func (e *AssertionError) Error() string {
	return e.Message
}

// Failf builds an assertion fault with a stack trace attached.
func Failf(format string, args ...any) error {
	return errors.WithStack(&AssertionError{Message: fmt.Sprintf(format, args...)})
}

// ExpectedFailureError marks a fault raised by a test that is declared to fail.
// It deliberately does not unwrap: the cause must not match the failure matcher.
type ExpectedFailureError struct {
	Err error
}

func (e *ExpectedFailureError) Error() string {
	return fmt.Sprintf("expected failure: %v", e.Err)
}

// Format prints the cause with its stack trace for %+v.
func (e *ExpectedFailureError) Format(s fmt.State, verb rune) {
	if verb == 'v' && s.Flag('+') {
		fmt.Fprintf(s, "expected failure: %+v", e.Err)
		return
	}
	fmt.Fprint(s, e.Error())
}

// UnexpectedSuccessError is returned when a test declared to fail passes instead.
type UnexpectedSuccessError struct {
	Test string
}

func (e *UnexpectedSuccessError) Error() string {
	return fmt.Sprintf("unexpected success: %s", e.Test)
}

// TimeoutError is returned when a lifecycle hook does not complete within the run timeout.
type TimeoutError struct {
	Stage   Stage
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Stage, e.Timeout)
}

// PanicError wraps a value recovered from a panicking hook.
type PanicError struct {
	Stage Stage
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in %s: %v", e.Stage, e.Value)
}

// NewTimeoutError builds a timeout fault with the caller's stack attached.
func NewTimeoutError(stage Stage, timeout time.Duration) error {
	return errors.WithStack(&TimeoutError{Stage: stage, Timeout: timeout})
}

// NewPanicError builds a panic fault with the recovering goroutine's stack attached.
func NewPanicError(stage Stage, value any) error {
	return errors.WithStack(&PanicError{Stage: stage, Value: value})
}

// IsAssertion is the default failure matcher.
func IsAssertion(err error) bool {
	var target *AssertionError
	return err != nil && errors.As(err, &target)
}

// IsExpectedFailure is the default expected-failure matcher.
func IsExpectedFailure(err error) bool {
	var target *ExpectedFailureError
	return err != nil && errors.As(err, &target)
}

// IsTimeout checks if the error is or wraps a TimeoutError
func IsTimeout(err error) bool {
	var target *TimeoutError
	return err != nil && errors.As(err, &target)
}

// FormatFault renders a fault with its stack trace when one was captured.
func FormatFault(err error) string {
	if err == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprintf("%+v", err))
}

// Assertions collects failed expectations reported through the testify
// assert.TestingT interface, so test bodies can use the assert package.
//
//	a := new(types.Assertions)
//	assert.Equal(a, "PONG", reply)
//	return a.Err()
type Assertions struct {
	failures []string
}

// Errorf implements assert.TestingT
func (a *Assertions) Errorf(format string, args ...any) {
	a.failures = append(a.failures, strings.TrimSpace(fmt.Sprintf(format, args...)))
}

// Failed reports whether any expectation failed.
func (a *Assertions) Failed() bool {
	return len(a.failures) > 0
}

// Err returns an assertion fault describing every failed expectation, or nil.
func (a *Assertions) Err() error {
	if !a.Failed() {
		return nil
	}
	return errors.WithStack(&AssertionError{Message: strings.Join(a.failures, "\n")})
}

// StageFault attributes a fault to the lifecycle stage that raised it.
type StageFault struct {
	Stage Stage
	Err   error
}

func (e *StageFault) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

// Unwrap implements the errors.Unwrap interface
func (e *StageFault) Unwrap() error {
	return e.Err
}

// Format prints the wrapped fault with its stack trace for %+v.
func (e *StageFault) Format(s fmt.State, verb rune) {
	if verb == 'v' && s.Flag('+') {
		fmt.Fprintf(s, "%s: %+v", e.Stage, e.Err)
		return
	}
	fmt.Fprint(s, e.Error())
}

// StageOf returns the stage a fault is attributed to, or "" when unknown.
func StageOf(err error) Stage {
	var sf *StageFault
	if err != nil && errors.As(err, &sf) {
		return sf.Stage
	}
	return ""
}
