package types

// ResultSink receives the lifecycle notifications of a class run.
// Implementations must tolerate interleaved calls for different test cases
// when a class is dispatched concurrently.
type ResultSink interface {
	StartTestClass(cls *Class)
	StopTestClass(cls *Class)
	StartTest(tc *TestCase)
	StopTest(tc *TestCase)
	AddSuccess(tc *TestCase)
	AddFailure(tc *TestCase, fault error)
	AddExpectedFailure(tc *TestCase, fault error)
	AddError(tc *TestCase, fault error)
	AddSkip(tc *TestCase, reason string)
}

// SuppressedFaultSink is implemented by sinks that keep faults which were
// logged but not recorded because the test already had an outcome.
type SuppressedFaultSink interface {
	AddSuppressed(tc *TestCase, stage Stage, fault error)
}

// NoopSink ignores every notification. Embed it to implement part of ResultSink.
type NoopSink struct{}

func (NoopSink) StartTestClass(*Class)               {}
func (NoopSink) StopTestClass(*Class)                {}
func (NoopSink) StartTest(*TestCase)                 {}
func (NoopSink) StopTest(*TestCase)                  {}
func (NoopSink) AddSuccess(*TestCase)                {}
func (NoopSink) AddFailure(*TestCase, error)         {}
func (NoopSink) AddExpectedFailure(*TestCase, error) {}
func (NoopSink) AddError(*TestCase, error)           {}
func (NoopSink) AddSkip(*TestCase, string)           {}

var _ ResultSink = NoopSink{}
