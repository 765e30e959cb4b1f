// Package exitcodes defines the standard exit codes used by op-testqueue.
package exitcodes

// Exit code constants used by op-testqueue:
//
// * Success (0): every class run passed, or was skipped
// * TestFailure (1): at least one test failed or errored, or a job could not run
// * RuntimeErr (2): configuration or backend errors
const (
	Success     = 0 // All tests pass
	TestFailure = 1 // Test failures
	RuntimeErr  = 2 // Runtime errors
)
