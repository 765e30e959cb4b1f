package runner

import "github.com/ethereum-optimism/infra/op-testqueue/types"

// Classify maps a fault onto an outcome status. The failure matcher is checked
// first, then the expected-failure matcher; anything else is an error.
// Nil matchers fall back to the defaults.
func Classify(fault error, failure, expectedFailure types.FaultMatcher) types.TestStatus {
	if failure == nil {
		failure = types.IsAssertion
	}
	if expectedFailure == nil {
		expectedFailure = types.IsExpectedFailure
	}
	switch {
	case failure(fault):
		return types.TestStatusFail
	case expectedFailure(fault):
		return types.TestStatusExpectedFailure
	default:
		return types.TestStatusError
	}
}
