package runner

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ethereum-optimism/infra/op-testqueue/types"
	"github.com/stretchr/testify/assert"
)

type quotaError struct{}

func (quotaError) Error() string { return "quota exceeded" }

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		fault    error
		failure  types.FaultMatcher
		expected types.FaultMatcher
		want     types.TestStatus
	}{
		{
			name:  "assertion is a failure",
			fault: types.Failf("want %d, got %d", 1, 2),
			want:  types.TestStatusFail,
		},
		{
			name:  "wrapped assertion is a failure",
			fault: fmt.Errorf("body: %w", types.Failf("nope")),
			want:  types.TestStatusFail,
		},
		{
			name:  "stage fault around assertion is a failure",
			fault: &types.StageFault{Stage: types.StageSetUp, Err: types.Failf("nope")},
			want:  types.TestStatusFail,
		},
		{
			name:  "expected failure marker",
			fault: &types.ExpectedFailureError{Err: types.Failf("known bug")},
			want:  types.TestStatusExpectedFailure,
		},
		{
			name:  "plain error is an error",
			fault: errors.New("connection refused"),
			want:  types.TestStatusError,
		},
		{
			name:  "timeout is an error",
			fault: types.NewTimeoutError(types.StageBody, time.Second),
			want:  types.TestStatusError,
		},
		{
			name:  "unexpected success is an error",
			fault: &types.UnexpectedSuccessError{Test: "a.b"},
			want:  types.TestStatusError,
		},
		{
			name:    "custom failure matcher",
			fault:   fmt.Errorf("call: %w", quotaError{}),
			failure: func(err error) bool { return errors.As(err, new(quotaError)) },
			want:    types.TestStatusFail,
		},
		{
			name:     "custom expected failure matcher",
			fault:    quotaError{},
			expected: func(err error) bool { return errors.As(err, new(quotaError)) },
			want:     types.TestStatusExpectedFailure,
		},
		{
			name:     "failure matcher wins over expected failure matcher",
			fault:    types.Failf("both"),
			expected: func(error) bool { return true },
			want:     types.TestStatusFail,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.fault, tt.failure, tt.expected))
		})
	}
}
