package testqueue

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRuntimeError(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("startup: %w", NewRuntimeError(cause))

	assert.True(t, IsRuntimeError(err))
	assert.False(t, IsTestFailureError(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "startup: runtime error: connection refused", err.Error())
	assert.False(t, IsRuntimeError(nil))
}

func TestTestFailureError(t *testing.T) {
	err := NewTestFailureError("FAIL: 2 jobs", "a_1", "b_2")
	assert.True(t, IsTestFailureError(err))
	assert.False(t, IsRuntimeError(err))
	assert.Equal(t, "test failure: FAIL: 2 jobs (failed jobs: a_1, b_2)", err.Error())

	assert.Equal(t, "test failure: FAIL", NewTestFailureError("FAIL").Error())
	assert.True(t, IsTestFailureError(errors.Join(errors.New("failed to start"), err)))
	assert.False(t, IsTestFailureError(nil))
}
