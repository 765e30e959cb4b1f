package types

import (
	"fmt"
	"time"
)

// DefaultTestTimeout bounds every lifecycle hook unless configured otherwise
const DefaultTestTimeout = 30 * time.Second

// RunConfig is the run configuration shared by every test case of a class run.
// It is passed by value and never modified once a run has started.
type RunConfig struct {
	TestTimeout time.Duration `json:"test_timeout"`
	Sequential  bool          `json:"sequential"`  // Default dispatch policy for classes that don't declare one
	Concurrency int           `json:"concurrency"` // Maximum in-flight test cases in concurrent mode (0 = unbounded)
}

// DefaultRunConfig returns the configuration used when none is supplied.
func DefaultRunConfig() RunConfig {
	return RunConfig{TestTimeout: DefaultTestTimeout}
}

// Validate checks the configuration for values the runner cannot honour.
func (c RunConfig) Validate() error {
	if c.TestTimeout <= 0 {
		return fmt.Errorf("test timeout must be positive, got %s", c.TestTimeout)
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("concurrency cannot be negative, got %d", c.Concurrency)
	}
	return nil
}
