package types

import (
	"context"
	"fmt"
	"time"
)

// Hook is a test-case lifecycle hook. A nil Hook is a no-op.
//
// A hook must return once ctx is done. A hook that overruns its timeout is
// abandoned but keeps running in its own goroutine, possibly at the same time
// as the tearDown of the same test case.
type Hook func(ctx context.Context, tc *TestCase) error

// ClassHook is a class-level lifecycle hook. A nil ClassHook is a no-op.
// It must return once ctx is done, like Hook.
type ClassHook func(ctx context.Context, cls *Class) error

// Method is one test function of a class.
type Method struct {
	Name       string
	Body       Hook
	Skip       bool
	SkipReason string

	// ExpectedFailure declares that the body is known to fail. A fault from the body
	// is then reported as an expected failure and a passing body as an error.
	ExpectedFailure bool
}

// Class is the hook record of a test class. It is filled once at registration
// and never mutated while a run is in progress.
type Class struct {
	Name       string
	Tag        string
	Skip       bool
	SkipReason string

	// Sequential overrides RunConfig.Sequential for this class when set
	Sequential *bool
	// Timeout overrides RunConfig.TestTimeout for this class when non-zero
	Timeout time.Duration

	SetUpClass    ClassHook
	TearDownClass ClassHook

	PreSetup     Hook
	SetUp        Hook
	TearDown     Hook
	PostTeardown Hook

	Methods []Method

	// Matchers default to IsAssertion and IsExpectedFailure
	FailureMatcher         FaultMatcher
	ExpectedFailureMatcher FaultMatcher
}

// Validate rejects classes whose methods cannot be told apart in results.
func (c *Class) Validate() error {
	seen := make(map[string]bool, len(c.Methods))
	for i, m := range c.Methods {
		if m.Name == "" {
			return fmt.Errorf("class %s: method %d has no name", c.Name, i)
		}
		if seen[m.Name] {
			return fmt.Errorf("class %s: duplicate method %s", c.Name, m.Name)
		}
		seen[m.Name] = true
	}
	return nil
}

// CountTestCases returns the number of test cases the class will produce.
func (c *Class) CountTestCases() int {
	return len(c.Methods)
}

// IsSequential resolves the dispatch policy for the class.
func (c *Class) IsSequential(cfg RunConfig) bool {
	if c.Sequential != nil {
		return *c.Sequential
	}
	return cfg.Sequential
}

// EffectiveConfig applies the class overrides to a run configuration.
func (c *Class) EffectiveConfig(cfg RunConfig) RunConfig {
	if c.Timeout > 0 {
		cfg.TestTimeout = c.Timeout
	}
	cfg.Sequential = c.IsSequential(cfg)
	return cfg
}

// Failure returns the class's failure matcher.
func (c *Class) Failure() FaultMatcher {
	if c.FailureMatcher != nil {
		return c.FailureMatcher
	}
	return IsAssertion
}

// ExpectedFailure returns the class's expected-failure matcher.
func (c *Class) ExpectedFailure() FaultMatcher {
	if c.ExpectedFailureMatcher != nil {
		return c.ExpectedFailureMatcher
	}
	return IsExpectedFailure
}

// Cases binds every method to the class, in declaration order.
// An empty tag falls back to the class tag.
func (c *Class) Cases(tag string, cfg RunConfig) []*TestCase {
	if tag == "" {
		tag = c.Tag
	}
	cfg = c.EffectiveConfig(cfg)
	cases := make([]*TestCase, 0, len(c.Methods))
	for i, m := range c.Methods {
		cases = append(cases, &TestCase{
			Class:  c,
			Method: m,
			Index:  i,
			Tag:    tag,
			Config: cfg,
			values: make(map[string]any),
		})
	}
	return cases
}

// Bool returns a pointer to b, for optional flags like Class.Sequential
func Bool(b bool) *bool {
	return &b
}
