package types

import "sync"

// TestCase is one method bound to its class for the duration of a class run.
type TestCase struct {
	Class  *Class
	Method Method
	Index  int    // Declaration order within the class
	Tag    string // Tag of the job that produced the case
	Config RunConfig

	mu     sync.Mutex
	values map[string]any // Fixture state shared between the stages of this case
}

// ID returns the qualified test id, "<class>.<method>".
func (tc *TestCase) ID() string {
	return tc.Class.Name + "." + tc.Method.Name
}

// Name returns the method name.
func (tc *TestCase) Name() string {
	return tc.Method.Name
}

// SkipReason reports whether the case is skipped, either by its class or by its method.
// The class reason takes precedence.
func (tc *TestCase) SkipReason() (bool, string) {
	if !tc.Class.Skip && !tc.Method.Skip {
		return false, ""
	}
	if tc.Class.Skip && tc.Class.SkipReason != "" {
		return true, tc.Class.SkipReason
	}
	return true, tc.Method.SkipReason
}

// Set stores fixture state for later stages of the same case.
func (tc *TestCase) Set(key string, value any) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if tc.values == nil {
		tc.values = make(map[string]any)
	}
	tc.values[key] = value
}

// Get loads fixture state stored by an earlier stage.
func (tc *TestCase) Get(key string) (any, bool) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	v, ok := tc.values[key]
	return v, ok
}
