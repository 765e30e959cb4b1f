package types

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// TestResult captures the outcome of a single test case run
type TestResult struct {
	ID        string
	Name      string
	Index     int
	Status    TestStatus
	Stage     Stage  // Stage that produced the recorded fault
	Error     error  // Recorded fault, nil for success and skip
	Reason    string // Skip reason
	StartTime time.Time
	Duration  time.Duration

	// Faults raised after the outcome was recorded. They never change Status.
	Suppressed []error
}

// ResultStats tracks test statistics for a class run
type ResultStats struct {
	Total            int
	Passed           int
	Failed           int
	ExpectedFailures int
	Errored          int
	Skipped          int
	StartTime        time.Time
	EndTime          time.Time
}

// ClassResult is the aggregated result of one class run.
// Tests are appended in completion order and sorted by declaration order on Finalize.
type ClassResult struct {
	Class      string
	Tag        string
	Sequential bool
	Tests      []*TestResult
	Status     TestStatus
	Stats      ResultStats
	Duration   time.Duration
	ClassError error // Fault raised by setUpClass, if any
}

// NewClassResult creates an empty result for a class run starting now.
func NewClassResult(class, tag string) *ClassResult {
	return &ClassResult{
		Class:  class,
		Tag:    tag,
		Tests:  make([]*TestResult, 0),
		Status: TestStatusSkip,
		Stats:  ResultStats{StartTime: time.Now()},
	}
}

// Add appends a terminal test result and updates the statistics.
func (r *ClassResult) Add(tr *TestResult) {
	r.Tests = append(r.Tests, tr)
	r.Stats.Total++
	switch tr.Status {
	case TestStatusPass:
		r.Stats.Passed++
	case TestStatusFail:
		r.Stats.Failed++
	case TestStatusExpectedFailure:
		r.Stats.ExpectedFailures++
	case TestStatusError:
		r.Stats.Errored++
	case TestStatusSkip:
		r.Stats.Skipped++
	}
}

// Finalize orders the results by declaration and determines the class status.
func (r *ClassResult) Finalize() {
	sort.SliceStable(r.Tests, func(i, j int) bool {
		return r.Tests[i].Index < r.Tests[j].Index
	})
	r.Stats.EndTime = time.Now()
	r.Duration = r.Stats.EndTime.Sub(r.Stats.StartTime)
	r.Status = r.determineStatus()
}

func (r *ClassResult) determineStatus() TestStatus {
	if r.Stats.Failed > 0 || r.Stats.Errored > 0 {
		return TestStatusFail
	}
	if r.Stats.Total == 0 || r.Stats.Skipped == r.Stats.Total {
		return TestStatusSkip
	}
	return TestStatusPass
}

// Test returns the result for a qualified test id.
func (r *ClassResult) Test(id string) (*TestResult, bool) {
	for _, tr := range r.Tests {
		if tr.ID == id {
			return tr, true
		}
	}
	return nil, false
}

// Failing returns the results whose status fails the run.
func (r *ClassResult) Failing() []*TestResult {
	var failing []*TestResult
	for _, tr := range r.Tests {
		if tr.Status.IsFailing() {
			failing = append(failing, tr)
		}
	}
	return failing
}

// String returns a one-line summary of the class run
func (r *ClassResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s (total=%d passed=%d failed=%d errors=%d xfail=%d skipped=%d, %s)",
		r.Class, r.Status, r.Stats.Total, r.Stats.Passed, r.Stats.Failed, r.Stats.Errored,
		r.Stats.ExpectedFailures, r.Stats.Skipped, r.Duration.Round(time.Millisecond))
	if r.ClassError != nil {
		fmt.Fprintf(&b, " setUpClass: %v", r.ClassError)
	}
	return b.String()
}
