package runner

import (
	"sync"

	"github.com/ethereum-optimism/infra/op-testqueue/types"
)

type event struct {
	kind   string
	test   string
	fault  error
	reason string
}

// recordingSink keeps every notification it receives, in order
type recordingSink struct {
	mu     sync.Mutex
	events []event
}

var _ types.ResultSink = (*recordingSink)(nil)

func (s *recordingSink) add(e event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *recordingSink) StartTestClass(cls *types.Class) { s.add(event{kind: "startClass", test: cls.Name}) }
func (s *recordingSink) StopTestClass(cls *types.Class)  { s.add(event{kind: "stopClass", test: cls.Name}) }
func (s *recordingSink) StartTest(tc *types.TestCase)    { s.add(event{kind: "start", test: tc.ID()}) }
func (s *recordingSink) StopTest(tc *types.TestCase)     { s.add(event{kind: "stop", test: tc.ID()}) }
func (s *recordingSink) AddSuccess(tc *types.TestCase)   { s.add(event{kind: "success", test: tc.ID()}) }
func (s *recordingSink) AddFailure(tc *types.TestCase, fault error) {
	s.add(event{kind: "failure", test: tc.ID(), fault: fault})
}
func (s *recordingSink) AddExpectedFailure(tc *types.TestCase, fault error) {
	s.add(event{kind: "xfail", test: tc.ID(), fault: fault})
}
func (s *recordingSink) AddError(tc *types.TestCase, fault error) {
	s.add(event{kind: "error", test: tc.ID(), fault: fault})
}
func (s *recordingSink) AddSkip(tc *types.TestCase, reason string) {
	s.add(event{kind: "skip", test: tc.ID(), reason: reason})
}

func (s *recordingSink) snapshot() []event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]event(nil), s.events...)
}

// terminals returns the terminal notifications, keyed by test id
func (s *recordingSink) terminals() map[string][]event {
	out := make(map[string][]event)
	for _, e := range s.snapshot() {
		switch e.kind {
		case "success", "failure", "xfail", "error", "skip":
			out[e.test] = append(out[e.test], e)
		}
	}
	return out
}

// kinds returns the event kinds seen for one test, in order
func (s *recordingSink) kinds(test string) []string {
	var out []string
	for _, e := range s.snapshot() {
		if e.test == test {
			out = append(out, e.kind)
		}
	}
	return out
}

// callLog records hook invocations across goroutines
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (c *callLog) add(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, name)
}

func (c *callLog) list() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

func (c *callLog) count(name string) int {
	n := 0
	for _, call := range c.list() {
		if call == name {
			n++
		}
	}
	return n
}
