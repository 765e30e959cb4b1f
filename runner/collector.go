package runner

import (
	"sync"
	"time"

	"github.com/ethereum-optimism/infra/op-testqueue/types"
	"github.com/ethereum/go-ethereum/log"
)

var (
	_ types.ResultSink          = (*Collector)(nil)
	_ types.SuppressedFaultSink = (*Collector)(nil)
)

// Collector is the result sink of a single class run. It accumulates outcomes
// into a ClassResult and forwards every notification to its listeners.
// All notifications are serialized, so listeners never observe interleaved
// partial writes.
type Collector struct {
	mu        sync.Mutex
	log       log.Logger
	listeners []types.ResultSink
	result    *types.ClassResult

	// Keyed by TestCase.Index: method names are not guaranteed unique
	inFlight map[int]*types.TestResult
	recorded map[int]bool
}

// NewCollector creates a collector for one run of the named class.
func NewCollector(class, tag string, logger log.Logger, listeners ...types.ResultSink) *Collector {
	if logger == nil {
		logger = log.New()
	}
	return &Collector{
		log:       logger,
		listeners: listeners,
		result:    types.NewClassResult(class, tag),
		inFlight:  make(map[int]*types.TestResult),
		recorded:  make(map[int]bool),
	}
}

func (c *Collector) StartTestClass(cls *types.Class) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, l := range c.listeners {
		l.StartTestClass(cls)
	}
}

func (c *Collector) StopTestClass(cls *types.Class) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, l := range c.listeners {
		l.StopTestClass(cls)
	}
}

func (c *Collector) StartTest(tc *types.TestCase) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight[tc.Index] = &types.TestResult{
		ID:        tc.ID(),
		Name:      tc.Name(),
		Index:     tc.Index,
		StartTime: time.Now(),
	}
	for _, l := range c.listeners {
		l.StartTest(tc)
	}
}

func (c *Collector) StopTest(tc *types.TestCase) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tr, ok := c.inFlight[tc.Index]
	if !ok {
		c.log.Warn("Stop notification for a test that was not started", "test", tc.ID())
		return
	}
	delete(c.inFlight, tc.Index)
	if c.recorded[tc.Index] {
		tr.Duration = time.Since(tr.StartTime)
		c.result.Add(tr)
	} else {
		c.log.Error("Test stopped without a terminal notification", "test", tc.ID())
	}
	for _, l := range c.listeners {
		l.StopTest(tc)
	}
}

func (c *Collector) AddSuccess(tc *types.TestCase) {
	c.terminal(tc, types.TestStatusPass, "", nil, "", func(l types.ResultSink) { l.AddSuccess(tc) })
}

func (c *Collector) AddFailure(tc *types.TestCase, fault error) {
	c.terminal(tc, types.TestStatusFail, types.StageOf(fault), fault, "", func(l types.ResultSink) { l.AddFailure(tc, fault) })
}

func (c *Collector) AddExpectedFailure(tc *types.TestCase, fault error) {
	c.terminal(tc, types.TestStatusExpectedFailure, types.StageOf(fault), fault, "", func(l types.ResultSink) { l.AddExpectedFailure(tc, fault) })
}

func (c *Collector) AddError(tc *types.TestCase, fault error) {
	c.terminal(tc, types.TestStatusError, types.StageOf(fault), fault, "", func(l types.ResultSink) { l.AddError(tc, fault) })
}

func (c *Collector) AddSkip(tc *types.TestCase, reason string) {
	c.terminal(tc, types.TestStatusSkip, "", nil, reason, func(l types.ResultSink) { l.AddSkip(tc, reason) })
}

// AddSuppressed keeps a fault that was logged after the test already had an outcome.
func (c *Collector) AddSuppressed(tc *types.TestCase, stage types.Stage, fault error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if tr, ok := c.inFlight[tc.Index]; ok {
		tr.Suppressed = append(tr.Suppressed, &types.StageFault{Stage: stage, Err: fault})
	}
}

// terminal records the outcome of a test. A second terminal notification for
// the same test is logged and dropped: outcomes are immutable once recorded.
func (c *Collector) terminal(tc *types.TestCase, status types.TestStatus, stage types.Stage, fault error, reason string, forward func(types.ResultSink)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := tc.ID()
	if c.recorded[tc.Index] {
		c.log.Error("Dropping second outcome for test", "test", id, "index", tc.Index, "status", status, "err", fault)
		return
	}
	tr, ok := c.inFlight[tc.Index]
	if !ok {
		c.log.Warn("Outcome for a test that was not started", "test", id, "status", status)
		tr = &types.TestResult{ID: id, Name: tc.Name(), Index: tc.Index, StartTime: time.Now()}
		c.inFlight[tc.Index] = tr
	}
	c.recorded[tc.Index] = true
	tr.Status = status
	tr.Stage = stage
	tr.Error = fault
	tr.Reason = reason
	for _, l := range c.listeners {
		forward(l)
	}
}

// Result finalizes and returns the aggregated result. Tests still in flight
// with a recorded outcome are flushed first.
func (c *Collector) Result() *types.ClassResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	for idx, tr := range c.inFlight {
		if c.recorded[idx] {
			tr.Duration = time.Since(tr.StartTime)
			c.result.Add(tr)
		}
		delete(c.inFlight, idx)
	}
	c.result.Finalize()
	return c.result
}

// setClassError notes the setUpClass fault on the aggregated result
func (c *Collector) setClassError(err error, sequential bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.result.ClassError = err
	c.result.Sequential = sequential
}
