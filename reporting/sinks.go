package reporting

import (
	"github.com/ethereum-optimism/infra/op-testqueue/metrics"
	"github.com/ethereum-optimism/infra/op-testqueue/types"
	"github.com/ethereum/go-ethereum/log"
)

var (
	_ types.ResultSink = (*LogSink)(nil)
	_ types.ResultSink = (*MetricsSink)(nil)
)

// LogSink writes one structured log line per lifecycle event
type LogSink struct {
	log log.Logger
}

// NewLogSink creates a sink logging through logger
func NewLogSink(logger log.Logger) *LogSink {
	if logger == nil {
		logger = log.New()
	}
	return &LogSink{log: logger.New("component", "log-sink")}
}

func (s *LogSink) StartTestClass(cls *types.Class) {
	s.log.Info("Class started", "class", cls.Name, "tests", cls.CountTestCases())
}

func (s *LogSink) StopTestClass(cls *types.Class) {
	s.log.Info("Class stopped", "class", cls.Name)
}

func (s *LogSink) StartTest(tc *types.TestCase) {
	s.log.Debug("Test started", "test", tc.ID(), "tag", tc.Tag)
}

func (s *LogSink) StopTest(tc *types.TestCase) {
	s.log.Debug("Test stopped", "test", tc.ID())
}

func (s *LogSink) AddSuccess(tc *types.TestCase) {
	s.log.Info("Test passed", "test", tc.ID())
}

func (s *LogSink) AddFailure(tc *types.TestCase, fault error) {
	s.log.Warn("Test failed", "test", tc.ID(), "stage", types.StageOf(fault), "err", fault)
}

func (s *LogSink) AddExpectedFailure(tc *types.TestCase, fault error) {
	s.log.Info("Test failed as expected", "test", tc.ID(), "err", fault)
}

func (s *LogSink) AddError(tc *types.TestCase, fault error) {
	s.log.Error("Test errored", "test", tc.ID(), "stage", types.StageOf(fault), "err", types.FormatFault(fault))
}

func (s *LogSink) AddSkip(tc *types.TestCase, reason string) {
	s.log.Info("Test skipped", "test", tc.ID(), "reason", reason)
}

// MetricsSink counts test outcomes per class
type MetricsSink struct {
	types.NoopSink
}

func NewMetricsSink() *MetricsSink {
	return &MetricsSink{}
}

func (s *MetricsSink) AddSuccess(tc *types.TestCase) {
	metrics.RecordOutcome(tc.Class.Name, string(types.TestStatusPass))
}

func (s *MetricsSink) AddFailure(tc *types.TestCase, _ error) {
	metrics.RecordOutcome(tc.Class.Name, string(types.TestStatusFail))
}

func (s *MetricsSink) AddExpectedFailure(tc *types.TestCase, _ error) {
	metrics.RecordOutcome(tc.Class.Name, string(types.TestStatusExpectedFailure))
}

func (s *MetricsSink) AddError(tc *types.TestCase, fault error) {
	metrics.RecordOutcome(tc.Class.Name, string(types.TestStatusError))
	metrics.RecordErrorDetails(string(types.StageOf(fault)), fault)
}

func (s *MetricsSink) AddSkip(tc *types.TestCase, _ string) {
	metrics.RecordOutcome(tc.Class.Name, string(types.TestStatusSkip))
}
