package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestErrToLabel(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: "nil"},
		{name: "plain", err: errors.New("boom"), want: "boom"},
		{name: "spaces and punctuation", err: errors.New("setUp: no database!"), want: "setUp_no_database"},
		{name: "digits dropped", err: errors.New("timed out after 30s"), want: "timed_out_after_s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errToLabel(tt.err))
		})
	}
}

func TestRecordErrorDetails(t *testing.T) {
	// nil errors are not recorded
	RecordErrorDetails("dequeue", nil)
	assert.Zero(t, testutil.ToFloat64(errorsTotal.WithLabelValues("dequeue.nil")))

	RecordErrorDetails("dequeue", errors.New("connection refused"))
	assert.Equal(t, 1.0, testutil.ToFloat64(errorsTotal.WithLabelValues("dequeue.connection_refused")))
}

func TestRecordOutcome(t *testing.T) {
	RecordOutcome("ping", "pass")
	RecordOutcome("ping", "pass")
	RecordOutcome("ping", "bogus")
	assert.Equal(t, 2.0, testutil.ToFloat64(outcomesTotal.WithLabelValues("ping", "pass")))
	assert.Zero(t, testutil.ToFloat64(outcomesTotal.WithLabelValues("ping", "bogus")))
}

func TestRecordClassRun(t *testing.T) {
	RecordClassRun("lifecycle", "fail", 1500*time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(classRunsTotal.WithLabelValues("lifecycle", "fail")))
	assert.Equal(t, 1.5, testutil.ToFloat64(classRunDuration.WithLabelValues("lifecycle")))
}

func TestTrackJob(t *testing.T) {
	done := TrackJob()
	assert.Equal(t, 1.0, testutil.ToFloat64(jobsInFlight))
	done()
	assert.Zero(t, testutil.ToFloat64(jobsInFlight))

	RecordHookTimeout("body")
	RecordJob("success")
	assert.Equal(t, 1.0, testutil.ToFloat64(hookTimeoutsTotal.WithLabelValues("body")))
}
