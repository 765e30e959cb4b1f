package metrics

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	MetricsNamespace = "testqueue"
)

var (
	Debug                bool
	validOutcomes        = []string{"pass", "fail", "xfail", "error", "skip"}
	nonAlphanumericRegex = regexp.MustCompile(`[^a-zA-Z ]+`)

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	outcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "test_outcomes_total",
		Help:      "Count of test case outcomes",
	}, []string{
		"class",
		"outcome",
	})

	hookTimeoutsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "hook_timeouts_total",
		Help:      "Count of lifecycle hooks that exceeded the test timeout",
	}, []string{
		"stage",
	})

	classRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "class_runs_total",
		Help:      "Count of class runs",
	}, []string{
		"class",
		"result",
	})

	classRunDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "class_run_duration_seconds",
		Help:      "Duration of the last run of a class",
	}, []string{
		"class",
	})

	jobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "jobs_total",
		Help:      "Count of jobs processed by workers",
	}, []string{
		"result",
	})

	jobsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "jobs_in_flight",
		Help:      "Number of jobs currently executing",
	})
)

// errToLabel tries to make the error string a more valid Prometheus label
func errToLabel(err error) string {
	if err == nil {
		return "nil"
	}
	errClean := nonAlphanumericRegex.ReplaceAllString(err.Error(), "")
	errClean = strings.ReplaceAll(errClean, " ", "_")
	errClean = strings.ReplaceAll(errClean, "__", "_")
	return errClean
}

func RecordError(error string) {
	if Debug {
		log.Debug("metric inc",
			"m", "errors_total",
			"error", error,
		)
	}
	errorsTotal.WithLabelValues(error).Inc()
}

// RecordErrorDetails concats the error message to the label
// and also tries to clean the label to be a valid Prometheus label
func RecordErrorDetails(label string, err error) {
	if err == nil {
		return
	}
	label = fmt.Sprintf("%s.%s", label, errToLabel(err))
	RecordError(label)
}

func RecordOutcome(class string, outcome string) {
	if !isValidOutcome(outcome) {
		log.Error("RecordOutcome - invalid outcome", "outcome", outcome)
		return
	}
	if Debug {
		log.Debug("metric inc",
			"m", "test_outcomes_total",
			"class", class,
			"outcome", outcome)
	}
	outcomesTotal.WithLabelValues(class, outcome).Inc()
}

func RecordHookTimeout(stage string) {
	hookTimeoutsTotal.WithLabelValues(stage).Inc()
}

func RecordClassRun(class string, result string, duration time.Duration) {
	classRunsTotal.WithLabelValues(class, result).Inc()
	classRunDuration.WithLabelValues(class).Set(duration.Seconds())
}

func RecordJob(result string) {
	jobsTotal.WithLabelValues(result).Inc()
}

// TrackJob marks a job as in flight until the returned func is called.
func TrackJob() func() {
	jobsInFlight.Inc()
	return jobsInFlight.Dec
}

func isValidOutcome(outcome string) bool {
	return slices.Contains(validOutcomes, outcome)
}
