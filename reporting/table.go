package reporting

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/acarl005/stripansi"
	"github.com/ethereum-optimism/infra/op-testqueue/queue"
	"github.com/ethereum-optimism/infra/op-testqueue/types"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

const maxErrorWidth = 60

// Summary aggregates the job results of one run
type Summary struct {
	Status   types.TestStatus
	Jobs     int
	Stats    types.ResultStats
	Duration time.Duration
}

// Summarize aggregates job results. A job that did not run counts as failed.
func Summarize(results []*queue.JobResult, duration time.Duration) Summary {
	s := Summary{Jobs: len(results), Duration: duration, Status: types.TestStatusSkip}
	failed := false
	for _, r := range results {
		if r.Failed() {
			failed = true
		}
		s.Stats.Total += r.Stats.Total
		s.Stats.Passed += r.Stats.Passed
		s.Stats.Failed += r.Stats.Failed
		s.Stats.ExpectedFailures += r.Stats.ExpectedFailures
		s.Stats.Errored += r.Stats.Errored
		s.Stats.Skipped += r.Stats.Skipped
	}
	switch {
	case failed:
		s.Status = types.TestStatusFail
	case s.Stats.Total > s.Stats.Skipped:
		s.Status = types.TestStatusPass
	}
	return s
}

func (s Summary) String() string {
	return fmt.Sprintf("%s: %d jobs, %d tests (passed=%d failed=%d errors=%d xfail=%d skipped=%d) in %s",
		strings.ToUpper(string(s.Status)), s.Jobs, s.Stats.Total, s.Stats.Passed, s.Stats.Failed,
		s.Stats.Errored, s.Stats.ExpectedFailures, s.Stats.Skipped, formatDuration(s.Duration))
}

// TableFormatter renders job results as a console table
type TableFormatter struct {
	title   string
	color   bool
	details bool
}

// NewTableFormatter creates a formatter. With details set, the traces of
// failing tests are printed below the table.
func NewTableFormatter(title string, color, details bool) *TableFormatter {
	return &TableFormatter{title: title, color: color, details: details}
}

// Format writes the table for results to w
func (f *TableFormatter) Format(w io.Writer, results []*queue.JobResult, duration time.Duration) error {
	summary := Summarize(results, duration)

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(fmt.Sprintf("%s (%s)", f.title, formatDuration(duration)))
	t.AppendHeader(table.Row{
		"Type", "ID", "Duration", "Tests", "Passed", "Failed", "Errors", "Skipped", "Status", "Error",
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Type", AutoMerge: true},
		{Name: "ID", WidthMax: 50, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Tests", Align: text.AlignRight},
		{Name: "Passed", Align: text.AlignRight},
		{Name: "Failed", Align: text.AlignRight},
		{Name: "Errors", Align: text.AlignRight},
		{Name: "Skipped", Align: text.AlignRight},
		{Name: "Error", WidthMax: maxErrorWidth, WidthMaxEnforcer: text.WrapSoft},
	})

	for _, r := range results {
		status := r.ClassStatus
		if r.Status != queue.JobStatusDone {
			status = types.TestStatus(r.Status)
		}
		classErr := r.Error
		if classErr == "" {
			classErr = r.ClassError
		}
		t.AppendRow(table.Row{
			"Class",
			r.Class,
			formatDuration(r.TimeEnd.Sub(r.TimeStart)),
			r.Stats.Total,
			r.Stats.Passed,
			r.Stats.Failed,
			r.Stats.Errored,
			r.Stats.Skipped,
			resultString(status),
			cleanError(classErr),
		})
		for i, tr := range r.Tests {
			prefix := "├─"
			if i == len(r.Tests)-1 {
				prefix = "└─"
			}
			detail := cleanError(tr.Error)
			if tr.Status == types.TestStatusSkip {
				detail = tr.Reason
			}
			t.AppendRow(table.Row{
				"",
				fmt.Sprintf("%s %s", prefix, tr.Name),
				formatDuration(tr.Duration),
				"1",
				boolToInt(tr.Status == types.TestStatusPass || tr.Status == types.TestStatusExpectedFailure),
				boolToInt(tr.Status == types.TestStatusFail),
				boolToInt(tr.Status == types.TestStatusError),
				boolToInt(tr.Status == types.TestStatusSkip),
				resultString(tr.Status),
				detail,
			})
		}
		t.AppendSeparator()
	}

	if f.color {
		switch summary.Status {
		case types.TestStatusPass:
			t.SetStyle(table.StyleColoredBlackOnGreenWhite)
		case types.TestStatusSkip:
			t.SetStyle(table.StyleColoredBlackOnYellowWhite)
		default:
			t.SetStyle(table.StyleColoredBlackOnRedWhite)
		}
	}

	t.AppendFooter(table.Row{
		"TOTAL",
		"",
		formatDuration(duration),
		summary.Stats.Total,
		summary.Stats.Passed + summary.Stats.ExpectedFailures,
		summary.Stats.Failed,
		summary.Stats.Errored,
		summary.Stats.Skipped,
		resultString(summary.Status),
		"",
	})
	t.Render()

	if _, err := fmt.Fprintln(w, summary.String()); err != nil {
		return err
	}
	if f.details {
		return writeFailureDetails(w, results)
	}
	return nil
}

// writeFailureDetails prints the full trace of every failing test
func writeFailureDetails(w io.Writer, results []*queue.JobResult) error {
	for _, r := range results {
		for _, tr := range r.Tests {
			if !tr.Status.IsFailing() {
				continue
			}
			trace := tr.Trace
			if trace == "" {
				trace = tr.Error
			}
			if _, err := fmt.Fprintf(w, "\n=== %s %s [%s]\n%s\n", strings.ToUpper(string(tr.Status)), tr.ID, tr.Stage, stripansi.Strip(trace)); err != nil {
				return err
			}
			for _, s := range tr.Suppressed {
				if _, err := fmt.Fprintf(w, "  suppressed: %s\n", stripansi.Strip(s)); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// cleanError keeps the first line of a fault message without colour codes
func cleanError(msg string) string {
	msg = stripansi.Strip(msg)
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i] + " ..."
	}
	return msg
}

func resultString(status types.TestStatus) string {
	switch status {
	case types.TestStatusPass:
		return "✓ pass"
	case types.TestStatusExpectedFailure:
		return "✓ xfail"
	case types.TestStatusSkip:
		return "- skip"
	case types.TestStatusError:
		return "✗ error"
	default:
		return "✗ " + string(status)
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// formatDuration formats a duration in seconds with 1 decimal place
func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}
