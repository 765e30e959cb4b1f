package store

import (
	"context"
	"fmt"

	"github.com/ethereum-optimism/infra/op-testqueue/queue"
	"github.com/ethereum/go-ethereum/log"
)

// Store persists job results through a Connection
type Store struct {
	conn Connection
	log  log.Logger
}

// NewStore wraps conn. The store does not own the connection.
func NewStore(conn Connection, logger log.Logger) *Store {
	if logger == nil {
		logger = log.New()
	}
	return &Store{conn: conn, log: logger.New("component", "store")}
}

// SaveJobResult writes one class_runs row and one test_results row per test,
// in a single transaction.
func (s *Store) SaveJobResult(ctx context.Context, result *queue.JobResult) error {
	s.logStatusChange(ctx, result)

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return err
	}

	run := ClassRun{
		JobID:       result.JobID,
		Class:       result.Class,
		Tag:         result.Tag,
		Worker:      result.Worker,
		Status:      string(result.Status),
		ClassStatus: string(result.ClassStatus),
		Total:       result.Stats.Total,
		Passed:      result.Stats.Passed,
		Failed:      result.Stats.Failed,
		XFail:       result.Stats.ExpectedFailures,
		Errored:     result.Stats.Errored,
		Skipped:     result.Stats.Skipped,
		ClassError:  result.ClassError,
		Error:       result.Error,
		StartedAt:   result.TimeStart,
		StoppedAt:   result.TimeEnd,
	}
	if err := tx.InsertClassRun(ctx, run); err != nil {
		tx.Rollback(ctx)
		return err
	}

	for _, t := range result.Tests {
		tr := TestResult{
			JobID:   result.JobID,
			TestID:  t.ID,
			Name:    t.Name,
			Status:  string(t.Status),
			Stage:   string(t.Stage),
			Message: t.Error,
			Reason:  t.Reason,
			Runtime: t.Duration.Seconds(),
		}
		if _, err := tx.InsertTestResult(ctx, tr); err != nil {
			tx.Rollback(ctx)
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit job result %s: %w", result.JobID, err)
	}
	s.log.Debug("Stored job result", "job", result.JobID, "tests", len(result.Tests))
	return nil
}

// RecentRuns returns the latest runs of class, newest first
func (s *Store) RecentRuns(ctx context.Context, class string, limit int) ([]ClassRun, error) {
	return s.conn.RecentRuns(ctx, class, limit)
}

// logStatusChange warns when a class flips between passing and failing
func (s *Store) logStatusChange(ctx context.Context, result *queue.JobResult) {
	runs, err := s.conn.RecentRuns(ctx, result.Class, 1)
	if err != nil {
		s.log.Debug("Failed to load previous run", "class", result.Class, "err", err)
		return
	}
	if len(runs) == 0 || runs[0].ClassStatus == string(result.ClassStatus) {
		return
	}
	s.log.Warn("Class status changed", "class", result.Class, "job", result.JobID,
		"previous", runs[0].ClassStatus, "current", result.ClassStatus, "previous_job", runs[0].JobID)
}
