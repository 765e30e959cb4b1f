package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS class_runs (
	job_id        TEXT PRIMARY KEY,
	class         TEXT NOT NULL,
	tag           TEXT NOT NULL DEFAULT '',
	worker        TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL,
	class_status  TEXT NOT NULL DEFAULT '',
	total         INTEGER NOT NULL DEFAULT 0,
	passed        INTEGER NOT NULL DEFAULT 0,
	failed        INTEGER NOT NULL DEFAULT 0,
	xfail         INTEGER NOT NULL DEFAULT 0,
	errored       INTEGER NOT NULL DEFAULT 0,
	skipped       INTEGER NOT NULL DEFAULT 0,
	class_error   TEXT NOT NULL DEFAULT '',
	error         TEXT NOT NULL DEFAULT '',
	started_at    TIMESTAMPTZ NOT NULL,
	stopped_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS test_results (
	id          SERIAL PRIMARY KEY,
	job_id      TEXT NOT NULL REFERENCES class_runs (job_id) ON DELETE CASCADE,
	test_id     TEXT NOT NULL,
	name        TEXT NOT NULL,
	status      TEXT NOT NULL,
	stage       TEXT NOT NULL DEFAULT '',
	message     TEXT NOT NULL DEFAULT '',
	reason      TEXT NOT NULL DEFAULT '',
	runtime     DOUBLE PRECISION NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS class_runs_class_started_at ON class_runs (class, started_at DESC);
`

type ClassRun struct {
	JobID       string
	Class       string
	Tag         string
	Worker      string
	Status      string
	ClassStatus string
	Total       int
	Passed      int
	Failed      int
	XFail       int
	Errored     int
	Skipped     int
	ClassError  string
	Error       string
	StartedAt   time.Time
	StoppedAt   time.Time
}

type TestResult struct {
	ID      int
	JobID   string
	TestID  string
	Name    string
	Status  string
	Stage   string
	Message string
	Reason  string
	Runtime float64
}

type Connection interface {
	Migrate(ctx context.Context) error
	RecentRuns(ctx context.Context, class string, limit int) ([]ClassRun, error)

	Begin(ctx context.Context) (Transactor, error)
	Close() error
}

type Transactor interface {
	InsertClassRun(ctx context.Context, run ClassRun) error
	InsertTestResult(ctx context.Context, tr TestResult) (int, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context)
}

type PGXDB struct {
	conn *pgxpool.Pool
}

var _ Connection = (*PGXDB)(nil)

func New(ctx context.Context, uri string) (*PGXDB, error) {
	conn, err := pgxpool.New(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to db: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	return &PGXDB{conn: conn}, nil
}

func (p *PGXDB) Migrate(ctx context.Context) error {
	if _, err := p.conn.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (p *PGXDB) RecentRuns(ctx context.Context, class string, limit int) ([]ClassRun, error) {
	sql := `
SELECT job_id, class, tag, worker, status, class_status, total, passed, failed, xfail, errored, skipped,
       class_error, error, started_at, stopped_at
FROM class_runs WHERE class = $1 ORDER BY started_at DESC LIMIT $2
`

	rows, err := p.conn.Query(ctx, sql, class, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query class runs: %w", err)
	}
	runs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ClassRun, error) {
		var r ClassRun
		err := row.Scan(&r.JobID, &r.Class, &r.Tag, &r.Worker, &r.Status, &r.ClassStatus,
			&r.Total, &r.Passed, &r.Failed, &r.XFail, &r.Errored, &r.Skipped,
			&r.ClassError, &r.Error, &r.StartedAt, &r.StoppedAt)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan class runs: %w", err)
	}
	return runs, nil
}

func (p *PGXDB) Begin(ctx context.Context) (Transactor, error) {
	tx, err := p.conn.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	return &PGXTransactor{tx: tx}, nil
}

func (p *PGXDB) Close() error {
	p.conn.Close()
	return nil
}

type PGXTransactor struct {
	tx  pgx.Tx
	mtx sync.Mutex
}

func (p *PGXTransactor) InsertClassRun(ctx context.Context, r ClassRun) error {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	sql := `
INSERT INTO class_runs (job_id, class, tag, worker, status, class_status, total, passed, failed, xfail,
                        errored, skipped, class_error, error, started_at, stopped_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16) ON CONFLICT DO NOTHING
`

	if _, err := p.tx.Exec(ctx,
		sql,
		r.JobID,
		r.Class,
		r.Tag,
		r.Worker,
		r.Status,
		r.ClassStatus,
		r.Total,
		r.Passed,
		r.Failed,
		r.XFail,
		r.Errored,
		r.Skipped,
		r.ClassError,
		r.Error,
		r.StartedAt,
		r.StoppedAt,
	); err != nil {
		return fmt.Errorf("failed to insert class run: %w", err)
	}
	return nil
}

func (p *PGXTransactor) InsertTestResult(ctx context.Context, tr TestResult) (int, error) {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	sql := `
INSERT INTO test_results (job_id, test_id, name, status, stage, message, reason, runtime)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id
`

	var id int
	if err := p.tx.QueryRow(ctx,
		sql,
		tr.JobID,
		tr.TestID,
		tr.Name,
		tr.Status,
		tr.Stage,
		tr.Message,
		tr.Reason,
		tr.Runtime,
	).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to insert test result: %w", err)
	}
	return id, nil
}

func (p *PGXTransactor) Commit(ctx context.Context) error {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return p.tx.Commit(ctx)
}

func (p *PGXTransactor) Rollback(ctx context.Context) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	_ = p.tx.Rollback(ctx)
}
