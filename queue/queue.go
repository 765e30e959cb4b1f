package queue

import (
	"context"
	"errors"
)

// ErrClosed is returned by operations on a closed queue
var ErrClosed = errors.New("queue closed")

// Queue carries jobs from submitters to workers and results back.
// Every job result is delivered to at most one AwaitResult caller.
type Queue interface {
	// Enqueue adds a job to the tail of the queue
	Enqueue(ctx context.Context, job *Job) error
	// Dequeue blocks until a job is available or ctx is done
	Dequeue(ctx context.Context) (*Job, error)
	// PublishResult stores the result of a processed job
	PublishResult(ctx context.Context, result *JobResult) error
	// AwaitResult blocks until the result of jobID is published or ctx is done
	AwaitResult(ctx context.Context, jobID string) (*JobResult, error)
	// Ping checks the backend and returns its reply, "PONG" when healthy
	Ping(ctx context.Context) (string, error)
	Close() error
}
