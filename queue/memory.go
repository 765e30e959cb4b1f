package queue

import (
	"context"
	"sync"
)

// DefaultMemoryCapacity is the job buffer size of a memory queue
const DefaultMemoryCapacity = 1024

// MemoryQueue is an in-process Queue backed by channels
type MemoryQueue struct {
	jobs chan *Job

	mu      sync.Mutex
	results map[string]chan *JobResult
	closed  chan struct{}
	once    sync.Once
}

var _ Queue = (*MemoryQueue)(nil)

// NewMemoryQueue creates a memory queue holding up to capacity pending jobs.
func NewMemoryQueue(capacity int) *MemoryQueue {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &MemoryQueue{
		jobs:    make(chan *Job, capacity),
		results: make(map[string]chan *JobResult),
		closed:  make(chan struct{}),
	}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, job *Job) error {
	select {
	case <-q.closed:
		return ErrClosed
	default:
	}
	select {
	case q.jobs <- job:
		return nil
	case <-q.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (*Job, error) {
	select {
	case job := <-q.jobs:
		return job, nil
	case <-q.closed:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// resultChan returns the single-slot result channel of a job
func (q *MemoryQueue) resultChan(jobID string) chan *JobResult {
	q.mu.Lock()
	defer q.mu.Unlock()
	ch, ok := q.results[jobID]
	if !ok {
		ch = make(chan *JobResult, 1)
		q.results[jobID] = ch
	}
	return ch
}

func (q *MemoryQueue) PublishResult(ctx context.Context, result *JobResult) error {
	select {
	case <-q.closed:
		return ErrClosed
	default:
	}
	select {
	case q.resultChan(result.JobID) <- result:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue) AwaitResult(ctx context.Context, jobID string) (*JobResult, error) {
	select {
	case result := <-q.resultChan(jobID):
		q.mu.Lock()
		delete(q.results, jobID)
		q.mu.Unlock()
		return result, nil
	case <-q.closed:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *MemoryQueue) Ping(ctx context.Context) (string, error) {
	select {
	case <-q.closed:
		return "", ErrClosed
	default:
		return "PONG", nil
	}
}

// Len returns the number of pending jobs
func (q *MemoryQueue) Len() int {
	return len(q.jobs)
}

func (q *MemoryQueue) Close() error {
	q.once.Do(func() { close(q.closed) })
	return nil
}
