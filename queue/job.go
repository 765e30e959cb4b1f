package queue

import (
	"time"

	"github.com/ethereum-optimism/infra/op-testqueue/types"
	"github.com/google/uuid"
)

// Job asks a worker to run one test class
type Job struct {
	ID         string          `json:"id"`
	Class      string          `json:"class"`
	Tag        string          `json:"tag,omitempty"`
	Config     types.RunConfig `json:"config"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	Expiry     time.Time       `json:"expiry,omitempty"` // Zero means the job never expires
}

// NewJob creates a job for class. Job ids are prefixed with the class name.
// A positive ttl bounds how long the job may wait in the queue.
func NewJob(class, tag string, cfg types.RunConfig, ttl time.Duration) *Job {
	now := time.Now()
	job := &Job{
		ID:         class + "_" + uuid.NewString(),
		Class:      class,
		Tag:        tag,
		Config:     cfg,
		EnqueuedAt: now,
	}
	if ttl > 0 {
		job.Expiry = now.Add(ttl)
	}
	return job
}

// Expired reports whether the job was dequeued after its expiry
func (j *Job) Expired(now time.Time) bool {
	return !j.Expiry.IsZero() && now.After(j.Expiry)
}

// JobStatus is the processing status of a job, independent of its test outcomes
type JobStatus string

const (
	JobStatusDone    JobStatus = "done"    // The class ran; see ClassStatus
	JobStatusExpired JobStatus = "expired" // The job expired before a worker picked it up
	JobStatusError   JobStatus = "error"   // The job could not be run, e.g. unknown class
)

// TestRecord is the serializable result of one test case
type TestRecord struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	Status     types.TestStatus `json:"status"`
	Stage      types.Stage      `json:"stage,omitempty"`
	Error      string           `json:"error,omitempty"`
	Trace      string           `json:"trace,omitempty"`
	Reason     string           `json:"reason,omitempty"`
	Duration   time.Duration    `json:"duration"`
	Suppressed []string         `json:"suppressed,omitempty"`
}

// JobResult is published by a worker once a job is processed
type JobResult struct {
	JobID       string            `json:"job_id"`
	Class       string            `json:"class"`
	Tag         string            `json:"tag,omitempty"`
	Worker      string            `json:"worker,omitempty"`
	Status      JobStatus         `json:"status"`
	ClassStatus types.TestStatus  `json:"class_status,omitempty"`
	Sequential  bool              `json:"sequential"`
	Stats       types.ResultStats `json:"stats"`
	Tests       []TestRecord      `json:"tests,omitempty"`
	ClassError  string            `json:"class_error,omitempty"`
	Error       string            `json:"error,omitempty"`
	TimeStart   time.Time         `json:"time_start"`
	TimeEnd     time.Time         `json:"time_end"`
}

// Failed reports whether the job should fail a run
func (r *JobResult) Failed() bool {
	return r.Status != JobStatusDone || r.ClassStatus.IsFailing()
}

// NewJobResult converts a class result into the result of job.
func NewJobResult(job *Job, worker string, result *types.ClassResult) *JobResult {
	jr := &JobResult{
		JobID:       job.ID,
		Class:       job.Class,
		Tag:         result.Tag,
		Worker:      worker,
		Status:      JobStatusDone,
		ClassStatus: result.Status,
		Sequential:  result.Sequential,
		Stats:       result.Stats,
		TimeStart:   result.Stats.StartTime,
		TimeEnd:     result.Stats.EndTime,
	}
	if result.ClassError != nil {
		jr.ClassError = result.ClassError.Error()
	}
	for _, tr := range result.Tests {
		rec := TestRecord{
			ID:       tr.ID,
			Name:     tr.Name,
			Status:   tr.Status,
			Stage:    tr.Stage,
			Reason:   tr.Reason,
			Duration: tr.Duration,
		}
		if tr.Error != nil {
			rec.Error = tr.Error.Error()
			rec.Trace = types.FormatFault(tr.Error)
		}
		for _, s := range tr.Suppressed {
			rec.Suppressed = append(rec.Suppressed, s.Error())
		}
		jr.Tests = append(jr.Tests, rec)
	}
	return jr
}

// NewErrorResult reports a job that could not be run
func NewErrorResult(job *Job, worker string, status JobStatus, err error) *JobResult {
	now := time.Now()
	jr := &JobResult{
		JobID:     job.ID,
		Class:     job.Class,
		Tag:       job.Tag,
		Worker:    worker,
		Status:    status,
		TimeStart: now,
		TimeEnd:   now,
	}
	if err != nil {
		jr.Error = err.Error()
	}
	return jr
}
