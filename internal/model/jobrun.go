package model

import "time"

// JobStatus represents the state of a batch job run.
type JobStatus string

const (
	JobStatusRunning  JobStatus = "running"
	JobStatusComplete JobStatus = "complete"
	JobStatusFailed   JobStatus = "failed"
)

// JobRun records one invocation of a batch job.
type JobRun struct {
	ID          string     `json:"id"`
	Job         string     `json:"job"`
	Status      JobStatus  `json:"status"`
	Rows        int64      `json:"rows"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Duration returns how long the run took, or zero while it is still running.
func (r JobRun) Duration() time.Duration {
	if r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}
