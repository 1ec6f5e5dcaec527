package models

import (
	"encoding/json"
	"time"
)

// JobStatus is the lifecycle state of an async job.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// JobStep is one entry of a Job's steps JSONB array, recording the progress
// of a long-running workflow or tool invocation.
type JobStep struct {
	Name      string    `json:"name"`
	Status    JobStatus `json:"status"`
	StartedAt time.Time `json:"started_at,omitzero"`
	EndedAt   time.Time `json:"ended_at,omitzero"`
	Error     string    `json:"error,omitempty"`
}

// Job is a row of the jobs table.
type Job struct {
	ID        string          `json:"id"`
	Status    JobStatus       `json:"status"`
	Steps     []JobStep       `json:"steps,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
