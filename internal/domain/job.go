package domain

import "time"

// JobState is a step of the job lifecycle:
// pending -> running -> complete | failed.
type JobState string

const (
	JobPending  JobState = "pending"
	JobRunning  JobState = "running"
	JobComplete JobState = "complete"
	JobFailed   JobState = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s JobState) Terminal() bool { return s == JobComplete || s == JobFailed }

// Artifact is a downloadable generation result.
type Artifact struct {
	Data        []byte
	Filename    string
	ContentType string
}

// Content types of generated artifacts.
const (
	ContentTypeSTL = "application/octet-stream"
	ContentTypeZIP = "application/zip"
	ContentType3MF = "model/3mf"
)

// JobStatus is a read-only snapshot of a job. The registry hands out copies;
// callers never see the live record.
type JobStatus struct {
	ID        string
	Kind      Kind
	State     JobState
	ClientID  string
	CacheKey  CacheKey
	CreatedAt time.Time
	UpdatedAt time.Time
	// Error is the public failure detail when State is JobFailed.
	Error string
}
