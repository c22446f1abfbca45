package models

import "time"

// ProgressEvent is one entry in a job's append-only history log.
// Sequence numbers are assigned by the owning worker and are strictly
// increasing within a job; ordering across jobs is unspecified.
type ProgressEvent struct {
	Sequence int                    `json:"sequence"`
	JobID    string                 `json:"job_id"`
	Timestamp time.Time             `json:"timestamp"`
	Phase    string                 `json:"phase"` // init, extract, raster, upload, clean, success, failed, cancelled
	Step     string                 `json:"step"`
	Progress int                    `json:"progress"` // 0-100
	Status   JobStatus              `json:"status"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// ProgressSnapshot is the latest-known state of a job, always reflecting a
// sequence number <= the highest entry written to the history log.
type ProgressSnapshot struct {
	JobID       string    `json:"job_id"`
	Sequence    int       `json:"sequence"`
	Status      JobStatus `json:"status"`
	Phase       string    `json:"phase"`
	Progress    int       `json:"progress"`
	LastUpdated time.Time `json:"last_updated"`
}
