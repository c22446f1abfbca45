package interfaces

import (
	"context"

	"github.com/antigravity-dev/ragforge/internal/models"
)

// ProgressLedger records and reads a job's progress history through a
// BlobStore. Concurrent writers to the same job are prevented by the
// orchestrator's single-owner discipline; no CAS is required here.
type ProgressLedger interface {
	// Record appends event to the job's history log and replaces its
	// snapshot. Sequence is assigned by Record, overwriting event.Sequence.
	Record(ctx context.Context, jobID string, event models.ProgressEvent) error

	// Read returns the latest snapshot and, if includeHistory is true, the
	// full ordered event history.
	Read(ctx context.Context, jobID string, includeHistory bool) (*models.ProgressSnapshot, []models.ProgressEvent, error)
}
