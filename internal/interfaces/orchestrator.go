package interfaces

import (
	"context"

	"github.com/antigravity-dev/ragforge/internal/models"
)

// SubmitRequest is the core-facing projection of the submission envelope
// from spec section 6. The HTTP/CLI surface that accepts multipart uploads
// is out of scope here; it is expected to resolve inputs to blob keys
// before calling Submit.
type SubmitRequest struct {
	Kind    models.JobKind
	Inputs  []models.InputDescriptor
	Options map[string]interface{}
}

// Orchestrator owns every Job's lifecycle end to end.
type Orchestrator interface {
	Submit(ctx context.Context, req SubmitRequest) (jobID string, err error)
	State(ctx context.Context, jobID string) (*models.ProgressSnapshot, error)
	History(ctx context.Context, jobID string) ([]models.ProgressEvent, error)
	Cancel(ctx context.Context, jobID string) error
	Retry(ctx context.Context, jobID string) error

	// Start launches the per-kind worker pools and reloads in-flight jobs.
	// Start blocks until ctx is cancelled, then drains running workers.
	Start(ctx context.Context) error
}
