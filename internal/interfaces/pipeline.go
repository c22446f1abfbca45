package interfaces

import (
	"context"

	"github.com/antigravity-dev/ragforge/internal/models"
)

// UnifiedPipelineInput names the per-source input blobs for a json-unified job.
type UnifiedPipelineInput struct {
	SourceKind string // e.g. "jira", "confluence"
	BlobKeys   []string
}

// UnifiedPipelineOptions mirrors the json-unified option keys from the
// submission envelope.
type UnifiedPipelineOptions struct {
	LLMEnrichment  bool
	MinMatchScore  float64
	PreserveSource bool
}

// UnifiedPipelineResult is the set of outputs a run produces, as blob keys
// relative to the job prefix.
type UnifiedPipelineResult struct {
	NormalizedKeys    map[string][]string // by source kind
	MatchesKey        string
	EnrichedKeys      []string
	ReportKey         string
	MarkdownReportKey string
	HTMLReportKey     string
	EnrichmentFailed  int
	ParseFailed       []string // input blob keys whose parse failed
}

// UnifiedPipeline composes C3->C4->C6->C5->C9 into one json-unified job run.
type UnifiedPipeline interface {
	Run(ctx context.Context, jobID string, inputs []UnifiedPipelineInput, opts UnifiedPipelineOptions, onProgress func(models.ProgressEvent)) (*UnifiedPipelineResult, error)
}
