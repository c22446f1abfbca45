package interfaces

import (
	"context"

	"github.com/antigravity-dev/ragforge/internal/models"
)

// PDFExtractOptions controls how the extractor handles a PDF blob.
type PDFExtractOptions struct {
	// MaxImages caps how many discovered images are dispatched to the
	// vision describer. Negative means "unset" — the extractor applies
	// its configured default. Zero means "disabled": images are still
	// recorded in the artifact, but none are described. A caller that
	// wants the extractor's default must leave this negative rather than
	// passing 0, since 0 is itself a meaningful, distinct value.
	MaxImages   int
	RasterMode  models.RasterMode
	RasterPages []int // only consulted when RasterMode == manual
	Language    string
	SaveImages  bool
}

// PDFExtractor opens, validates, and extracts a full models.PDFArtifact
// from a PDF blob, dispatching discovered images (up to MaxImages, in
// submission order) to a VisionDescriber. See internal/services/pdfextract.
type PDFExtractor interface {
	Extract(ctx context.Context, jobID string, pdfBytes []byte, opts PDFExtractOptions) (*models.PDFArtifact, error)
}

// ImageDescription is the schema-constrained result of describing one image.
type ImageDescription struct {
	Summary  string   `json:"summary"`
	Type     string   `json:"type"` // diagram|chart|photograph|schematic|table|other
	Entities []string `json:"entities"`
}

// VisionDescriber captions one image, never failing to the caller: gateway
// failures degrade to a schema-valid empty ImageDescription.
type VisionDescriber interface {
	Describe(ctx context.Context, imageBytes []byte, surroundingText, language string) (ImageDescription, error)
}
