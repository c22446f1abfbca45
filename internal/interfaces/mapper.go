package interfaces

import "github.com/antigravity-dev/ragforge/internal/models"

// StructureTemplate names a built-in shape the detector scores against.
type StructureTemplate string

const (
	TemplateIssueTracker StructureTemplate = "issue-tracker"
	TemplateWikiPage     StructureTemplate = "wiki-page"
	TemplateGeneric      StructureTemplate = "generic"
)

// Detector inspects decoded top-level items and identifies the best-fit
// StructureTemplate, defaulting to TemplateGeneric when nothing matches.
type Detector interface {
	Detect(items []interface{}) StructureTemplate
}

// Mapper applies a declarative models.Mapping to a single decoded source
// record, producing exactly one NormalizedItem or a typed error.
type Mapper interface {
	Apply(mapping models.Mapping, record interface{}) (*models.NormalizedItem, error)
}
