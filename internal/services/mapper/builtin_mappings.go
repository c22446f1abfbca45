package mapper

import (
	"github.com/antigravity-dev/ragforge/internal/interfaces"
	"github.com/antigravity-dev/ragforge/internal/models"
)

// BuiltinMapping returns the default field mapping for a detected structure
// template, used by the unified pipeline when a job submission supplies no
// custom mapping override.
func BuiltinMapping(template interfaces.StructureTemplate) models.Mapping {
	switch template {
	case interfaces.TemplateIssueTracker:
		return models.Mapping{
			TargetTemplate: string(template),
			Fields: map[string]models.FieldMapping{
				"id":          {Path: "key"},
				"title":       {Path: "fields.summary"},
				"status":      {Path: "fields.status"},
				"assignee":    {Path: "fields.assignee"},
				"description": {Path: "fields.description", Transform: models.TransformCleanText},
				"created":     {Path: "fields.created", Transform: models.TransformToISODate},
			},
		}
	case interfaces.TemplateWikiPage:
		return models.Mapping{
			TargetTemplate: string(template),
			Fields: map[string]models.FieldMapping{
				"id":      {Path: "id"},
				"title":   {Path: "title"},
				"content": {Path: "body.storage.value", Transform: models.TransformCleanText},
				"space":   {Path: "space"},
				"version": {Path: "version"},
			},
		}
	default:
		return models.Mapping{
			TargetTemplate: string(interfaces.TemplateGeneric),
			Fields: map[string]models.FieldMapping{
				"id":    {Candidates: []string{"id", "key", "uuid"}},
				"title": {Candidates: []string{"title", "name", "summary"}},
			},
		}
	}
}
