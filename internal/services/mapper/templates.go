// Package mapper implements the Structure Detector & Mapper Engine (C4):
// scoring decoded top-level items against built-in templates, then applying
// a declarative models.Mapping to project a source record onto a
// models.NormalizedItem.
package mapper

import "github.com/antigravity-dev/ragforge/internal/interfaces"

// fingerprint names the required and optional field paths a template
// scores against. All Required paths must resolve to a non-nil value for
// the template to match; Optional paths break coverage ties.
type fingerprint struct {
	template interfaces.StructureTemplate
	required []string
	optional []string
}

var builtinTemplates = []fingerprint{
	{
		template: interfaces.TemplateIssueTracker,
		required: []string{"key", "fields.summary", "fields.issuetype"},
		optional: []string{"fields.status", "fields.assignee", "fields.description", "fields.created"},
	},
	{
		template: interfaces.TemplateWikiPage,
		required: []string{"id", "title", "body.storage.value"},
		optional: []string{"space", "version", "ancestors"},
	},
}
