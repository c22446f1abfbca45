// Package vision implements the vision describer (C8): a thin,
// schema-constrained wrapper over the LLM gateway's DescribeImage operation.
package vision

import (
	"context"

	"github.com/ternarybob/arbor"

	"github.com/antigravity-dev/ragforge/internal/interfaces"
)

// Describer implements interfaces.VisionDescriber over an interfaces.Gateway.
// It never fails to the caller: a gateway error degrades to a schema-valid
// empty description, matching the gateway's own degradation contract so C7
// never needs to distinguish "no description" from "gateway unavailable".
type Describer struct {
	llm    interfaces.Gateway
	logger arbor.ILogger
}

var _ interfaces.VisionDescriber = (*Describer)(nil)

// New creates a Describer backed by an LLM gateway.
func New(llm interfaces.Gateway, logger arbor.ILogger) *Describer {
	return &Describer{llm: llm, logger: logger}
}

func (d *Describer) Describe(ctx context.Context, imageBytes []byte, surroundingText, language string) (interfaces.ImageDescription, error) {
	opts := interfaces.GenerateOptions{Timeout: "30s"}

	result, err := d.llm.DescribeImage(ctx, imageBytes, surroundingText, opts)
	if err != nil {
		d.logger.Warn().Err(err).Msg("vision describe failed, returning empty description")
		return interfaces.ImageDescription{Type: "other", Entities: []string{}}, nil
	}

	desc := interfaces.ImageDescription{Type: "other", Entities: []string{}}
	if summary, ok := result["summary"].(string); ok {
		desc.Summary = summary
	}
	if kind, ok := result["type"].(string); ok && kind != "" {
		desc.Type = kind
	}
	if rawEntities, ok := result["entities"].([]interface{}); ok {
		entities := make([]string, 0, len(rawEntities))
		for _, e := range rawEntities {
			if s, ok := e.(string); ok {
				entities = append(entities, s)
			}
		}
		desc.Entities = entities
	}

	if len(desc.Summary) > 500 {
		desc.Summary = desc.Summary[:500]
	}

	return desc, nil
}
