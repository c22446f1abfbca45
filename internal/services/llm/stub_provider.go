package llm

import (
	"context"

	"github.com/ternarybob/arbor"

	"github.com/antigravity-dev/ragforge/internal/interfaces"
)

// StubProvider implements interfaces.Gateway by returning deterministic,
// schema-valid but empty results. It backs both the no-credentials rung
// (reachable provider, but no API key resolved) and the disabled rung
// (operator opted out of LLM calls entirely) of the degradation ladder —
// callers never branch on which rung is active.
type StubProvider struct {
	logger arbor.ILogger
	reason string
}

// NewStubProvider creates a StubProvider. reason is logged once per call
// for diagnostics ("no-credentials" or "disabled").
func NewStubProvider(reason string, logger arbor.ILogger) *StubProvider {
	return &StubProvider{logger: logger, reason: reason}
}

func (s *StubProvider) GenerateText(ctx context.Context, prompt string, opts interfaces.GenerateOptions) (string, error) {
	s.logger.Debug().Str("reason", s.reason).Msg("generate_text served by stub provider")
	return "", nil
}

func (s *StubProvider) GenerateStructured(ctx context.Context, prompt string, schema map[string]interface{}, opts interfaces.GenerateOptions) (map[string]interface{}, error) {
	s.logger.Debug().Str("reason", s.reason).Msg("generate_structured served by stub provider")
	return emptyValueForSchema(schema), nil
}

func (s *StubProvider) DescribeImage(ctx context.Context, imageBytes []byte, surroundingText string, opts interfaces.GenerateOptions) (map[string]interface{}, error) {
	s.logger.Debug().Str("reason", s.reason).Msg("describe_image served by stub provider")
	return map[string]interface{}{
		"summary":  "",
		"type":     "other",
		"entities": []interface{}{},
	}, nil
}
