package llm

import (
	"context"

	"github.com/ternarybob/arbor"

	"github.com/antigravity-dev/ragforge/internal/common"
	"github.com/antigravity-dev/ragforge/internal/interfaces"
)

// NewGateway selects one interfaces.Gateway implementation at construction
// time, implementing the three-rung degradation ladder from spec section
// 4.5:
//
//  1. full      - configured provider, credentials resolved: real provider.
//  2. no-creds  - configured provider, no credentials resolvable: StubProvider.
//  3. disabled  - cfg.LLM.Disabled set: StubProvider regardless of credentials.
//
// Callers hold only an interfaces.Gateway and never branch on which rung
// produced it.
func NewGateway(ctx context.Context, cfg *common.Config, kvStorage interfaces.KeyValueStorage, logger arbor.ILogger) (interfaces.Gateway, error) {
	if cfg.LLM.Disabled {
		logger.Info().Msg("llm gateway disabled by configuration, serving stub provider")
		return NewStubProvider("disabled", logger), nil
	}

	switch cfg.LLM.DefaultProvider {
	case common.LLMProviderClaude:
		apiKey, err := common.ResolveAPIKey(ctx, kvStorage, "anthropic_api_key", cfg.Claude.APIKey)
		if err != nil {
			logger.Warn().Err(err).Msg("claude credentials unresolved, serving stub provider")
			return NewStubProvider("no-credentials", logger), nil
		}
		return NewClaudeProvider(apiKey, cfg.Claude.Model, cfg.Claude.MaxTokens, logger), nil

	case common.LLMProviderGemini:
		apiKey, err := common.ResolveAPIKey(ctx, kvStorage, "gemini_api_key", cfg.Gemini.APIKey)
		if err != nil {
			logger.Warn().Err(err).Msg("gemini credentials unresolved, serving stub provider")
			return NewStubProvider("no-credentials", logger), nil
		}
		provider, err := NewGeminiProvider(ctx, apiKey, cfg.Gemini.Model, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("gemini client init failed, serving stub provider")
			return NewStubProvider("no-credentials", logger), nil
		}
		return provider, nil

	default:
		logger.Warn().Str("provider", string(cfg.LLM.DefaultProvider)).Msg("unrecognized llm provider, serving stub provider")
		return NewStubProvider("no-credentials", logger), nil
	}
}
