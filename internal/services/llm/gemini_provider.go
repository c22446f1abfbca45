package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"google.golang.org/genai"

	"github.com/antigravity-dev/ragforge/internal/interfaces"
)

// GeminiProvider implements interfaces.Gateway over the Gemini API. It is
// the only provider that constructs multimodal (text+image) requests, used
// by DescribeImage for C8 vision descriptions.
type GeminiProvider struct {
	client       *genai.Client
	defaultModel string
	retry        RetryConfig
	logger       arbor.ILogger
}

// NewGeminiProvider creates a GeminiProvider against the Gemini Developer
// API using apiKey.
func NewGeminiProvider(ctx context.Context, apiKey, defaultModel string, logger arbor.ILogger) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client init: %w", err)
	}

	return &GeminiProvider{
		client:       client,
		defaultModel: defaultModel,
		retry:        NewDefaultRetryConfig(),
		logger:       logger,
	}, nil
}

func (p *GeminiProvider) modelFor(opts interfaces.GenerateOptions) string {
	if opts.Model != "" {
		return opts.Model
	}
	return p.defaultModel
}

func (p *GeminiProvider) GenerateText(ctx context.Context, prompt string, opts interfaces.GenerateOptions) (string, error) {
	var result string

	err := WithRetry(ctx, p.retry, func() error {
		callCtx, cancel := p.deadline(ctx, opts)
		defer cancel()

		resp, err := p.client.Models.GenerateContent(callCtx, p.modelFor(opts),
			genai.Text(prompt), p.genConfig(opts))
		if err != nil {
			return classifyGeminiError(err)
		}

		result = resp.Text()
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("gateway-transient: gemini generate_text: %w", err)
	}
	return result, nil
}

func (p *GeminiProvider) GenerateStructured(ctx context.Context, prompt string, schema map[string]interface{}, opts interfaces.GenerateOptions) (map[string]interface{}, error) {
	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("schema-violation: invalid schema: %w", err)
	}

	wrapped := fmt.Sprintf("%s\n\nRespond with ONLY JSON matching this schema:\n%s", prompt, schemaJSON)

	var result map[string]interface{}
	attempts := 0
	maxRepairs := 2

	for {
		text, err := p.GenerateText(ctx, wrapped, opts)
		if err != nil {
			return nil, err
		}

		if err := json.Unmarshal([]byte(text), &result); err != nil {
			attempts++
			if attempts > maxRepairs {
				return nil, fmt.Errorf("schema-violation: gemini response is not valid json after %d repairs: %w", maxRepairs, err)
			}
			wrapped = fmt.Sprintf("The previous response was not valid JSON. Repair it to match the schema exactly:\n%s\n\nSchema:\n%s", text, schemaJSON)
			continue
		}

		if err := validateAgainstSchema(result, schema); err != nil {
			attempts++
			if attempts > maxRepairs {
				return nil, err
			}
			wrapped = fmt.Sprintf("Repair this to match schema %s exactly:\n%v", schemaJSON, result)
			continue
		}

		return result, nil
	}
}

func (p *GeminiProvider) DescribeImage(ctx context.Context, imageBytes []byte, surroundingText string, opts interfaces.GenerateOptions) (map[string]interface{}, error) {
	schema := map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"summary", "type", "entities"},
		"properties": map[string]interface{}{
			"summary":  map[string]interface{}{"type": "string"},
			"type":     map[string]interface{}{"type": "string"},
			"entities": map[string]interface{}{"type": "array"},
		},
	}
	schemaJSON, _ := json.Marshal(schema)

	prompt := fmt.Sprintf(
		"Describe the attached image. Surrounding document text: %q. "+
			"Respond with ONLY JSON matching this schema:\n%s", surroundingText, schemaJSON)

	parts := []*genai.Part{
		genai.NewPartFromText(prompt),
		genai.NewPartFromBytes(imageBytes, "image/png"),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	var result map[string]interface{}
	err := WithRetry(ctx, p.retry, func() error {
		callCtx, cancel := p.deadline(ctx, opts)
		defer cancel()

		resp, err := p.client.Models.GenerateContent(callCtx, p.modelFor(opts), contents, p.genConfig(opts))
		if err != nil {
			return classifyGeminiError(err)
		}

		if err := json.Unmarshal([]byte(resp.Text()), &result); err != nil {
			return &providerError{err: fmt.Errorf("describe_image: non-json response: %w", err), retryable: false}
		}
		return nil
	})
	if err != nil {
		p.logger.Warn().Err(err).Msg("describe_image degraded to empty description")
		return emptyValueForSchema(schema), nil
	}

	if err := validateAgainstSchema(result, schema); err != nil {
		p.logger.Warn().Err(err).Msg("describe_image schema mismatch, degraded to empty description")
		return emptyValueForSchema(schema), nil
	}

	return result, nil
}

func (p *GeminiProvider) genConfig(opts interfaces.GenerateOptions) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if opts.Temperature != 0 {
		temp := float32(opts.Temperature)
		cfg.Temperature = &temp
	}
	return cfg
}

func (p *GeminiProvider) deadline(ctx context.Context, opts interfaces.GenerateOptions) (context.Context, context.CancelFunc) {
	timeout := 30 * time.Second
	if opts.Timeout != "" {
		if d, err := time.ParseDuration(opts.Timeout); err == nil {
			timeout = d
		}
	}
	return context.WithTimeout(ctx, timeout)
}

func classifyGeminiError(err error) *providerError {
	var apiErr genai.APIError
	if asAPIError(err, &apiErr) {
		return classifyHTTPStatus(apiErr.Code, err)
	}
	return classifyHTTPStatus(0, err)
}

func asAPIError(err error, target *genai.APIError) bool {
	for err != nil {
		if e, ok := err.(genai.APIError); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
