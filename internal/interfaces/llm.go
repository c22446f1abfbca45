package interfaces

import "context"

// GenerateOptions carries the advisory knobs every gateway operation accepts.
type GenerateOptions struct {
	Model       string
	Timeout     string // duration string, e.g. "30s"
	MaxRetries  int
	Temperature float32 // advisory; providers that disallow it ignore it
}

// Gateway is the single entry point for all model interaction. Callers
// never branch on degradation mode (full / no-credentials / disabled) — the
// gateway always returns a schema-valid structure or a typed error.
// See internal/services/llm.
type Gateway interface {
	// GenerateText returns freeform text for prompt.
	GenerateText(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

	// GenerateStructured returns a value that validates against schema, a
	// JSON Schema document. Schema violations are retried up to twice with
	// a repair follow-up before failing as schema-violation.
	GenerateStructured(ctx context.Context, prompt string, schema map[string]interface{}, opts GenerateOptions) (map[string]interface{}, error)

	// DescribeImage returns a vision description of an image. surroundingText
	// may be empty. Never fails to the caller: on gateway failure it returns
	// a schema-valid empty description.
	DescribeImage(ctx context.Context, imageBytes []byte, surroundingText string, opts GenerateOptions) (map[string]interface{}, error)
}
