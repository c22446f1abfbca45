package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/antigravity-dev/ragforge/internal/common"
	"github.com/antigravity-dev/ragforge/internal/interfaces"
)

func TestStubProvider_GenerateStructuredIsSchemaValidButEmpty(t *testing.T) {
	s := NewStubProvider("disabled", arbor.NewLogger())

	schema := map[string]interface{}{
		"properties": map[string]interface{}{
			"summary": map[string]interface{}{"type": "string"},
			"tags":    map[string]interface{}{"type": "array"},
		},
	}

	out, err := s.GenerateStructured(context.Background(), "prompt", schema, interfaces.GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "", out["summary"])
	assert.Equal(t, []interface{}{}, out["tags"])
}

func TestStubProvider_DescribeImageReturnsEmptyDescription(t *testing.T) {
	s := NewStubProvider("no-credentials", arbor.NewLogger())

	out, err := s.DescribeImage(context.Background(), []byte{0xFF}, "context", interfaces.GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "", out["summary"])
	assert.Equal(t, "other", out["type"])
}

func TestValidateAgainstSchema_MissingRequiredField(t *testing.T) {
	schema := map[string]interface{}{
		"required": []interface{}{"summary"},
	}
	err := validateAgainstSchema(map[string]interface{}{}, schema)
	assert.Error(t, err)
}

func TestValidateAgainstSchema_WrongType(t *testing.T) {
	schema := map[string]interface{}{
		"properties": map[string]interface{}{
			"count": map[string]interface{}{"type": "number"},
		},
	}
	err := validateAgainstSchema(map[string]interface{}{"count": "not a number"}, schema)
	assert.Error(t, err)
}

func TestValidateAgainstSchema_Valid(t *testing.T) {
	schema := map[string]interface{}{
		"required": []interface{}{"summary"},
		"properties": map[string]interface{}{
			"summary": map[string]interface{}{"type": "string"},
		},
	}
	err := validateAgainstSchema(map[string]interface{}{"summary": "ok"}, schema)
	assert.NoError(t, err)
}

func TestWithRetry_StopsOnNonRetryableError(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), NewDefaultRetryConfig(), func() error {
		attempts++
		return &providerError{err: errors.New("bad request"), retryable: false}
	})
	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestWithRetry_RetriesUpToMaxAttempts(t *testing.T) {
	attempts := 0
	cfg := RetryConfig{BaseDelay: time.Millisecond, Factor: 2, MaxDelay: 10 * time.Millisecond, MaxAttempts: 3}
	err := WithRetry(context.Background(), cfg, func() error {
		attempts++
		return &providerError{err: errors.New("server unavailable"), retryable: true}
	})
	assert.Error(t, err)
	assert.Equal(t, 3, attempts)
}

func TestWithRetry_SucceedsOnRetry(t *testing.T) {
	attempts := 0
	cfg := RetryConfig{BaseDelay: time.Millisecond, Factor: 2, MaxDelay: 10 * time.Millisecond, MaxAttempts: 3}
	err := WithRetry(context.Background(), cfg, func() error {
		attempts++
		if attempts < 2 {
			return &providerError{err: errors.New("timeout"), retryable: true}
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestClassifyHTTPStatus(t *testing.T) {
	cases := []struct {
		status        int
		wantRetryable bool
	}{
		{400, false},
		{404, false},
		{429, true},
		{500, true},
		{503, true},
		{0, true}, // network error, no status
	}
	for _, tc := range cases {
		err := classifyHTTPStatus(tc.status, errors.New("x"))
		assert.Equal(t, tc.wantRetryable, err.Retryable())
	}
}

func TestIsRateLimitError(t *testing.T) {
	assert.True(t, IsRateLimitError(errors.New("429 Too Many Requests")))
	assert.True(t, IsRateLimitError(errors.New("request was throttled")))
	assert.False(t, IsRateLimitError(errors.New("not found")))
	assert.False(t, IsRateLimitError(nil))
}

func TestNewGateway_DisabledServesStub(t *testing.T) {
	cfg := common.NewDefaultConfig()
	cfg.LLM.Disabled = true

	gw, err := NewGateway(context.Background(), cfg, nil, arbor.NewLogger())
	require.NoError(t, err)
	_, ok := gw.(*StubProvider)
	assert.True(t, ok)
}

func TestNewGateway_UnresolvedCredentialsServesStub(t *testing.T) {
	cfg := common.NewDefaultConfig()
	cfg.LLM.DefaultProvider = common.LLMProviderClaude
	cfg.Claude.APIKey = ""

	gw, err := NewGateway(context.Background(), cfg, nil, arbor.NewLogger())
	require.NoError(t, err)
	_, ok := gw.(*StubProvider)
	assert.True(t, ok)
}

func TestNewGateway_UnrecognizedProviderServesStub(t *testing.T) {
	cfg := common.NewDefaultConfig()
	cfg.LLM.DefaultProvider = common.LLMProvider("unknown")

	gw, err := NewGateway(context.Background(), cfg, nil, arbor.NewLogger())
	require.NoError(t, err)
	_, ok := gw.(*StubProvider)
	assert.True(t, ok)
}
