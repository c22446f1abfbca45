package llm

import (
	"context"
	"math/rand"
	"strings"
	"time"
)

// RetryConfig configures the jittered exponential backoff used by every
// provider: base 500ms, factor 2, cap 10s, default max 3 attempts, per
// spec section 4.5. 4xx errors are never retried.
type RetryConfig struct {
	BaseDelay   time.Duration
	Factor      float64
	MaxDelay    time.Duration
	MaxAttempts int
}

// NewDefaultRetryConfig returns the spec-mandated LLM backoff parameters.
func NewDefaultRetryConfig() RetryConfig {
	return RetryConfig{
		BaseDelay:   500 * time.Millisecond,
		Factor:      2,
		MaxDelay:    10 * time.Second,
		MaxAttempts: 3,
	}
}

// retryableError is implemented by provider-specific error wrappers that
// know whether the underlying failure is worth retrying.
type retryableError interface {
	Retryable() bool
}

// WithRetry runs fn up to cfg.MaxAttempts times, retrying only while the
// returned error reports Retryable() == true (network/timeout/5xx).
// Non-retryable errors (4xx, schema mismatches handled upstream) return
// immediately.
func WithRetry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	var lastErr error
	delay := cfg.BaseDelay

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		re, ok := lastErr.(retryableError)
		if !ok || !re.Retryable() {
			return lastErr
		}

		if attempt == cfg.MaxAttempts {
			break
		}

		jittered := time.Duration(float64(delay) * (0.5 + rand.Float64()))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(jittered):
		}

		delay = time.Duration(float64(delay) * cfg.Factor)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return lastErr
}

// IsRateLimitError reports whether err's message indicates a 429/throttling
// response, used by providers to decide whether to honor a Retry-After hint.
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "throttl")
}

// providerError wraps a provider SDK error with an explicit retryability
// verdict: 4xx (except 429) are permanent, everything else (network,
// timeout, 5xx, 429) is retryable.
type providerError struct {
	err       error
	retryable bool
}

func (e *providerError) Error() string  { return e.err.Error() }
func (e *providerError) Unwrap() error  { return e.err }
func (e *providerError) Retryable() bool { return e.retryable }

func classifyHTTPStatus(status int, err error) *providerError {
	retryable := status == 0 || status == 429 || status >= 500
	return &providerError{err: err, retryable: retryable}
}
