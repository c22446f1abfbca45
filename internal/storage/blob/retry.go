package blob

import (
	"context"
	"math/rand"
	"time"
)

// RetryConfig configures the jittered exponential backoff shared by both
// blob store backends: base 250ms, factor 2, cap 8s, max 5 attempts, per
// spec section 4.1.
type RetryConfig struct {
	BaseDelay   time.Duration
	Factor      float64
	MaxDelay    time.Duration
	MaxAttempts int
}

// NewDefaultRetryConfig returns the spec-mandated backoff parameters.
func NewDefaultRetryConfig() RetryConfig {
	return RetryConfig{
		BaseDelay:   250 * time.Millisecond,
		Factor:      2,
		MaxDelay:    8 * time.Second,
		MaxAttempts: 5,
	}
}

// WithRetry runs fn up to cfg.MaxAttempts times, retrying only when fn
// returns a *TransientError. A *PermanentError or nil error stops retries
// immediately.
func WithRetry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	var lastErr error
	delay := cfg.BaseDelay

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if _, transient := lastErr.(*TransientError); !transient {
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
