// Package retry wraps a single HTTP attempt with status-code-based retry.
// The interval between attempts is fixed, not exponential: upstream 429/5xx
// bursts are typically transient and short, and the executor stays simple.
package retry

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/hollowaylabs/patchbay/pkg/llm"
)

// DefaultStatusCodes is the base retryable set. A model's
// RetryConfig.ExtraStatusCodes are unioned in, never replacing these.
var DefaultStatusCodes = []int{429, 500, 502, 503, 504}

// Attempt performs one HTTP attempt. Implementations must return a
// *llm.TransportError for network failures and a *llm.HTTPStatusError for
// non-2xx responses, with the body fully consumed and closed in both cases.
type Attempt[T any] func(ctx context.Context) (T, error)

// Do runs attempt up to cfg.MaxAttempts times total, waiting cfg.Interval
// between attempts. Only failures the config marks retryable are retried;
// exhausting attempts surfaces the last error unchanged. Cancelling ctx
// aborts the inter-attempt wait immediately.
func Do[T any](ctx context.Context, cfg llm.RetryConfig, logger *zap.Logger, attempt Attempt[T]) (T, error) {
	attempts := cfg.MaxAttempts
	if !cfg.Enabled || attempts < 1 {
		attempts = 1
	}
	codes := retryableCodes(cfg)

	var zero T
	var lastErr error
	for i := 1; i <= attempts; i++ {
		result, err := attempt(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if i == attempts || !retryable(err, cfg, codes) {
			break
		}

		logger.Debug("retrying upstream request",
			zap.Int("attempt", i),
			zap.Int("max_attempts", attempts),
			zap.Duration("interval", cfg.Interval),
			zap.Error(err),
		)

		if err := wait(ctx, cfg.Interval); err != nil {
			return zero, err
		}
	}
	return zero, lastErr
}

func retryable(err error, cfg llm.RetryConfig, codes map[int]bool) bool {
	if !cfg.Enabled {
		return false
	}

	var statusErr *llm.HTTPStatusError
	if errors.As(err, &statusErr) {
		return codes[statusErr.StatusCode]
	}

	var transportErr *llm.TransportError
	return errors.As(err, &transportErr)
}

func retryableCodes(cfg llm.RetryConfig) map[int]bool {
	codes := make(map[int]bool, len(DefaultStatusCodes)+len(cfg.ExtraStatusCodes))
	for _, c := range DefaultStatusCodes {
		codes[c] = true
	}
	for _, c := range cfg.ExtraStatusCodes {
		codes[c] = true
	}
	return codes
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
