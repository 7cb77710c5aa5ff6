package review

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// maxBackoff caps both computed delays and provider Retry-After hints.
const maxBackoff = 60 * time.Second

// retryWithBackoff calls fn up to maxAttempts times. Only network and rate
// limit errors are retried; the delay doubles from base each attempt.
func retryWithBackoff(ctx context.Context, maxAttempts int, base time.Duration, logger *zap.Logger, fn func(attempt int) error) (int, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = fn(attempt)
		if lastErr == nil {
			return attempt, nil
		}
		if !retryable(lastErr) || attempt == maxAttempts {
			return attempt, lastErr
		}
		if ctx.Err() != nil {
			return attempt, ctx.Err()
		}

		backoff := base << (attempt - 1)
		var rateLimited *RateLimitError
		if errors.As(lastErr, &rateLimited) && rateLimited.RetryAfter > backoff {
			backoff = rateLimited.RetryAfter
		}
		backoff = min(backoff, maxBackoff)

		logger.Warn("Retrying provider request",
			zap.Int("attempt", attempt),
			zap.Int("maxAttempts", maxAttempts),
			zap.Duration("backoff", backoff),
			zap.Error(lastErr))

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt, ctx.Err()
		case <-timer.C:
		}
	}
	return maxAttempts, lastErr
}
