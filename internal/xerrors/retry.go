package xerrors

import (
	"context"
	"errors"
	"fmt"
	"time"

	"taedam/internal/logging"
)

// RetryConfig configures bounded retry with fixed backoff.
type RetryConfig struct {
	MaxRetries int           // retries after the first attempt
	Backoff    time.Duration // fixed wait between attempts
}

// DefaultRetryConfig matches the engine's collaborator-call policy.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxRetries: 2, Backoff: time.Second}
}

// Retry runs fn up to 1+MaxRetries times, sleeping Backoff between attempts.
// Non-transient errors stop the loop immediately. ParseError counts as
// retryable here: the caller opted into a retry budget for exactly that case.
func Retry(ctx context.Context, config RetryConfig, logger logging.Logger, fn func(ctx context.Context) error) error {
	logger = logging.OrNop(logger)

	var lastErr error
	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("retry aborted: %w", err)
		}
		err := fn(ctx)
		if err == nil {
			if attempt > 0 {
				logger.Info("succeeded after %d retries", attempt)
			}
			return nil
		}
		lastErr = err

		var pe *ParseError
		retryable := IsTransient(err) || errors.As(err, &pe)
		if !retryable {
			return err
		}
		if attempt == config.MaxRetries {
			break
		}
		logger.Warn("attempt %d failed, retrying in %s: %v", attempt+1, config.Backoff, err)
		select {
		case <-ctx.Done():
			return fmt.Errorf("retry aborted: %w", ctx.Err())
		case <-time.After(config.Backoff):
		}
	}
	return lastErr
}
