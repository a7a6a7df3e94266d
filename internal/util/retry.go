package util

import (
	"context"
	"log/slog"
	"time"
)

// Retry calls fn up to maxAttempts times with exponential backoff starting at
// baseDelay. It returns nil on the first successful call, or the last error
// if all attempts fail. Cancellation of ctx between attempts returns
// ctx.Err().
//
// Only startup connectivity checks go through Retry; market data fetches are
// never retried.
func Retry(ctx context.Context, maxAttempts int, baseDelay time.Duration, fn func() error) error {
	return RetryLog(ctx, nil, maxAttempts, baseDelay, fn)
}

// RetryLog is Retry with every failed attempt logged at warn level on log
// (nil disables logging).
func RetryLog(ctx context.Context, log *slog.Logger, maxAttempts int, baseDelay time.Duration, fn func() error) error {
	var err error
	delay := baseDelay

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if log != nil {
			log.Warn("attempt failed", "attempt", attempt, "of", maxAttempts, "error", err)
		}
		if attempt == maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	return err
}
