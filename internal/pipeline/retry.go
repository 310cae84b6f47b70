package pipeline

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/FadeevMax/test-web-sop/internal/contentstore"
	"github.com/FadeevMax/test-web-sop/internal/docsource"
)

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	var storeErr *contentstore.RetryableError
	var driveErr *docsource.RetryableError
	return errors.As(err, &storeErr) || errors.As(err, &driveErr)
}

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func Backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	jitter := time.Duration(rand.Int64N(int64(base) / 2))
	return base + jitter
}

const MaxRetries = 3

// withRetry runs fn up to MaxRetries times while it fails with a retryable
// error. wait is the delay function, Backoff in production.
func withRetry(ctx context.Context, wait func(int) time.Duration, onRetry func(attempt int, err error), fn func() error) error {
	var lastErr error
	for attempt := range MaxRetries {
		lastErr = fn()
		if lastErr == nil || !IsRetryable(lastErr) || attempt == MaxRetries-1 {
			return lastErr
		}
		if onRetry != nil {
			onRetry(attempt, lastErr)
		}
		t := time.NewTimer(wait(attempt))
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		}
	}
	return lastErr
}
