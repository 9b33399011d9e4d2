// utils/retry.go
package utils

import "time"

// Backoff maps a 1-based attempt number to the delay before the next attempt.
type Backoff func(attempt int) time.Duration

// LinearBackoff waits step×attempt between attempts.
func LinearBackoff(step time.Duration) Backoff {
	return func(attempt int) time.Duration {
		return time.Duration(attempt) * step
	}
}

// WithRetry runs op up to maxAttempts times. op reports whether its failure
// is worth retrying; a non-retryable error returns immediately. When the
// attempt budget runs out the last error is returned.
func WithRetry(maxAttempts int, backoff Backoff, op func(attempt int) (retry bool, err error)) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		retry, err := op(attempt)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retry || attempt == maxAttempts {
			return lastErr
		}
		time.Sleep(backoff(attempt))
	}
	return lastErr
}
