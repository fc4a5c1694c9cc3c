package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
)

// RetryPolicy retries an external call when Retryable says the failure is
// transient. Backoff grows linearly with the attempt number.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
	Retryable   func(error) bool
}

// NewOverloadRetryPolicy retries only backend-overload-class failures.
// Malformed input, auth failures and other 4xx propagate immediately.
func NewOverloadRetryPolicy(maxAttempts int, delay time.Duration) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: maxAttempts,
		Delay:       delay,
		Retryable:   IsOverloadError,
	}
}

// Do runs fn until it succeeds, the error is not retryable, the attempt cap
// is hit, or the context is cancelled.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if p.Retryable != nil && !p.Retryable(lastErr) {
			return lastErr
		}

		if attempt == attempts {
			break
		}

		log.Printf("⚠️ Attempt %d failed: %v. Retrying...\n", attempt, lastErr)

		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled: %w", ctx.Err())
		case <-time.After(p.Delay * time.Duration(attempt)):
		}
	}

	return fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}

// IsOverloadError reports whether err looks like a transient overload from
// an LLM or embedding backend: 5xx-class statuses, the explicit 529
// overloaded code, or rate limiting.
func IsOverloadError(err error) bool {
	if err == nil {
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"529", "503", "502", "500", "429", "overloaded", "unavailable", "rate limit", "resource exhausted"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
