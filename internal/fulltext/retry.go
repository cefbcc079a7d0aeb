// Package fulltext implements the open-access full-text acquisition
// pipeline: availability resolution with bounded retry, PMC document
// fetching, and structural extraction with section categorization.
package fulltext

import (
	"context"
	"time"
)

// Default retry parameters for the availability lookup.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
	DefaultMaxDelay    = 5 * time.Second
)

// RetryPolicy is an explicit bounded retry policy with exponential
// backoff. It is deliberately parameterized so the backoff schedule can
// be unit tested in isolation from any network call.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// BaseDelay is the delay after the first failed attempt. It doubles
	// after each subsequent failure.
	BaseDelay time.Duration

	// MaxDelay caps the backoff delay.
	MaxDelay time.Duration
}

// DefaultRetryPolicy returns the policy used against the NCBI link
// service: 3 attempts, 1s base delay, capped at 5s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		MaxDelay:    DefaultMaxDelay,
	}
}

// Backoff returns the delay to wait after the given 1-based failed
// attempt: BaseDelay doubling per attempt, capped at MaxDelay.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := p.BaseDelay << (attempt - 1)
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// Do runs fn up to MaxAttempts times, sleeping Backoff(attempt) between
// failures. It returns nil as soon as fn succeeds, the last error once
// attempts are exhausted, and the context error immediately if ctx is
// cancelled while waiting.
func (p RetryPolicy) Do(ctx context.Context, fn func(context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if attempt == attempts {
			break
		}

		timer := time.NewTimer(p.Backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return lastErr
}
