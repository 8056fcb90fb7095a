// Package retry provides the bounded retry policy used around Salesforce
// login and query calls.
package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Policy defines retry behavior with exponential backoff and jitter.
// The delay is monotonically non-decreasing across attempts before jitter.
type Policy struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	Multiplier      float64
	RandomizeFactor float64
}

// DefaultPolicy returns the policy used for extraction calls, matching
// the Salesforce client's transient-failure profile.
func DefaultPolicy() *Policy {
	return &Policy{
		MaxAttempts:     5,
		InitialDelay:    1 * time.Second,
		MaxDelay:        30 * time.Second,
		Multiplier:      2.0,
		RandomizeFactor: 0.25,
	}
}

// NoRetry returns a policy that runs the operation exactly once.
func NoRetry() *Policy {
	return &Policy{MaxAttempts: 1}
}

// Execute runs fn under the policy. Every failure counts against
// MaxAttempts; exhaustion returns the last error wrapped with the
// attempt count.
func (p *Policy) Execute(ctx context.Context, fn func() error) error {
	_, err := p.ExecuteWithCondition(ctx, fn, func(error) bool { return true })
	return err
}

// ExecuteWithCondition runs fn under the policy, retrying only while
// shouldRetry accepts the error. It returns the number of retries
// performed (attempts beyond the first) so callers can record them.
// A non-retryable error is returned immediately, unwrapped.
func (p *Policy) ExecuteWithCondition(ctx context.Context, fn func() error, shouldRetry func(error) bool) (int, error) {
	var lastErr error

	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return attempt, nil
		}

		lastErr = err

		if !shouldRetry(err) {
			return attempt, err
		}

		// Don't sleep after the last attempt
		if attempt == p.MaxAttempts-1 {
			break
		}

		delay := p.delay(attempt)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt, fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-timer.C:
		}
	}

	return p.MaxAttempts - 1, fmt.Errorf("all %d attempts failed: %w", p.MaxAttempts, lastErr)
}

// delay calculates the backoff for a given attempt.
func (p *Policy) delay(attempt int) time.Duration {
	delay := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt))

	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}

	if p.RandomizeFactor > 0 {
		delta := delay * p.RandomizeFactor
		delay = delay - delta + rand.Float64()*2*delta
	}

	return time.Duration(delay)
}

// GetDelay returns the delay for a specific attempt (for testing/preview)
func (p *Policy) GetDelay(attempt int) time.Duration {
	return p.delay(attempt)
}
