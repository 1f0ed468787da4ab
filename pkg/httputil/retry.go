package httputil

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// RetryableError wraps an error to indicate it should trigger a retry.
// Wrap transient failures (network timeouts, 5xx responses) with this type
// so that [Retry] knows to attempt the operation again.
type RetryableError struct{ Err error }

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// Policy controls retry behavior.
type Policy struct {
	// Attempts is the total number of tries, including the first.
	// Values below 1 are treated as 1.
	Attempts int

	// Delay is the wait before the second attempt. It doubles after
	// every failed attempt.
	Delay time.Duration

	// MaxDelay caps the per-attempt wait. Zero means no cap.
	MaxDelay time.Duration
}

// DefaultPolicy is the policy used by [RetryWithBackoff]: 3 attempts
// with 1 second initial delay, doubling per retry, capped at 10 seconds.
var DefaultPolicy = Policy{
	Attempts: 3,
	Delay:    time.Second,
	MaxDelay: 10 * time.Second,
}

// Retry executes fn until it succeeds, fails with a non-retryable error,
// or the policy's attempts are exhausted. It only retries errors wrapped
// with [RetryableError]; other errors are returned immediately.
// Returns the last error if all attempts fail, or ctx.Err() if cancelled
// while waiting between attempts.
func Retry(ctx context.Context, p Policy, fn func() error) error {
	attempts := max(p.Attempts, 1)
	delay := p.Delay
	var lastErr error

	for i := range attempts {
		if err := fn(); err == nil {
			return nil
		} else if lastErr = err; !isRetryable(err) {
			return err
		}

		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				delay *= 2
				if p.MaxDelay > 0 && delay > p.MaxDelay {
					delay = p.MaxDelay
				}
			}
		}
	}
	return lastErr
}

// RetryWithBackoff is a convenience wrapper around [Retry] using
// [DefaultPolicy].
func RetryWithBackoff(ctx context.Context, fn func() error) error {
	return Retry(ctx, DefaultPolicy, fn)
}

// RetryableStatus reports whether an HTTP status code indicates a
// transient failure worth retrying: 5xx server errors and 429 rate
// limit responses.
func RetryableStatus(code int) bool {
	return code >= http.StatusInternalServerError || code == http.StatusTooManyRequests
}

func isRetryable(err error) bool {
	return errors.As(err, new(*RetryableError))
}
