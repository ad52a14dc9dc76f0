package pacing

import (
	"context"
	"errors"
	"math"
	"net"
	"time"
)

// Transient is implemented by errors that are worth retrying, such as
// connection failures, timeouts, and 5xx responses.
type Transient interface {
	Transient() bool
}

// RetryPolicy decides whether a failed attempt is retried and how long to
// back off before the next attempt. Attempts are zero-indexed.
type RetryPolicy struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// NewRetryPolicy builds a policy allowing maxRetries retries after the
// initial attempt.
func NewRetryPolicy(maxRetries int) *RetryPolicy {
	return &RetryPolicy{
		maxRetries: maxRetries,
		baseDelay:  250 * time.Millisecond,
		maxDelay:   5 * time.Second,
	}
}

// ShouldRetry reports whether the error is retryable at the given attempt.
func (p *RetryPolicy) ShouldRetry(err error, attempt int) bool {
	if err == nil {
		return false
	}
	if attempt >= p.maxRetries {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var transient Transient
	if errors.As(err, &transient) {
		return transient.Transient()
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

// NextDelay returns the backoff before the given attempt.
func (p *RetryPolicy) NextDelay(attempt int) time.Duration {
	delay := float64(p.baseDelay) * math.Pow(2, float64(attempt))
	if delay > float64(p.maxDelay) {
		delay = float64(p.maxDelay)
	}
	return time.Duration(delay)
}
