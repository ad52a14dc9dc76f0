// Package pacing controls request pacing and retry backoff for the crawl
// engine. Delays are randomized so the crawl does not present a mechanical
// request cadence to the target host.
package pacing

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// DelayPolicy produces randomized waits drawn uniformly from [min, max].
// A fixed seed makes the sequence reproducible for tests.
type DelayPolicy struct {
	mu  sync.Mutex
	rng *rand.Rand
	min time.Duration
	max time.Duration
}

// NewDelayPolicy builds a policy over the [min, max] interval.
func NewDelayPolicy(min, max time.Duration, seed int64) (*DelayPolicy, error) {
	if min < 0 {
		return nil, fmt.Errorf("min delay must be >= 0, got %s", min)
	}
	if max < min {
		return nil, fmt.Errorf("max delay %s must be >= min delay %s", max, min)
	}
	return &DelayPolicy{
		rng: rand.New(rand.NewSource(seed)),
		min: min,
		max: max,
	}, nil
}

// Next draws the next delay without sleeping.
func (p *DelayPolicy) Next() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	span := p.max - p.min
	if span <= 0 {
		return p.min
	}
	return p.min + time.Duration(p.rng.Int63n(int64(span)+1))
}

// Wait blocks for the next drawn delay or until ctx is done.
func (p *DelayPolicy) Wait(ctx context.Context) error {
	delay := p.Next()
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("delay interrupted: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
