// Package resilience wraps calls to external services with retry and a
// circuit breaker.
package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Policy controls retries with exponential backoff and jitter.
type Policy struct {
	// Attempts is the total number of tries, the first included.
	Attempts int
	// Initial is the delay before the first retry.
	Initial time.Duration
	// Max caps any single delay, including an upstream RetryAfter.
	Max        time.Duration
	Multiplier float64
	// Jitter is the ± fraction of each delay randomised.
	Jitter float64

	// Retryable overrides IsTransient.
	Retryable func(error) bool
	// OnRetry runs before each sleep.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultPolicy suits a single interactive request: three tries within a
// couple of seconds.
func DefaultPolicy() Policy {
	return Policy{
		Attempts:   3,
		Initial:    300 * time.Millisecond,
		Max:        3 * time.Second,
		Multiplier: 2,
		Jitter:     0.2,
	}
}

func (p Policy) normalized() Policy {
	d := DefaultPolicy()
	if p.Attempts <= 0 {
		p.Attempts = d.Attempts
	}
	if p.Initial <= 0 {
		p.Initial = d.Initial
	}
	if p.Max <= 0 {
		p.Max = d.Max
	}
	if p.Multiplier < 1 {
		p.Multiplier = d.Multiplier
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	if p.Retryable == nil {
		p.Retryable = IsTransient
	}
	return p
}

// Backoff returns the delay before retry number attempt (1-based) without
// jitter.
func (p Policy) Backoff(attempt int) time.Duration {
	p = p.normalized()
	d := float64(p.Initial) * math.Pow(p.Multiplier, float64(attempt-1))
	return time.Duration(math.Min(d, float64(p.Max)))
}

func (p Policy) delay(attempt int, err error) time.Duration {
	if ra, ok := RetryAfter(err); ok {
		return min(ra, p.Max)
	}
	d := float64(p.Backoff(attempt))
	if p.Jitter > 0 {
		d += (rand.Float64()*2 - 1) * d * p.Jitter
	}
	return time.Duration(max(d, 0))
}

// Do calls fn until it succeeds, returns a non-retryable error, the attempts
// run out, or ctx is done. The last error is returned unchanged.
func Do(ctx context.Context, p Policy, fn func(context.Context) error) error {
	p = p.normalized()

	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if ctx.Err() != nil || !p.Retryable(err) || attempt >= p.Attempts {
			return err
		}

		wait := p.delay(attempt, err)
		if p.OnRetry != nil {
			p.OnRetry(attempt, wait, err)
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return err
		case <-t.C:
		}
	}
}

// LogRetries returns an OnRetry hook that logs through the global logger.
func LogRetries(service string) func(int, time.Duration, error) {
	return func(attempt int, delay time.Duration, err error) {
		zap.L().Warn("resilience: retrying",
			zap.String("service", service),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
	}
}
