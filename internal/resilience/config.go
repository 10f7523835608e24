package resilience

import "time"

// PolicyFrom builds a Policy from configuration values; zero values keep the
// defaults.
func PolicyFrom(attempts, initialMs, maxMs int, multiplier, jitter float64) Policy {
	p := DefaultPolicy()
	if attempts > 0 {
		p.Attempts = attempts
	}
	if initialMs > 0 {
		p.Initial = time.Duration(initialMs) * time.Millisecond
	}
	if maxMs > 0 {
		p.Max = time.Duration(maxMs) * time.Millisecond
	}
	if multiplier >= 1 {
		p.Multiplier = multiplier
	}
	if jitter >= 0 {
		p.Jitter = jitter
	}
	return p
}

// BreakerFrom builds a BreakerConfig from configuration values.
func BreakerFrom(threshold, cooldownSecs int) BreakerConfig {
	c := DefaultBreakerConfig()
	if threshold > 0 {
		c.Threshold = threshold
	}
	if cooldownSecs > 0 {
		c.Cooldown = time.Duration(cooldownSecs) * time.Second
	}
	return c
}
