package workflow

import (
	"math"
	"math/rand"
	"time"
)

// RetryPolicy configures the backoff schedule in spec §4.3 "Retry with
// backoff": delay for attempt k (0-indexed) is
// min(base·2^k + jitter, cap), jitter = ±25%·base·2^k, sampled uniformly.
type RetryPolicy struct {
	Base        time.Duration
	Cap         time.Duration
	MaxAttempts int
}

// DefaultRetryPolicy matches spec §6's configuration defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Base:        time.Second,
		Cap:         60 * time.Second,
		MaxAttempts: 5,
	}
}

// Delay computes the backoff delay for the given 0-indexed attempt using
// rng for jitter sampling. Pass a seeded *rand.Rand in tests for
// determinism.
func (p RetryPolicy) Delay(attempt int, rng *rand.Rand) time.Duration {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	backoff := float64(p.Base) * math.Pow(2, float64(attempt))
	jitterRange := 0.25 * backoff
	jitter := (rng.Float64()*2 - 1) * jitterRange
	delay := backoff + jitter
	if delay < 0 {
		delay = 0
	}
	if time.Duration(delay) > p.Cap {
		return p.Cap
	}
	return time.Duration(delay)
}

// Exhausted reports whether attempt (0-indexed, the attempt about to be
// made) has used up the policy's budget.
func (p RetryPolicy) Exhausted(attempt int) bool {
	return attempt >= p.MaxAttempts
}
