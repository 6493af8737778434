package pipeline

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// policyBackOff adapts a RetryPolicy to backoff.BackOff so the engine's
// stage loop can step through retry delays with NextBackOff (capped by
// backoff.WithMaxRetries), per spec.md §4.E's three delay formulas (k
// is the 1-based attempt number about to be retried):
//
//	Fixed:       base_delay_ms
//	Exponential: base_delay_ms * multiplier^(k-1)
//	Linear:      base_delay_ms + (k-1) * increment_ms
//
// The formulas are computed directly rather than through
// backoff.ExponentialBackOff, whose NextBackOff also applies jitter
// and a MaxInterval cap that spec.md's formulas don't call for.
type policyBackOff struct {
	policy  RetryPolicy
	attempt int
}

func newPolicyBackOff(policy RetryPolicy) *policyBackOff {
	return &policyBackOff{policy: policy}
}

func (b *policyBackOff) Reset() {
	b.attempt = 0
}

func (b *policyBackOff) NextBackOff() time.Duration {
	b.attempt++
	return retryDelay(b.policy, b.attempt)
}

// withMaxRetries wraps the policy backoff with a hard ceiling, so
// NextBackOff returns backoff.Stop after policy.MaxRetries retries
// rather than retrying forever.
func withMaxRetries(policy RetryPolicy) backoff.BackOff {
	return backoff.WithMaxRetries(newPolicyBackOff(policy), uint64(policy.MaxRetries))
}

func retryDelay(policy RetryPolicy, attempt int) time.Duration {
	base := time.Duration(policy.BaseDelayMS) * time.Millisecond

	switch policy.Backoff {
	case BackoffExponential:
		mult := policy.Multiplier
		if mult <= 0 {
			mult = 2.0
		}
		delay := float64(base)
		for i := 1; i < attempt; i++ {
			delay *= mult
		}
		return time.Duration(delay)

	case BackoffLinear:
		inc := time.Duration(policy.IncrementMS) * time.Millisecond
		return base + time.Duration(attempt-1)*inc

	case BackoffFixed:
		fallthrough
	default:
		return base
	}
}
