package pipeline

import (
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
)

func TestRetryDelay_Fixed(t *testing.T) {
	p := RetryPolicy{BaseDelayMS: 200, Backoff: BackoffFixed}
	assert.Equal(t, 200*time.Millisecond, retryDelay(p, 1))
	assert.Equal(t, 200*time.Millisecond, retryDelay(p, 3))
}

func TestRetryDelay_Exponential(t *testing.T) {
	p := RetryPolicy{BaseDelayMS: 100, Backoff: BackoffExponential, Multiplier: 2}
	assert.Equal(t, 100*time.Millisecond, retryDelay(p, 1))
	assert.Equal(t, 200*time.Millisecond, retryDelay(p, 2))
	assert.Equal(t, 400*time.Millisecond, retryDelay(p, 3))
}

func TestRetryDelay_ExponentialDefaultsMultiplierToTwo(t *testing.T) {
	p := RetryPolicy{BaseDelayMS: 50, Backoff: BackoffExponential}
	assert.Equal(t, 100*time.Millisecond, retryDelay(p, 2))
}

func TestRetryDelay_Linear(t *testing.T) {
	p := RetryPolicy{BaseDelayMS: 100, Backoff: BackoffLinear, IncrementMS: 50}
	assert.Equal(t, 100*time.Millisecond, retryDelay(p, 1))
	assert.Equal(t, 150*time.Millisecond, retryDelay(p, 2))
	assert.Equal(t, 200*time.Millisecond, retryDelay(p, 3))
}

func TestPolicyBackOff_ResetRestartsAttemptCount(t *testing.T) {
	p := RetryPolicy{BaseDelayMS: 100, Backoff: BackoffLinear, IncrementMS: 50}
	b := newPolicyBackOff(p)
	assert.Equal(t, 100*time.Millisecond, b.NextBackOff())
	assert.Equal(t, 150*time.Millisecond, b.NextBackOff())
	b.Reset()
	assert.Equal(t, 100*time.Millisecond, b.NextBackOff())
}

func TestWithMaxRetries_StopsAfterLimit(t *testing.T) {
	p := RetryPolicy{BaseDelayMS: 10, Backoff: BackoffFixed, MaxRetries: 2}
	b := withMaxRetries(p)
	b.NextBackOff()
	b.NextBackOff()
	assert.Equal(t, backoff.Stop, b.NextBackOff())
}
