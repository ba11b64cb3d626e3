package retrypolicy

import (
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/forceu/rangeupload/internal/environment"
)

// DefaultMaxRetries is the amount of retries per chunk, if not configured otherwise
const DefaultMaxRetries = 3

// DefaultDelay is the delay before a retry, if not configured otherwise
const DefaultDelay = time.Second

// Policy decides if and when a failed chunk is sent again
type Policy interface {
	// ShouldRetry returns true if another attempt is allowed after retryCount failed retries
	ShouldRetry(retryCount, maxRetries int) bool
	// DelayBeforeRetry returns the wait time before retry number retryCount (starting at 1)
	DelayBeforeRetry(retryCount int) time.Duration
}

// Fixed waits the same delay before every retry
type Fixed struct {
	Delay time.Duration
}

// ShouldRetry returns true while retryCount is below maxRetries
func (p Fixed) ShouldRetry(retryCount, maxRetries int) bool {
	return retryCount < maxRetries
}

// DelayBeforeRetry always returns the configured delay
func (p Fixed) DelayBeforeRetry(retryCount int) time.Duration {
	return backoff.NewConstantBackOff(p.Delay).NextBackOff()
}

// Exponential multiplies the delay for every further retry of the same chunk
type Exponential struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

// ShouldRetry returns true while retryCount is below maxRetries
func (p Exponential) ShouldRetry(retryCount, maxRetries int) bool {
	return retryCount < maxRetries
}

// DelayBeforeRetry returns Initial * Multiplier^(retryCount-1), capped at Max
func (p Exponential) DelayBeforeRetry(retryCount int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.Initial
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	if p.Multiplier > 1 {
		b.Multiplier = p.Multiplier
	} else {
		b.Multiplier = 2
	}
	if p.Max > 0 {
		b.MaxInterval = p.Max
	}
	b.Reset()
	delay := b.NextBackOff()
	for i := 1; i < retryCount; i++ {
		delay = b.NextBackOff()
	}
	return delay
}

// FromEnvironment returns the policy selected with RETRY_BACKOFF
func FromEnvironment(env environment.Environment) Policy {
	if env.RetryBackoff == environment.RetryBackoffExponential {
		return Exponential{Initial: env.RetryDelay(), Max: 30 * time.Second}
	}
	return Fixed{Delay: env.RetryDelay()}
}
