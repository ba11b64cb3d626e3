package retrypolicy

import (
	"testing"
	"time"

	"github.com/forceu/rangeupload/internal/environment"
	"github.com/forceu/rangeupload/internal/test"
)

func TestFixed(t *testing.T) {
	policy := Fixed{Delay: DefaultDelay}
	test.IsEqualBool(t, policy.ShouldRetry(0, DefaultMaxRetries), true)
	test.IsEqualBool(t, policy.ShouldRetry(2, DefaultMaxRetries), true)
	test.IsEqualBool(t, policy.ShouldRetry(3, DefaultMaxRetries), false)
	test.IsEqualBool(t, policy.ShouldRetry(0, 0), false)
	test.IsEqual(t, policy.DelayBeforeRetry(1), time.Second)
	test.IsEqual(t, policy.DelayBeforeRetry(3), time.Second)
}

func TestExponential(t *testing.T) {
	policy := Exponential{Initial: 100 * time.Millisecond, Max: 350 * time.Millisecond}
	test.IsEqualBool(t, policy.ShouldRetry(2, 3), true)
	test.IsEqualBool(t, policy.ShouldRetry(3, 3), false)
	test.IsEqual(t, policy.DelayBeforeRetry(1), 100*time.Millisecond)
	test.IsEqual(t, policy.DelayBeforeRetry(2), 200*time.Millisecond)
	test.IsEqual(t, policy.DelayBeforeRetry(3), 350*time.Millisecond)
	test.IsEqual(t, policy.DelayBeforeRetry(0), 100*time.Millisecond)

	policy = Exponential{Initial: time.Second, Multiplier: 3}
	test.IsEqual(t, policy.DelayBeforeRetry(3), 9*time.Second)
}

func TestFromEnvironment(t *testing.T) {
	env := environment.Environment{RetryDelayMs: 250, RetryBackoff: environment.RetryBackoffFixed}
	test.IsEqual[Policy](t, FromEnvironment(env), Fixed{Delay: 250 * time.Millisecond})
	env.RetryBackoff = environment.RetryBackoffExponential
	test.IsEqual[Policy](t, FromEnvironment(env), Exponential{Initial: 250 * time.Millisecond, Max: 30 * time.Second})
}
