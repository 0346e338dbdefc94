package resilience

import (
	"context"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// jitterBound is the exclusive upper bound of the random jitter added to
// every retry delay.
const jitterBound = 250 * time.Millisecond

// BackoffConfig controls retry behavior with exponential backoff, bounded
// jitter, and provider-suggested delay overrides.
type BackoffConfig struct {
	// MaxRetries is the number of retries after the first attempt.
	// A value of 0 means fail on the first error. Default: 5.
	MaxRetries int

	// BaseDelay is the exponential backoff base. Default: 2s.
	BaseDelay time.Duration

	// MaxDelay caps the exponential delay. Default: 60s.
	MaxDelay time.Duration

	// IsRetryable optionally overrides the default classifier check.
	IsRetryable func(err error) bool

	// OnRetry is called before each retry sleep with the attempt number
	// (1-based), the chosen delay including jitter, and the error. It must
	// not affect control flow.
	OnRetry func(attempt int, delay time.Duration, err error)

	// Sleep suspends for the given duration, returning early with ctx.Err()
	// on cancellation. Injectable for tests; defaults to a timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultBackoffConfig returns the retry configuration used for all
// generative model calls.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		MaxRetries: 5,
		BaseDelay:  2 * time.Second,
		MaxDelay:   60 * time.Second,
	}
}

// Decision is the outcome of consulting the classifier after a failed
// attempt: retry after Delay, or give up.
type Decision struct {
	Retry bool
	Delay time.Duration
}

// Decide maps a failed attempt to a retry decision. attempt is 0-based. The
// delay is min(BaseDelay * 2^attempt, MaxDelay) unless the error carries a
// provider-suggested retry delay, which wins. Jitter is not included here so
// the deterministic delay sequence stays testable.
func (cfg BackoffConfig) Decide(attempt int, err error) Decision {
	retryable := cfg.IsRetryable
	if retryable == nil {
		retryable = IsRetryable
	}
	if !retryable(err) || attempt >= cfg.MaxRetries {
		return Decision{}
	}

	delay := cfg.BaseDelay << uint(attempt)
	if delay > cfg.MaxDelay || delay <= 0 {
		delay = cfg.MaxDelay
	}
	if suggested, ok := SuggestedDelay(DetailsOf(err)); ok {
		delay = suggested
	}
	return Decision{Retry: true, Delay: delay}
}

func (cfg BackoffConfig) withDefaults() BackoffConfig {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 2 * time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 60 * time.Second
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleepTimer
	}
	return cfg
}

// Execute runs op, retrying on retryable failures according to cfg. The last
// error is returned unchanged once the retry budget is exhausted or the
// error is classified non-retryable. Context cancellation stops retries
// immediately.
func Execute[T any](ctx context.Context, cfg BackoffConfig, op func(ctx context.Context) (T, error)) (T, error) {
	cfg = cfg.withDefaults()

	var zero T
	for attempt := 0; ; attempt++ {
		val, err := op(ctx)
		if err == nil {
			return val, nil
		}

		if ctx.Err() != nil {
			return zero, err
		}

		decision := cfg.Decide(attempt, err)
		if !decision.Retry {
			return zero, err
		}

		delay := decision.Delay + time.Duration(rand.IntN(int(jitterBound/time.Millisecond)))*time.Millisecond
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, delay, err)
		}

		if sleepErr := cfg.Sleep(ctx, delay); sleepErr != nil {
			return zero, err
		}
	}
}

func sleepTimer(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RetryLogger returns an OnRetry callback that logs each retry attempt.
func RetryLogger(service, operation string) func(int, time.Duration, error) {
	return func(attempt int, delay time.Duration, err error) {
		zap.L().Warn("retrying operation",
			zap.String("service", service),
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
	}
}
