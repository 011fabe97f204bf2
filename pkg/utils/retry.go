package utils

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// RetryConfig holds retry configuration.
type RetryConfig struct {
	MaxAttempts   int
	BackoffFactor float64
	MaxJitter     time.Duration
	// Delay overrides the backoff for a given attempt and error when it returns ok.
	Delay func(attempt int, err error) (time.Duration, bool)
	// Sleep and Jitter are replaceable for tests.
	Sleep  func(ctx context.Context, d time.Duration) error
	Jitter func(max time.Duration) time.Duration
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		BackoffFactor: 2.0,
		MaxJitter:     500 * time.Millisecond,
	}
}

// Retry calls fn until it succeeds or MaxAttempts is reached, sleeping
// BackoffFactor^attempt seconds plus jitter after every failure.
// The last error is returned.
func Retry(ctx context.Context, cfg RetryConfig, fn func(attempt int) error) error {
	_, err := RetryWithResult(ctx, cfg, func(attempt int) (struct{}, error) {
		return struct{}{}, fn(attempt)
	})
	return err
}

// RetryWithResult is Retry for functions that produce a value.
func RetryWithResult[T any](ctx context.Context, cfg RetryConfig, fn func(attempt int) (T, error)) (T, error) {
	var zero T
	var lastErr error

	sleep := cfg.Sleep
	if sleep == nil {
		sleep = SleepContext
	}
	jitter := cfg.Jitter
	if jitter == nil {
		jitter = RandomJitter
	}

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		result, err := fn(attempt)
		if err == nil {
			return result, nil
		}
		lastErr = err

		delay := CalculateBackoff(attempt, cfg.BackoffFactor)
		if cfg.Delay != nil {
			if d, ok := cfg.Delay(attempt, err); ok {
				delay = d
			}
		}
		delay += jitter(cfg.MaxJitter)

		if err := sleep(ctx, delay); err != nil {
			return zero, err
		}
	}

	return zero, lastErr
}

// CalculateBackoff returns factor^attempt seconds.
func CalculateBackoff(attempt int, factor float64) time.Duration {
	if factor <= 0 {
		factor = 1
	}
	return time.Duration(math.Pow(factor, float64(attempt)) * float64(time.Second))
}

// RandomJitter returns a uniformly random duration in [0, max).
func RandomJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(max)))
}

// SleepContext sleeps for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
