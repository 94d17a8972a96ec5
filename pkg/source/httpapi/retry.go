package httpapi

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"
)

// RetryConfig holds the configuration for transient failure retries within a
// single call. A call that still fails is reported to the caller, which
// decides whether to try again.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts including the first.
	MaxAttempts int

	// InitialBackoff is the initial backoff duration.
	InitialBackoff time.Duration

	// MaxBackoff is the maximum backoff duration.
	MaxBackoff time.Duration

	// BackoffMultiplier is the multiplier for exponential backoff.
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       2,
		InitialBackoff:    250 * time.Millisecond,
		MaxBackoff:        2 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// forClass stretches the backoff for rate limit responses.
func (c RetryConfig) forClass(class ErrorClass) RetryConfig {
	if class == ErrorClassRateLimit {
		c.InitialBackoff *= 4
		c.MaxBackoff *= 4
	}
	return c
}

// retryWithBackoff runs fn until it succeeds, fails with a non-transient
// error, or runs out of attempts. Backoff carries ±20% jitter.
func retryWithBackoff(ctx context.Context, cfg RetryConfig, logger zerolog.Logger, fn func() error) error {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var backoff time.Duration
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				logger.Info().Int("attempt", attempt).Msg("Request succeeded after retry")
			}
			return nil
		}

		class := classOf(err)
		if !shouldRetry(class) {
			return err
		}
		if attempt >= attempts {
			apiRetryExhaustedTotal.WithLabelValues(string(class)).Inc()
			logger.Warn().Str("error_class", string(class)).Int("max_attempts", attempts).Msg("Retry attempts exhausted")
			return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, attempts, err)
		}

		c := cfg.forClass(class)
		if backoff == 0 {
			backoff = c.InitialBackoff
		}
		jitter := time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))

		apiRetriesTotal.WithLabelValues(string(class)).Inc()
		logger.Debug().Str("error_class", string(class)).Int("attempt", attempt).Dur("backoff", jitter).
			Msg("Retrying request after backoff")

		timer := time.NewTimer(jitter)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry interrupted: %w", ctx.Err())
		case <-timer.C:
		}

		backoff = time.Duration(float64(backoff) * c.BackoffMultiplier)
		if backoff > c.MaxBackoff {
			backoff = c.MaxBackoff
		}
	}
}
