// Package retry runs operations with exponential backoff for transient failures.
package retry

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config configures the exponential backoff retry behavior.
type Config struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	MaxAttempts  int
	Multiplier   float64
	// Retryable decides whether an error is worth another attempt.
	// Defaults to IsTransient.
	Retryable func(error) bool
}

// DefaultConfig returns the defaults used for release index calls.
func DefaultConfig() Config {
	return Config{
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		MaxAttempts:  3,
		Multiplier:   2.0,
	}
}

// Transient is implemented by errors that know whether they are retryable.
type Transient interface {
	Transient() bool
}

// IsTransient reports whether err is a network failure or an error that
// declares itself transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var t Transient
	if errors.As(err, &t) {
		return t.Transient()
	}
	return IsNetworkError(err)
}

// IsNetworkError checks if an error is likely due to network unavailability.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	var dnsErr *net.DNSError
	if errors.As(err, &netErr) || errors.As(err, &dnsErr) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	networkIndicators := []string{
		"connection refused",
		"no such host",
		"network is unreachable",
		"no route to host",
		"host is down",
		"i/o timeout",
		"connection reset",
		"temporary failure in name resolution",
		"unexpected eof",
	}
	for _, indicator := range networkIndicators {
		if strings.Contains(errStr, indicator) {
			return true
		}
	}

	return false
}

// Do executes fn, retrying with exponential backoff while the error is
// retryable. Other errors fail immediately.
func Do(ctx context.Context, name string, cfg Config, fn func(ctx context.Context) error, logger zerolog.Logger) error {
	retryable := cfg.Retryable
	if retryable == nil {
		retryable = IsTransient
	}
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				logger.Info().Str("operation", name).Int("attempt", attempt).Msg("operation succeeded after retry")
			}
			return nil
		}

		lastErr = err

		if !retryable(err) {
			return err
		}

		if attempt == attempts {
			break
		}

		logger.Warn().
			Err(err).
			Str("operation", name).
			Int("attempt", attempt).
			Int("maxAttempts", attempts).
			Dur("nextRetryIn", delay).
			Msg("transient error, will retry")

		if err := sleep(ctx, delay); err != nil {
			return err
		}
		delay = next(delay, cfg)
	}

	logger.Error().Err(lastErr).Str("operation", name).Int("attempts", attempts).
		Msg("operation failed after all retries")
	return lastErr
}

func sleep(ctx context.Context, d time.Duration) error {
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

func next(delay time.Duration, cfg Config) time.Duration {
	mult := cfg.Multiplier
	if mult < 1 {
		mult = 1
	}
	n := time.Duration(float64(delay) * mult)
	if cfg.MaxDelay > 0 && n > cfg.MaxDelay {
		n = cfg.MaxDelay
	}
	return n
}
