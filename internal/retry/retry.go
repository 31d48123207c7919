// Package retry runs calls with exponential backoff.
package retry

import (
	"context"
	"log/slog"
	"math"
	"time"
)

// Config holds the backoff settings.
type Config struct {
	MaxRetries      int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	BackoffMultiple float64
}

// DefaultConfig returns the backoff used for remote calls.
func DefaultConfig() Config {
	return Config{
		MaxRetries:      3,
		BaseDelay:       200 * time.Millisecond,
		MaxDelay:        5 * time.Second,
		BackoffMultiple: 2.0,
	}
}

// Retryable reports whether a failed attempt should be tried again.
type Retryable func(err error, statusCode int) bool

// Options configures one Execute call.
type Options struct {
	Config    Config
	Retryable Retryable
	Logger    *slog.Logger
	Name      string
}

func (c Config) delay(attempt int) time.Duration {
	d := time.Duration(float64(c.BaseDelay) * math.Pow(c.BackoffMultiple, float64(attempt)))
	if d > c.MaxDelay {
		d = c.MaxDelay
	}
	return d
}

// Execute calls fn until it succeeds, returns a non-retryable error, or
// the retries run out. The last error is returned.
func Execute[T any](ctx context.Context, opts Options, fn func(attempt int) (T, int, error)) (T, error) {
	var zero T
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			d := opts.Config.delay(attempt - 1)
			if opts.Logger != nil {
				opts.Logger.Debug("retrying", "call", opts.Name, "attempt", attempt+1, "delay", d)
			}
			timer := time.NewTimer(d)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, ctx.Err()
			case <-timer.C:
			}
		}

		result, status, err := fn(attempt)
		if err == nil {
			return result, nil
		}
		if attempt >= opts.Config.MaxRetries || opts.Retryable == nil || !opts.Retryable(err, status) {
			return zero, err
		}
		if opts.Logger != nil {
			opts.Logger.Debug("attempt failed", "call", opts.Name, "attempt", attempt+1, "status", status, "err", err)
		}
	}
}

// TransientHTTP retries transport errors, rate limiting and server errors.
func TransientHTTP(err error, statusCode int) bool {
	if err == nil {
		return false
	}
	if statusCode == 0 {
		return true
	}
	return statusCode == 429 || statusCode >= 500
}
