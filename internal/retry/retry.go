// Package retry runs remote calls with bounded exponential backoff and jitter.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

// Config bounds a retry loop.
type Config struct {
	MaxRetries     int           // attempts after the first one
	InitialBackoff time.Duration // delay before the first retry
	MaxBackoff     time.Duration // ceiling for any single delay
	Multiplier     float64       // growth factor between delays
	JitterFraction float64       // +/- fraction of the delay added at random
}

// DefaultConfig returns a small retry budget suited to interactive API calls.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     3,
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.2,
	}
}

// Classifier reports whether an error is worth another attempt.
type Classifier func(error) bool

// Notify is called before each retry with the attempt number, the failure and the upcoming delay.
type Notify func(attempt int, err error, wait time.Duration)

// ErrExhausted wraps the last failure once the retry budget is spent.
var ErrExhausted = errors.New("max retries exceeded")

// IsTransient retries everything except context cancellation and expiry.
func IsTransient(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// Do calls fn until it succeeds, classify rejects the error, the budget runs out, or ctx ends.
//
// Permanent errors are returned unchanged so callers can inspect them with errors.As.
func Do(ctx context.Context, cfg Config, classify Classifier, notify Notify, fn func(context.Context) error) error {
	if classify == nil {
		classify = IsTransient
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = 1
	}

	var lastErr error
	backoff := cfg.InitialBackoff

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if !classify(err) {
			return err
		}

		if attempt == cfg.MaxRetries {
			break
		}

		wait := backoff + jitter(backoff, cfg.JitterFraction)
		if cfg.MaxBackoff > 0 && wait > cfg.MaxBackoff {
			wait = cfg.MaxBackoff
		}
		if notify != nil {
			notify(attempt+1, err, wait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w (last error: %v)", ctx.Err(), lastErr)
		}

		backoff = time.Duration(float64(backoff) * cfg.Multiplier)
		if cfg.MaxBackoff > 0 && backoff > cfg.MaxBackoff {
			backoff = cfg.MaxBackoff
		}
	}

	return fmt.Errorf("%w: %w", ErrExhausted, lastErr)
}

// jitter returns a random duration in [-fraction*d, +fraction*d].
func jitter(d time.Duration, fraction float64) time.Duration {
	if fraction <= 0 || d <= 0 {
		return 0
	}
	spread := float64(d) * fraction
	return time.Duration((rand.Float64() - 0.5) * 2 * spread)
}
