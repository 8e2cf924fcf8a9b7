package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastConfig(retries int) Config {
	return Config{
		MaxRetries:     retries,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestDo(t *testing.T) {
	t.Run("success on first attempt", func(t *testing.T) {
		attempts := 0
		err := Do(context.Background(), fastConfig(3), nil, nil, func(ctx context.Context) error {
			attempts++
			return nil
		})

		if err != nil {
			t.Errorf("Do() returned error = %v, want nil", err)
		}
		if attempts != 1 {
			t.Errorf("Do() made %d attempts, want 1", attempts)
		}
	})

	t.Run("permanent error returned unchanged", func(t *testing.T) {
		attempts := 0
		permanent := errors.New("not found")
		classify := func(err error) bool { return !errors.Is(err, permanent) }

		err := Do(context.Background(), fastConfig(3), classify, nil, func(ctx context.Context) error {
			attempts++
			return permanent
		})

		if err != permanent {
			t.Errorf("Do() returned error = %v, want %v", err, permanent)
		}
		if attempts != 1 {
			t.Errorf("Do() made %d attempts, want 1", attempts)
		}
	})

	t.Run("transient error recovers", func(t *testing.T) {
		attempts := 0
		var notified []int

		err := Do(context.Background(), fastConfig(3), nil, func(attempt int, err error, wait time.Duration) {
			notified = append(notified, attempt)
		}, func(ctx context.Context) error {
			attempts++
			if attempts < 3 {
				return errors.New("503")
			}
			return nil
		})

		if err != nil {
			t.Errorf("Do() returned error = %v, want nil", err)
		}
		if attempts != 3 {
			t.Errorf("Do() made %d attempts, want 3", attempts)
		}
		if len(notified) != 2 || notified[0] != 1 || notified[1] != 2 {
			t.Errorf("unexpected notifications %v", notified)
		}
	})

	t.Run("budget exhausted", func(t *testing.T) {
		attempts := 0
		transient := errors.New("timeout")

		err := Do(context.Background(), fastConfig(2), nil, nil, func(ctx context.Context) error {
			attempts++
			return transient
		})

		if !errors.Is(err, ErrExhausted) || !errors.Is(err, transient) {
			t.Errorf("expected exhausted error wrapping cause, got %v", err)
		}
		if attempts != 3 {
			t.Errorf("Do() made %d attempts, want 3", attempts)
		}
	})

	t.Run("context canceled during backoff", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cfg := Config{MaxRetries: 5, InitialBackoff: time.Hour, MaxBackoff: time.Hour, Multiplier: 1}

		err := Do(ctx, cfg, nil, nil, func(ctx context.Context) error {
			cancel()
			return errors.New("flaky")
		})

		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("context errors are not retried", func(t *testing.T) {
		attempts := 0
		err := Do(context.Background(), fastConfig(3), nil, nil, func(ctx context.Context) error {
			attempts++
			return context.DeadlineExceeded
		})

		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline error, got %v", err)
		}
		if attempts != 1 {
			t.Errorf("Do() made %d attempts, want 1", attempts)
		}
	})
}

func TestJitter(t *testing.T) {
	d := 100 * time.Millisecond
	for range 50 {
		j := jitter(d, 0.2)
		if j < -20*time.Millisecond || j > 20*time.Millisecond {
			t.Fatalf("jitter %v out of range", j)
		}
	}

	if jitter(d, 0) != 0 {
		t.Error("zero fraction should produce no jitter")
	}
}
