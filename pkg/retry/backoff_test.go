package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestExponentialBackoffCaps(t *testing.T) {
	b := ExponentialBackoff{Base: 10 * time.Millisecond, Max: 35 * time.Millisecond}
	if got := b.Next(1); got != 10*time.Millisecond {
		t.Fatalf("attempt 1: got %s", got)
	}
	if got := b.Next(2); got != 20*time.Millisecond {
		t.Fatalf("attempt 2: got %s", got)
	}
	if got := b.Next(3); got != 35*time.Millisecond {
		t.Fatalf("attempt 3: expected cap, got %s", got)
	}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), 3, ExponentialBackoff{Base: time.Millisecond, Max: time.Millisecond}, func(attempt int) error {
		calls++
		if attempt < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDoReturnsLastError(t *testing.T) {
	errBoom := errors.New("boom")
	calls := 0
	err := Do(context.Background(), 2, ExponentialBackoff{Base: time.Millisecond}, func(int) error {
		calls++
		return errBoom
	})
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestDoStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := Do(ctx, 5, nil, func(int) error {
		calls++
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("expected no calls, got %d", calls)
	}
}
