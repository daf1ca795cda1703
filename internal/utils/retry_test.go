package utils

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryOnlyTransient(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 3, time.Millisecond, func(context.Context) error {
		calls++
		return errors.New("bad query")
	})
	if err == nil || calls != 1 {
		t.Fatalf("permanent error must not be retried, calls=%d", calls)
	}

	calls = 0
	err = Retry(context.Background(), 2, time.Millisecond, func(context.Context) error {
		calls++
		return Transient(errors.New("503"))
	})
	if !IsTransient(err) || calls != 3 {
		t.Fatalf("expected 3 attempts, got %d (%v)", calls, err)
	}

	calls = 0
	err = Retry(context.Background(), 2, time.Millisecond, func(context.Context) error {
		calls++
		if calls < 2 {
			return Transient(errors.New("reset"))
		}
		return nil
	})
	if err != nil || calls != 2 {
		t.Fatalf("expected success on second attempt, calls=%d err=%v", calls, err)
	}
}

func TestRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Retry(ctx, 5, time.Hour, func(context.Context) error {
		calls++
		cancel()
		return Transient(errors.New("timeout"))
	})
	if err == nil || calls != 1 {
		t.Fatalf("expected single attempt after cancel, calls=%d", calls)
	}
}

func TestKindOf(t *testing.T) {
	if KindOf(NewAppError("fetch", "window", ErrRetentionExceeded)) != "RETENTION_EXCEEDED" {
		t.Fatalf("expected retention kind")
	}
	if KindOf(context.DeadlineExceeded) != "DEADLINE_EXCEEDED" {
		t.Fatalf("expected deadline kind")
	}
	if KindOf(errors.New("boom")) != "SOURCE_UNAVAILABLE" {
		t.Fatalf("expected source unavailable by default")
	}
	if IsTransient(context.DeadlineExceeded) {
		t.Fatalf("deadline must not be transient")
	}
}
