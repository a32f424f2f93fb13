/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package poll_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"chainguard.dev/tracesmoke/verify/poll"
)

func testConfig() poll.Config {
	return poll.Config{
		MaxAttempts: 5,
		Interval:    time.Millisecond,
	}
}

func TestUntil_ImmediateSuccess(t *testing.T) {
	t.Parallel()
	calls := 0
	attempt, err := poll.Until(context.Background(), testConfig(), "test_op", func(int) (bool, error) {
		calls++
		return true, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempt != 1 {
		t.Fatalf("expected success on attempt 1, got %d", attempt)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestUntil_SuccessOnLaterAttempt(t *testing.T) {
	t.Parallel()
	attempt, err := poll.Until(context.Background(), testConfig(), "test_op", func(n int) (bool, error) {
		return n == 3, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempt != 3 {
		t.Fatalf("expected success on attempt 3, got %d", attempt)
	}
}

func TestUntil_StopsAtSuccess(t *testing.T) {
	t.Parallel()
	calls := 0
	_, err := poll.Until(context.Background(), testConfig(), "test_op", func(n int) (bool, error) {
		calls = n
		return n == 2, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// No attempt beyond the one that satisfied the condition.
	if calls != 2 {
		t.Fatalf("expected no attempts past 2, last was %d", calls)
	}
}

func TestUntil_Exhaustion(t *testing.T) {
	t.Parallel()
	calls := 0
	attempt, err := poll.Until(context.Background(), testConfig(), "test_op", func(int) (bool, error) {
		calls++
		return false, nil
	})
	if !errors.Is(err, poll.ErrBudgetExhausted) {
		t.Fatalf("expected ErrBudgetExhausted, got %v", err)
	}
	if attempt != 5 {
		t.Fatalf("expected 5 attempts reported, got %d", attempt)
	}
	if calls != 5 {
		t.Fatalf("expected 5 calls, got %d", calls)
	}
}

func TestUntil_BoundedWallTime(t *testing.T) {
	t.Parallel()
	cfg := poll.Config{MaxAttempts: 3, Interval: 10 * time.Millisecond}
	start := time.Now()
	_, err := poll.Until(context.Background(), cfg, "test_op", func(int) (bool, error) {
		return false, nil
	})
	if !errors.Is(err, poll.ErrBudgetExhausted) {
		t.Fatalf("expected ErrBudgetExhausted, got %v", err)
	}
	// Two sleeps between three attempts, plus scheduling slack.
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("polling overran its ceiling: %v", elapsed)
	}
}

func TestUntil_HardError(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	calls := 0
	_, err := poll.Until(context.Background(), testConfig(), "test_op", func(int) (bool, error) {
		calls++
		return false, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped hard error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("hard errors must not be retried, got %d calls", calls)
	}
}

func TestUntil_ContextCancellation(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cfg := poll.Config{MaxAttempts: 100, Interval: time.Hour}
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := poll.Until(ctx, cfg, "test_op", func(int) (bool, error) {
		return false, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestUntil_InvalidConfig(t *testing.T) {
	t.Parallel()
	_, err := poll.Until(context.Background(), poll.Config{}, "test_op", func(int) (bool, error) {
		return true, nil
	})
	if err == nil {
		t.Fatal("expected error for zero max attempts")
	}
}
