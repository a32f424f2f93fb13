/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package poll implements a bounded fixed-interval polling loop.
//
// Verification against an eventually-consistent telemetry pipeline has
// no push channel to wait on: the exporter batches, the collector
// buffers, and the only observable is the collector's log output. The
// loop here turns that into a synchronous check with a hard ceiling of
// MaxAttempts x Interval.
package poll

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chainguard-dev/clog"
)

// ErrBudgetExhausted is wrapped by Until when the condition never held
// within the attempt budget.
var ErrBudgetExhausted = errors.New("attempt budget exhausted")

// Config bounds a polling loop.
type Config struct {
	// MaxAttempts is the number of times the condition is evaluated (default: 30).
	MaxAttempts int
	// Interval is the sleep between attempts (default: 1s).
	Interval time.Duration
}

// Validate checks that the polling configuration has valid values.
func (c Config) Validate() error {
	if c.MaxAttempts < 1 {
		return errors.New("max attempts must be at least 1")
	}
	if c.Interval < 0 {
		return errors.New("interval cannot be negative")
	}
	return nil
}

// Default returns the polling budget used by the smoke workflows:
// 30 attempts, one second apart, for a ceiling of roughly 30 seconds.
func Default() Config {
	return Config{
		MaxAttempts: 30,
		Interval:    time.Second,
	}
}

// Until evaluates fn up to cfg.MaxAttempts times, sleeping cfg.Interval
// between attempts, and returns the 1-based attempt on which fn
// reported done. It stops immediately when fn returns done (no residual
// waiting) or when fn returns an error (hard failure, not retried).
// On exhaustion it returns an error wrapping ErrBudgetExhausted.
func Until(ctx context.Context, cfg Config, operation string, fn func(attempt int) (done bool, err error)) (int, error) {
	if err := cfg.Validate(); err != nil {
		return 0, fmt.Errorf("invalid poll config for %s: %w", operation, err)
	}

	log := clog.FromContext(ctx)
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		done, err := fn(attempt)
		if err != nil {
			return attempt, fmt.Errorf("%s failed on attempt %d: %w", operation, attempt, err)
		}
		if done {
			return attempt, nil
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		log.With("operation", operation).
			With("attempt", attempt).
			With("max_attempts", cfg.MaxAttempts).
			Debug("Condition not yet satisfied, polling again")

		select {
		case <-ctx.Done():
			return attempt, ctx.Err()
		case <-time.After(cfg.Interval):
		}
	}

	return cfg.MaxAttempts, fmt.Errorf("%s not satisfied after %d attempts: %w", operation, cfg.MaxAttempts, ErrBudgetExhausted)
}
