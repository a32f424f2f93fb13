/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package evidence scans the collector's inspectable output for proof
// that probe telemetry arrived.
//
// The export path is batched and flushed asynchronously, so a
// single-shot check produces false negatives under normal latency.
// Scan polls instead: each attempt re-fetches the full accumulated log
// (a fresh snapshot, not a diff) and searches it for two independent
// substrings. The fixed probe signature is the primary success signal;
// the run-unique marker is auxiliary corroboration that this run's
// span, not a stale one, arrived.
package evidence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/chainguard-dev/clog"

	"chainguard.dev/tracesmoke/verify/poll"
)

// Source supplies a point-in-time snapshot of the collector's
// inspectable output. *collector.Instance satisfies it.
type Source interface {
	Logs(ctx context.Context) (string, error)
}

// Finding reports what the scan observed.
type Finding struct {
	// SignatureFound reports whether the fixed probe signature
	// appeared in the evidence.
	SignatureFound bool
	// MarkerFound reports whether the run-unique marker appeared.
	// Its absence is reported but never blocks completion.
	MarkerFound bool
	// Attempts is how many snapshots were inspected.
	Attempts int
}

// NotFoundError indicates the signature never appeared within the scan
// budget. Fatal for the verification run it belongs to.
type NotFoundError struct {
	Signature string
	Attempts  int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("signature %q not found in collector output after %d attempts", e.Signature, e.Attempts)
}

// Scan polls the source until the signature appears or the budget is
// exhausted. The marker is searched independently on every attempt;
// once either substring has been seen it stays found. Scan stops as
// soon as the signature is found, without waiting for the marker.
func Scan(ctx context.Context, src Source, signature, marker string, cfg poll.Config) (Finding, error) {
	var f Finding

	attempt, err := poll.Until(ctx, cfg, "evidence scan", func(int) (bool, error) {
		snapshot, err := src.Logs(ctx)
		if err != nil {
			return false, fmt.Errorf("fetching evidence snapshot: %w", err)
		}
		if strings.Contains(snapshot, signature) {
			f.SignatureFound = true
		}
		if marker != "" && strings.Contains(snapshot, marker) {
			f.MarkerFound = true
		}
		return f.SignatureFound, nil
	})
	f.Attempts = attempt

	log := clog.FromContext(ctx)
	switch {
	case err == nil:
		log.With("attempts", attempt).With("marker_found", f.MarkerFound).
			Info("Probe signature found")
		return f, nil
	case errors.Is(err, poll.ErrBudgetExhausted):
		return f, &NotFoundError{Signature: signature, Attempts: attempt}
	default:
		return f, err
	}
}
