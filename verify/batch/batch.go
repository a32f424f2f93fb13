/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package batch sequences instrumented probe runs across the declared
// examples, classifying each as pass, fail, or skip.
//
// Examples run strictly sequentially. Fault isolation comes from
// sequencing plus independent status recording: one probe's failure is
// recorded and the batch moves on. Exactly one Record exists per
// example regardless of outcome, and the fold into a Summary decides
// the batch exit status (skips never affect it).
package batch

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/chainguard-dev/clog"
	"github.com/google/uuid"

	"chainguard.dev/tracesmoke/verify/evidence"
	"chainguard.dev/tracesmoke/verify/poll"
	"chainguard.dev/tracesmoke/verify/proberun"
)

// Status classifies one example run.
type Status string

const (
	StatusPass Status = "pass"
	StatusFail Status = "fail"
	StatusSkip Status = "skip"
)

// Gate is the precondition check applied before an example executes.
// A failed gate skips the example; it never fails it.
type Gate struct {
	// EndpointVar names the environment variable that must be set for
	// examples exporting telemetry to a configured destination.
	EndpointVar string
	// CredentialVar names the provider credential variable the example
	// requires.
	CredentialVar string
}

// Example declares one probe plus its gate.
type Example struct {
	Name  string
	Probe proberun.Probe
	Gate  Gate
	// Signature, when non-empty, makes a passing run additionally
	// verify that the signature reached the collector evidence sink.
	Signature string
	// Marker corroborates that this run's span arrived, not a stale
	// one. Only consulted when Signature is set.
	Marker string
}

// Record is the immutable outcome of one example.
type Record struct {
	Name       string
	Status     Status
	Output     string
	SkipReason string
}

// Summary is the fold of all Records.
type Summary struct {
	Pass int
	Fail int
	Skip int
}

// String renders the stable grep-able summary token line.
func (s Summary) String() string {
	return fmt.Sprintf("pass=%d fail=%d skip=%d", s.Pass, s.Fail, s.Skip)
}

// ExitCode is non-zero iff any example failed.
func (s Summary) ExitCode() int {
	if s.Fail > 0 {
		return 1
	}
	return 0
}

// Summarize folds records into a Summary.
func Summarize(records []Record) Summary {
	var s Summary
	for _, r := range records {
		switch r.Status {
		case StatusPass:
			s.Pass++
		case StatusFail:
			s.Fail++
		case StatusSkip:
			s.Skip++
		}
	}
	return s
}

// Runner executes a batch of examples.
type Runner struct {
	// ID identifies the batch run in logs and reports.
	ID string
	// Lookup resolves environment variables for gating. Nil means
	// os.LookupEnv.
	Lookup func(string) (string, bool)
	// Exec runs one probe. Nil means proberun.Run.
	Exec func(context.Context, proberun.Probe) (proberun.Result, error)
	// Evidence, when non-nil, is scanned after each passing example
	// that declares a Signature. A scan failure is scoped to that one
	// example's record.
	Evidence evidence.Source
	// ScanBudget bounds evidence scans. Zero value means poll.Default.
	ScanBudget poll.Config
}

// New returns a Runner with a fresh run ID and default collaborators.
func New() *Runner {
	return &Runner{
		ID:         uuid.NewString(),
		Lookup:     os.LookupEnv,
		Exec:       proberun.Run,
		ScanBudget: poll.Default(),
	}
}

// Run executes every example in order and returns one Record per
// example plus the Summary. It never returns early: probe failures are
// recorded and siblings still run.
func (r *Runner) Run(ctx context.Context, examples []Example) ([]Record, Summary) {
	lookup := r.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	execProbe := r.Exec
	if execProbe == nil {
		execProbe = proberun.Run
	}
	budget := r.ScanBudget
	if budget.MaxAttempts == 0 {
		budget = poll.Default()
	}

	log := clog.FromContext(ctx).With("run_id", r.ID)
	records := make([]Record, 0, len(examples))

	for _, ex := range examples {
		if reason := gateReason(ex.Gate, lookup); reason != "" {
			log.With("example", ex.Name).With("reason", reason).Info("Skipping example")
			records = append(records, Record{Name: ex.Name, Status: StatusSkip, SkipReason: reason})
			continue
		}

		res, err := execProbe(ctx, ex.Probe)
		if err != nil {
			var ee *proberun.ExecError
			if errors.As(err, &ee) {
				log.With("example", ex.Name).With("exit_code", ee.ExitCode).
					Warn("Example failed")
			} else {
				log.With("example", ex.Name).With("error", err.Error()).
					Warn("Example failed")
			}
			records = append(records, Record{Name: ex.Name, Status: StatusFail, Output: res.Output})
			continue
		}

		rec := Record{Name: ex.Name, Status: StatusPass, Output: res.Output}
		if ex.Signature != "" && r.Evidence != nil {
			finding, err := evidence.Scan(ctx, r.Evidence, ex.Signature, ex.Marker, budget)
			log.With("example", ex.Name).
				With("signature_found", finding.SignatureFound).
				With("marker_found", finding.MarkerFound).
				Info("Evidence scan complete")
			if err != nil {
				// Scoped to this example; the batch continues.
				rec.Status = StatusFail
				rec.Output = fmt.Sprintf("%s\nevidence scan: %v", res.Output, err)
			}
		}
		records = append(records, rec)
	}

	return records, Summarize(records)
}

// gateReason returns a human-readable skip reason naming the missing
// variable, or "" when all preconditions hold.
func gateReason(g Gate, lookup func(string) (string, bool)) string {
	if g.EndpointVar != "" {
		if v, ok := lookup(g.EndpointVar); !ok || v == "" {
			return fmt.Sprintf("%s not set", g.EndpointVar)
		}
	}
	if g.CredentialVar != "" {
		if v, ok := lookup(g.CredentialVar); !ok || v == "" {
			return fmt.Sprintf("%s not set", g.CredentialVar)
		}
	}
	return ""
}
