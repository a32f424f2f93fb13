/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package proberun executes one instrumented target program with
// environment-supplied configuration, capturing its combined output.
//
// Precondition gating (credentials, endpoints) happens one level up in
// the batch runner; this package assumes the preconditions already
// hold and just runs the program.
package proberun

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/chainguard-dev/clog"
)

// Probe describes one target program invocation.
type Probe struct {
	// Name identifies the probe in logs and reports.
	Name string
	// Args is the argv of the target program; Args[0] is the binary.
	Args []string
	// Env holds per-run overrides (endpoint, marker, resource
	// attributes) appended on top of the inherited environment.
	Env map[string]string
	// Dir is the working directory; empty means inherit.
	Dir string
}

// Result is the outcome of one probe execution.
type Result struct {
	ExitCode int
	Output   string
}

// ExecError indicates the target program exited non-zero. It carries
// the tail of the captured output so operators can diagnose without
// re-running; it is an isolated per-probe failure and never aborts a
// batch by itself.
type ExecError struct {
	Probe    string
	ExitCode int
	Tail     string
	Err      error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("probe %s exited %d: %v", e.Probe, e.ExitCode, e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }

// tailLines is how much captured output an ExecError carries.
const tailLines = 20

// Run executes the probe, blocking until it exits. Combined
// stdout/stderr is always captured and returned, on failure alongside
// a *ExecError.
func Run(ctx context.Context, p Probe) (Result, error) {
	if len(p.Args) == 0 {
		return Result{}, fmt.Errorf("probe %s has no command", p.Name)
	}

	log := clog.FromContext(ctx)
	log.With("probe", p.Name).With("command", strings.Join(p.Args, " ")).
		Info("Running probe")

	cmd := exec.CommandContext(ctx, p.Args[0], p.Args[1:]...)
	cmd.Dir = p.Dir
	cmd.Env = append(os.Environ(), envPairs(p.Env)...)

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	res := Result{Output: out.String()}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return res, nil
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
		return res, &ExecError{
			Probe:    p.Name,
			ExitCode: res.ExitCode,
			Tail:     Tail(res.Output, tailLines),
			Err:      err,
		}
	default:
		// The program never ran (binary missing, context canceled).
		res.ExitCode = -1
		return res, &ExecError{
			Probe:    p.Name,
			ExitCode: -1,
			Tail:     Tail(res.Output, tailLines),
			Err:      err,
		}
	}
}

// envPairs flattens the override map into KEY=VALUE form with a stable
// order.
func envPairs(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+env[k])
	}
	return pairs
}

// Tail returns the last n lines of s.
func Tail(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
