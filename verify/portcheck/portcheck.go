/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package portcheck probes local TCP ports. A port accepting
// connections is the readiness proxy for "the collector has started";
// the same probe, inverted, detects a collision with something already
// bound to a port a verification run wants for itself.
package portcheck

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/chainguard-dev/clog"

	"chainguard.dev/tracesmoke/verify/poll"
)

// dialTimeout caps a single connection attempt so one slow probe cannot
// eat the whole readiness budget.
const dialTimeout = 500 * time.Millisecond

// NotReadyError indicates the port never accepted a connection within
// the attempt budget.
type NotReadyError struct {
	Host     string
	Port     int
	Attempts int
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("port %s not ready after %d attempts", net.JoinHostPort(e.Host, fmt.Sprint(e.Port)), e.Attempts)
}

// CollisionError indicates a port a run wanted to own is already bound
// by some other process. The caller must pick another port; this is
// never retried.
type CollisionError struct {
	Host string
	Port int
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("port %s is already in use", net.JoinHostPort(e.Host, fmt.Sprint(e.Port)))
}

// dial makes one bounded connection attempt and reports whether the
// port accepted.
func dial(ctx context.Context, host string, port int) bool {
	d := net.Dialer{Timeout: dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, fmt.Sprint(port)))
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// Wait blocks until the port accepts a TCP connection, returning on the
// first success without waiting out the remaining budget. On exhaustion
// it returns a *NotReadyError.
func Wait(ctx context.Context, host string, port int, cfg poll.Config) error {
	attempt, err := poll.Until(ctx, cfg, fmt.Sprintf("port %d readiness", port), func(int) (bool, error) {
		return dial(ctx, host, port), nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &NotReadyError{Host: host, Port: port, Attempts: attempt}
	}
	clog.FromContext(ctx).With("host", host).With("port", port).With("attempts", attempt).
		Debug("Port ready")
	return nil
}

// Free verifies the port is not already bound. It makes exactly one
// connection attempt: an accepted connection means something else owns
// the port and the run must not collide with it, so Free returns a
// *CollisionError immediately.
func Free(ctx context.Context, host string, port int) error {
	if dial(ctx, host, port) {
		return &CollisionError{Host: host, Port: port}
	}
	return nil
}
