/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package portcheck_test

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"chainguard.dev/tracesmoke/verify/poll"
	"chainguard.dev/tracesmoke/verify/portcheck"
)

// listen binds an ephemeral port on loopback and returns its port number.
func listen(t *testing.T) (net.Listener, int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listening on ephemeral port: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	return ln, ln.Addr().(*net.TCPAddr).Port
}

// closedPort returns a loopback port with no listener by binding one
// and immediately releasing it.
func closedPort(t *testing.T) int {
	t.Helper()
	ln, port := listen(t)
	ln.Close()
	return port
}

func TestWait_ReadyImmediately(t *testing.T) {
	t.Parallel()
	_, port := listen(t)

	cfg := poll.Config{MaxAttempts: 5, Interval: time.Second}
	start := time.Now()
	if err := portcheck.Wait(context.Background(), "127.0.0.1", port, cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Early exit: a ready port must not wait out the remaining budget.
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Wait consumed budget on a ready port: %v", elapsed)
	}
}

func TestWait_NotReady(t *testing.T) {
	t.Parallel()
	port := closedPort(t)

	cfg := poll.Config{MaxAttempts: 3, Interval: time.Millisecond}
	err := portcheck.Wait(context.Background(), "127.0.0.1", port, cfg)

	var nre *portcheck.NotReadyError
	if !errors.As(err, &nre) {
		t.Fatalf("expected *NotReadyError, got %v", err)
	}
	if nre.Attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", nre.Attempts)
	}
	if nre.Port != port {
		t.Fatalf("expected port %d in error, got %d", port, nre.Port)
	}
}

func TestWait_BecomesReady(t *testing.T) {
	t.Parallel()
	ln, port := listen(t)
	addr := ln.Addr().String()
	ln.Close()

	// Rebind the same port shortly after Wait begins polling.
	go func() {
		time.Sleep(30 * time.Millisecond)
		if ln2, err := net.Listen("tcp", addr); err == nil {
			time.Sleep(time.Second)
			ln2.Close()
		}
	}()

	cfg := poll.Config{MaxAttempts: 50, Interval: 10 * time.Millisecond}
	if err := portcheck.Wait(context.Background(), "127.0.0.1", port, cfg); err != nil {
		t.Fatalf("expected port to become ready, got %v", err)
	}
}

func TestFree_UnboundPort(t *testing.T) {
	t.Parallel()
	port := closedPort(t)
	if err := portcheck.Free(context.Background(), "127.0.0.1", port); err != nil {
		t.Fatalf("unexpected error for unbound port: %v", err)
	}
}

func TestFree_Collision(t *testing.T) {
	t.Parallel()
	_, port := listen(t)

	start := time.Now()
	err := portcheck.Free(context.Background(), "127.0.0.1", port)

	var ce *portcheck.CollisionError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *CollisionError, got %v", err)
	}
	if ce.Port != port {
		t.Fatalf("expected port %d in error, got %d", port, ce.Port)
	}
	// Collision detection is a single attempt, not a poll loop.
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Free took too long for a bound port: %v", elapsed)
	}
}
