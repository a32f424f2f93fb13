/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package collector provisions an ephemeral OpenTelemetry collector
// container for one verification run. The collector's debug exporter
// writes every received span to the container log, which is the
// inspectable evidence sink the scanner polls.
//
// The container is owned exclusively by one run: Start force-removes
// any prior container with the same name before creating a new one,
// and Teardown removes the container and its scratch directory. Drivers
// register Teardown with defer immediately after a successful Start so
// it runs on every exit path, including interruption.
package collector

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/chainguard-dev/clog"
)

// DefaultImage is the collector image used when no override is given.
const DefaultImage = "otel/opentelemetry-collector:latest"

// DefaultName is the container identity used when no override is given.
const DefaultName = "tracesmoke-otelcol"

// configMountPath is where the stock collector image reads its config.
const configMountPath = "/etc/otelcol/config.yaml"

// Runner executes one container-runtime command and returns its
// combined output. The default runner shells out to docker; tests
// inject fakes.
type Runner func(ctx context.Context, args ...string) ([]byte, error)

// EnvironmentError indicates a required external tool is missing.
// Fatal and never retried: the operator must install the tool.
type EnvironmentError struct {
	Tool string
	Err  error
}

func (e *EnvironmentError) Error() string {
	return fmt.Sprintf("required tool %q not found: %v", e.Tool, e.Err)
}

func (e *EnvironmentError) Unwrap() error { return e.Err }

// ProvisionError indicates the collector container could not be
// created or started (including image pull failures). Fatal; the
// runtime output is carried for diagnostics.
type ProvisionError struct {
	Op     string
	Output string
	Err    error
}

func (e *ProvisionError) Error() string {
	return fmt.Sprintf("provisioning collector (%s): %v", e.Op, e.Err)
}

func (e *ProvisionError) Unwrap() error { return e.Err }

// Options configures a collector instance.
type Options struct {
	// Image is the collector image reference (default DefaultImage).
	// The runtime pulls it on first use; pull failures surface as
	// *ProvisionError.
	Image string
	// Name is the container identity (default DefaultName).
	Name string
	// GRPCPort and HTTPPort are the host ports mapped onto the OTLP
	// receivers (defaults 4317 and 4318).
	GRPCPort int
	HTTPPort int
	// ScratchDir holds the generated configuration. Empty means a
	// fresh temporary directory owned (and removed) by the instance.
	ScratchDir string
	// Runner overrides how runtime commands execute. Nil means the
	// docker CLI.
	Runner Runner
}

func (o *Options) applyDefaults() {
	if o.Image == "" {
		o.Image = DefaultImage
	}
	if o.Name == "" {
		o.Name = DefaultName
	}
	if o.GRPCPort == 0 {
		o.GRPCPort = containerGRPCPort
	}
	if o.HTTPPort == 0 {
		o.HTTPPort = containerHTTPPort
	}
	if o.Runner == nil {
		o.Runner = dockerRun
	}
}

// Instance is a running collector container plus its scratch directory.
type Instance struct {
	name    string
	scratch string
	runner  Runner
}

// Name returns the container identity.
func (i *Instance) Name() string { return i.name }

// lookPath is an indirection point for tests.
var lookPath = exec.LookPath

// dockerRun executes one docker command, capturing combined
// stdout/stderr.
func dockerRun(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "docker", args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	return out.Bytes(), err
}

// Start provisions a collector container and blocks until the runtime
// reports it created. It does not wait for the receivers to accept
// connections; callers follow up with a port readiness probe.
//
// Start is idempotent with respect to the container identity: any
// pre-existing container with the same name is force-removed first
// (last writer wins, no merge).
func Start(ctx context.Context, opts Options) (*Instance, error) {
	// Only check for the real tool when using the real runner.
	if opts.Runner == nil {
		if _, err := lookPath("docker"); err != nil {
			return nil, &EnvironmentError{Tool: "docker", Err: err}
		}
	}
	opts.applyDefaults()
	log := clog.FromContext(ctx)

	scratch := opts.ScratchDir
	ownScratch := scratch == ""
	if ownScratch {
		dir, err := os.MkdirTemp("", "tracesmoke-otelcol-")
		if err != nil {
			return nil, &ProvisionError{Op: "scratch dir", Err: err}
		}
		scratch = dir
	}

	cfg, err := renderConfig()
	if err != nil {
		if ownScratch {
			os.RemoveAll(scratch)
		}
		return nil, &ProvisionError{Op: "render config", Err: err}
	}
	cfgPath := filepath.Join(scratch, "config.yaml")
	if err := os.WriteFile(cfgPath, cfg, 0o644); err != nil {
		if ownScratch {
			os.RemoveAll(scratch)
		}
		return nil, &ProvisionError{Op: "write config", Err: err}
	}

	// Remove any prior instance of the same identity. Errors are
	// expected when no such container exists.
	if out, err := opts.Runner(ctx, "rm", "-f", opts.Name); err != nil {
		log.With("container", opts.Name).With("output", strings.TrimSpace(string(out))).
			Debug("No prior container to remove")
	}

	log.With("container", opts.Name).With("image", opts.Image).
		With("grpc_port", opts.GRPCPort).With("http_port", opts.HTTPPort).
		Info("Starting collector")

	out, err := opts.Runner(ctx, "run", "-d",
		"--name", opts.Name,
		"-p", fmt.Sprintf("%d:%d", opts.GRPCPort, containerGRPCPort),
		"-p", fmt.Sprintf("%d:%d", opts.HTTPPort, containerHTTPPort),
		"-v", fmt.Sprintf("%s:%s:ro", cfgPath, configMountPath),
		opts.Image,
		"--config", configMountPath,
	)
	if err != nil {
		if ownScratch {
			os.RemoveAll(scratch)
		}
		return nil, &ProvisionError{Op: "container start", Output: string(out), Err: err}
	}

	return &Instance{
		name:    opts.Name,
		scratch: scratch,
		runner:  opts.Runner,
	}, nil
}

// Attach returns a handle to an already-running collector container by
// name, without provisioning anything. Logs works as usual; Teardown on
// an attached instance removes the container but no scratch directory.
func Attach(name string, runner Runner) *Instance {
	if runner == nil {
		runner = dockerRun
	}
	return &Instance{name: name, runner: runner}
}

// Logs returns the full accumulated container log. Each call is a
// fresh snapshot; the evidence scanner re-fetches rather than tailing
// because the export path flushes asynchronously.
func (i *Instance) Logs(ctx context.Context) (string, error) {
	out, err := i.runner(ctx, "logs", i.name)
	if err != nil {
		return "", fmt.Errorf("fetching logs for %s: %w", i.name, err)
	}
	return string(out), nil
}

// Teardown removes the container and the scratch directory. Safe to
// call on a partially-provisioned or already-removed instance.
func (i *Instance) Teardown(ctx context.Context) error {
	log := clog.FromContext(ctx)
	log.With("container", i.name).Info("Tearing down collector")

	var errs []error
	if out, err := i.runner(ctx, "rm", "-f", i.name); err != nil {
		errs = append(errs, fmt.Errorf("removing container %s: %w (%s)", i.name, err, strings.TrimSpace(string(out))))
	}
	if i.scratch != "" {
		if err := os.RemoveAll(i.scratch); err != nil {
			errs = append(errs, fmt.Errorf("removing scratch dir: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("teardown: %v", errs)
	}
	return nil
}
