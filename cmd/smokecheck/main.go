/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// smokecheck runs the single-probe verification workflow: provision an
// ephemeral collector, wait for it to accept connections, run the
// otel-smoke probe against it, then scan the collector's debug output
// for the probe signature and this run's marker.
//
// There are no flags; behavior is controlled entirely by environment
// variables (see the config struct for names and defaults). Exit code
// is 0 only when the signature was found within the scan budget.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"

	"chainguard.dev/tracesmoke/verify/collector"
	"chainguard.dev/tracesmoke/verify/evidence"
	"chainguard.dev/tracesmoke/verify/poll"
	"chainguard.dev/tracesmoke/verify/portcheck"
	"chainguard.dev/tracesmoke/verify/proberun"
)

type config struct {
	Endpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// Protocol is the wire protocol the probe exports with; when no
	// endpoint is set explicitly, it also selects which mapped port
	// the synthesized default endpoint points at.
	Protocol      string        `env:"OTEL_EXPORTER_OTLP_PROTOCOL,default=grpc"`
	GRPCPort      int           `env:"OTEL_SMOKE_GRPC_PORT,default=4317"`
	HTTPPort      int           `env:"OTEL_SMOKE_HTTP_PORT,default=4318"`
	Image         string        `env:"OTEL_SMOKE_IMAGE,default=otel/opentelemetry-collector:latest"`
	Container     string        `env:"OTEL_SMOKE_CONTAINER,default=tracesmoke-otelcol"`
	Marker        string        `env:"OTEL_SMOKE_MARKER"`
	Signature     string        `env:"OTEL_SMOKE_SIGNATURE,default=otel_smoke_probe"`
	ProbeCommand  string        `env:"OTEL_SMOKE_PROBE_CMD,default=go run ./examples/otel-smoke"`
	ServiceName   string        `env:"OTEL_SERVICE_NAME,default=otel-smoke-direct"`
	ResourceAttrs string        `env:"OTEL_RESOURCE_ATTRIBUTES"`
	ReadyAttempts int           `env:"OTEL_SMOKE_READY_ATTEMPTS,default=30"`
	ReadyInterval time.Duration `env:"OTEL_SMOKE_READY_INTERVAL,default=1s"`
	ScanAttempts  int           `env:"OTEL_SMOKE_SCAN_ATTEMPTS,default=30"`
	ScanInterval  time.Duration `env:"OTEL_SMOKE_SCAN_INTERVAL,default=1s"`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	_ = godotenv.Load()

	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		clog.FatalContextf(ctx, "processing config: %v", err)
	}

	// run owns the collector lifecycle; its defers unwind before the
	// fatal exit below, so teardown happens on every failure path.
	if err := run(ctx, cfg); err != nil {
		clog.FatalContextf(ctx, "smoke check failed: %v", err)
	}
	fmt.Println("smoke check passed")
}

func run(ctx context.Context, cfg config) error {
	if cfg.Marker == "" {
		cfg.Marker = proberun.NewMarker()
	}
	cfg.Endpoint = defaultEndpoint(cfg)
	log := clog.FromContext(ctx)
	log.With("marker", cfg.Marker).With("endpoint", cfg.Endpoint).Info("Starting smoke check")

	// Refuse to collide with ports another process owns; the operator
	// must pick other ports.
	for _, port := range []int{cfg.GRPCPort, cfg.HTTPPort} {
		if err := portcheck.Free(ctx, "127.0.0.1", port); err != nil {
			return err
		}
	}

	inst, err := collector.Start(ctx, collector.Options{
		Image:    cfg.Image,
		Name:     cfg.Container,
		GRPCPort: cfg.GRPCPort,
		HTTPPort: cfg.HTTPPort,
	})
	if err != nil {
		var pe *collector.ProvisionError
		if errors.As(err, &pe) && pe.Output != "" {
			fmt.Fprintln(os.Stderr, proberun.Tail(pe.Output, 20))
		}
		return err
	}
	// Teardown must run even when ctx was canceled by an interrupt.
	defer func() {
		if err := inst.Teardown(context.WithoutCancel(ctx)); err != nil {
			clog.WarnContextf(ctx, "teardown: %v", err)
		}
	}()

	ready := poll.Config{MaxAttempts: cfg.ReadyAttempts, Interval: cfg.ReadyInterval}
	if err := portcheck.Wait(ctx, "127.0.0.1", cfg.GRPCPort, ready); err != nil {
		dumpLogs(ctx, inst)
		return err
	}

	res, err := proberun.Run(ctx, proberun.Probe{
		Name: "otel-smoke",
		Args: strings.Fields(cfg.ProbeCommand),
		Env: map[string]string{
			"OTEL_EXPORTER_OTLP_ENDPOINT": cfg.Endpoint,
			"OTEL_EXPORTER_OTLP_PROTOCOL": cfg.Protocol,
			"OTEL_SMOKE_MARKER":           cfg.Marker,
			"OTEL_SERVICE_NAME":           cfg.ServiceName,
			"OTEL_RESOURCE_ATTRIBUTES":    cfg.ResourceAttrs,
		},
	})
	if err != nil {
		var ee *proberun.ExecError
		if errors.As(err, &ee) && ee.Tail != "" {
			fmt.Fprintln(os.Stderr, ee.Tail)
		}
		return err
	}
	log.With("exit_code", res.ExitCode).Info("Probe complete")

	scan := poll.Config{MaxAttempts: cfg.ScanAttempts, Interval: cfg.ScanInterval}
	finding, err := evidence.Scan(ctx, inst, cfg.Signature, cfg.Marker, scan)

	// Stable tokens for humans and CI to grep.
	fmt.Printf("signature_found=%t\n", finding.SignatureFound)
	fmt.Printf("marker_found=%t\n", finding.MarkerFound)

	if err != nil {
		dumpLogs(ctx, inst)
		return err
	}
	return nil
}

// defaultEndpoint returns the configured endpoint, or synthesizes one
// pointing at the mapped port matching the export protocol.
func defaultEndpoint(cfg config) string {
	if cfg.Endpoint != "" {
		return cfg.Endpoint
	}
	port := cfg.GRPCPort
	if cfg.Protocol == "http/protobuf" || cfg.Protocol == "http" {
		port = cfg.HTTPPort
	}
	return fmt.Sprintf("http://127.0.0.1:%d", port)
}

// dumpLogs prints the tail of the collector log so the operator can
// diagnose without re-running.
func dumpLogs(ctx context.Context, inst *collector.Instance) {
	logs, err := inst.Logs(context.WithoutCancel(ctx))
	if err != nil {
		clog.WarnContextf(ctx, "fetching collector logs: %v", err)
		return
	}
	fmt.Fprintln(os.Stderr, "--- collector logs (tail) ---")
	fmt.Fprintln(os.Stderr, proberun.Tail(logs, 40))
}
