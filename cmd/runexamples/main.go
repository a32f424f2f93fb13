/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// runexamples runs every declared example through the precondition
// gate and reports one pass/fail/skip record per example.
//
// Examples that export telemetry to a configured destination are
// skipped when OTEL_EXPORTER_OTLP_ENDPOINT is unset; examples that
// call a model provider are skipped when the provider credential is
// absent. Skips are reported with their reason and never affect the
// exit status; any failure makes the whole batch exit non-zero.
//
// When OTEL_SMOKE_CONTAINER names a running collector container, the
// otel-smoke example is additionally verified against that collector's
// debug output; a scan miss fails that one example only.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"

	"chainguard.dev/tracesmoke/verify/batch"
	"chainguard.dev/tracesmoke/verify/collector"
	"chainguard.dev/tracesmoke/verify/poll"
	"chainguard.dev/tracesmoke/verify/proberun"
)

type config struct {
	Endpoint      string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	Container     string        `env:"OTEL_SMOKE_CONTAINER"`
	Marker        string        `env:"OTEL_SMOKE_MARKER"`
	Signature     string        `env:"OTEL_SMOKE_SIGNATURE,default=otel_smoke_probe"`
	ResourceAttrs string        `env:"OTEL_RESOURCE_ATTRIBUTES"`
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
	if cfg.Marker == "" {
		cfg.Marker = proberun.NewMarker()
	}

	runner := batch.New()
	runner.ScanBudget = poll.Config{MaxAttempts: cfg.ScanAttempts, Interval: cfg.ScanInterval}
	if cfg.Container != "" {
		runner.Evidence = collector.Attach(cfg.Container, nil)
	}

	records, sum := runner.Run(ctx, declaredExamples(cfg))

	if err := batch.WriteReport(os.Stdout, runner.ID, records, sum); err != nil {
		clog.FatalContextf(ctx, "writing report: %v", err)
	}
	for _, rec := range records {
		if rec.Status == batch.StatusFail && rec.Output != "" {
			fmt.Fprintf(os.Stderr, "--- %s output (tail) ---\n%s\n", rec.Name, proberun.Tail(rec.Output, 20))
		}
	}

	if code := sum.ExitCode(); code != 0 {
		os.Exit(code)
	}
}

// declaredExamples is the ordered list of example programs and their
// gates. The otel-smoke example is the telemetry-path probe; the agent
// examples call live model providers.
func declaredExamples(cfg config) []batch.Example {
	probeEnv := map[string]string{
		"OTEL_SMOKE_MARKER":        cfg.Marker,
		"OTEL_RESOURCE_ATTRIBUTES": cfg.ResourceAttrs,
	}
	if cfg.Endpoint != "" {
		probeEnv["OTEL_EXPORTER_OTLP_ENDPOINT"] = cfg.Endpoint
	}

	probe := func(name string) proberun.Probe {
		return proberun.Probe{
			Name: name,
			Args: []string{"go", "run", "./examples/" + name},
			Env:  probeEnv,
		}
	}

	smoke := batch.Example{
		Name:  "otel-smoke",
		Probe: probe("otel-smoke"),
		Gate:  batch.Gate{EndpointVar: "OTEL_EXPORTER_OTLP_ENDPOINT"},
	}
	if cfg.Container != "" {
		smoke.Signature = cfg.Signature
		smoke.Marker = cfg.Marker
	}

	return []batch.Example{
		smoke,
		{
			Name:  "agent-basic",
			Probe: probe("agent-basic"),
			Gate:  batch.Gate{CredentialVar: "GEMINI_API_KEY"},
		},
		{
			Name:  "agent-tools",
			Probe: probe("agent-tools"),
			Gate:  batch.Gate{CredentialVar: "GEMINI_API_KEY"},
		},
		{
			Name:  "agent-multi",
			Probe: probe("agent-multi"),
			Gate:  batch.Gate{CredentialVar: "GEMINI_API_KEY"},
		},
		{
			Name:  "agent-claude",
			Probe: probe("agent-claude"),
			Gate:  batch.Gate{CredentialVar: "ANTHROPIC_API_KEY"},
		},
		{
			Name:  "agent-openai",
			Probe: probe("agent-openai"),
			Gate:  batch.Gate{CredentialVar: "OPENAI_API_KEY"},
		},
	}
}
