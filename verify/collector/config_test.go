/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package collector

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestRenderConfig_Shape(t *testing.T) {
	t.Parallel()
	out, err := renderConfig()
	require.NoError(t, err, "failed to render config")

	var doc pipelineDoc
	require.NoError(t, yaml.Unmarshal(out, &doc), "rendered config is not valid yaml")

	otlp, ok := doc.Receivers["otlp"]
	require.True(t, ok, "expected an otlp receiver")
	if got := otlp.Protocols["grpc"].Endpoint; got != "0.0.0.0:4317" {
		t.Errorf("grpc endpoint = %q, want 0.0.0.0:4317", got)
	}
	if got := otlp.Protocols["http"].Endpoint; got != "0.0.0.0:4318" {
		t.Errorf("http endpoint = %q, want 0.0.0.0:4318", got)
	}

	if _, ok := doc.Processors["batch"]; !ok {
		t.Error("expected a batch processor")
	}
	if got := doc.Exporters["debug"].Verbosity; got != "detailed" {
		t.Errorf("debug verbosity = %q, want detailed", got)
	}

	traces, ok := doc.Service.Pipelines["traces"]
	require.True(t, ok, "expected a traces pipeline")
	if len(doc.Service.Pipelines) != 1 {
		t.Errorf("expected exactly one pipeline, got %d", len(doc.Service.Pipelines))
	}
	for name, got := range map[string][]string{
		"receivers":  traces.Receivers,
		"processors": traces.Processors,
		"exporters":  traces.Exporters,
	} {
		if len(got) != 1 {
			t.Errorf("traces pipeline %s = %v, want a single entry", name, got)
		}
	}
}

func TestRenderConfig_ConstantPorts(t *testing.T) {
	t.Parallel()
	// The container-side config never embeds host ports; remapping is
	// the runtime's job.
	out, err := renderConfig()
	require.NoError(t, err, "failed to render config")
	for _, want := range []string{"0.0.0.0:4317", "0.0.0.0:4318", "verbosity: detailed"} {
		if !strings.Contains(string(out), want) {
			t.Errorf("rendered config missing %q:\n%s", want, out)
		}
	}
}
