/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package telemetry wires the example programs to an OTLP destination.
//
// Everything is environment-driven: the endpoint, the wire protocol,
// the service identity, and extra resource attributes all come from
// the standard OTEL_* variables, so the same example binary works
// against the ephemeral smoke collector or a real backend.
package telemetry

import (
	"context"
	"fmt"
	"strings"

	"github.com/sethvargo/go-envconfig"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Config is the environment-driven exporter configuration.
type Config struct {
	// Endpoint is the OTLP destination.
	Endpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT,default=http://127.0.0.1:4317"`
	// Protocol selects the exporter wire protocol: "grpc" or
	// "http/protobuf".
	Protocol string `env:"OTEL_EXPORTER_OTLP_PROTOCOL,default=grpc"`
	// ServiceName overrides the per-example default service identity.
	ServiceName string `env:"OTEL_SERVICE_NAME"`
	// ResourceAttrs is a comma-separated list of key=value resource
	// attribute pairs.
	ResourceAttrs string `env:"OTEL_RESOURCE_ATTRIBUTES"`
}

// Setup reads Config from the environment and installs a global tracer
// provider exporting to it. The returned shutdown flushes pending
// spans; callers defer it so the batch exporter drains before exit.
func Setup(ctx context.Context, defaultService string) (func(context.Context) error, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("processing telemetry config: %w", err)
	}
	return SetupWithConfig(ctx, defaultService, cfg)
}

// SetupWithConfig is Setup with an explicit configuration.
func SetupWithConfig(ctx context.Context, defaultService string, cfg Config) (func(context.Context) error, error) {
	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}

	name := cfg.ServiceName
	if name == "" {
		name = defaultService
	}
	attrs := append(parseResourceAttrs(cfg.ResourceAttrs), semconv.ServiceName(name))
	res, err := resource.New(ctx, resource.WithAttributes(attrs...))
	if err != nil {
		return nil, fmt.Errorf("building resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp.Shutdown, nil
}

// newExporter builds the OTLP span exporter for the configured
// protocol. WithEndpointURL derives TLS vs plaintext from the URL
// scheme, so http:// endpoints (the smoke collector) stay insecure
// without an extra knob.
func newExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	switch cfg.Protocol {
	case "grpc":
		exp, err := otlptracegrpc.New(ctx, otlptracegrpc.WithEndpointURL(cfg.Endpoint))
		if err != nil {
			return nil, fmt.Errorf("creating otlp grpc exporter: %w", err)
		}
		return exp, nil
	case "http/protobuf", "http":
		exp, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(cfg.Endpoint))
		if err != nil {
			return nil, fmt.Errorf("creating otlp http exporter: %w", err)
		}
		return exp, nil
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", cfg.Protocol)
	}
}

// parseResourceAttrs parses the OTEL_RESOURCE_ATTRIBUTES k=v,k=v form.
// Malformed pairs are dropped rather than failing the whole setup.
func parseResourceAttrs(s string) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	for pair := range strings.SplitSeq(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			continue
		}
		attrs = append(attrs, attribute.String(k, v))
	}
	return attrs
}
