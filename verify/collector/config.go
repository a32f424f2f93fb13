/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package collector

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Container-internal receiver ports. Host ports are remapped onto these
// by the container runtime, so the rendered config never changes shape.
const (
	containerGRPCPort = 4317
	containerHTTPPort = 4318
)

// pipelineDoc is the minimal collector configuration the smoke check
// needs: OTLP in on both protocols, batch, and a detailed debug
// exporter whose stdout becomes the inspectable evidence sink.
type pipelineDoc struct {
	Receivers  map[string]receiverOTLP   `yaml:"receivers"`
	Processors map[string]map[string]any `yaml:"processors"`
	Exporters  map[string]exporterDebug  `yaml:"exporters"`
	Service    service                   `yaml:"service"`
}

type receiverOTLP struct {
	Protocols map[string]protocolEndpoint `yaml:"protocols"`
}

type protocolEndpoint struct {
	Endpoint string `yaml:"endpoint"`
}

type exporterDebug struct {
	Verbosity string `yaml:"verbosity"`
}

type service struct {
	Pipelines map[string]pipeline `yaml:"pipelines"`
}

type pipeline struct {
	Receivers  []string `yaml:"receivers"`
	Processors []string `yaml:"processors"`
	Exporters  []string `yaml:"exporters"`
}

// renderConfig produces the collector configuration document mounted
// read-only into the collector container.
func renderConfig() ([]byte, error) {
	doc := pipelineDoc{
		Receivers: map[string]receiverOTLP{
			"otlp": {
				Protocols: map[string]protocolEndpoint{
					"grpc": {Endpoint: fmt.Sprintf("0.0.0.0:%d", containerGRPCPort)},
					"http": {Endpoint: fmt.Sprintf("0.0.0.0:%d", containerHTTPPort)},
				},
			},
		},
		Processors: map[string]map[string]any{
			"batch": {},
		},
		Exporters: map[string]exporterDebug{
			"debug": {Verbosity: "detailed"},
		},
		Service: service{
			Pipelines: map[string]pipeline{
				"traces": {
					Receivers:  []string{"otlp"},
					Processors: []string{"batch"},
					Exporters:  []string{"debug"},
				},
			},
		},
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshaling collector config: %w", err)
	}
	return out, nil
}
