/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package main

import "testing"

func TestDefaultEndpoint(t *testing.T) {
	t.Parallel()
	base := config{GRPCPort: 14317, HTTPPort: 14318}

	for _, tc := range []struct {
		name     string
		protocol string
		endpoint string
		want     string
	}{{
		name:     "grpc uses the grpc port",
		protocol: "grpc",
		want:     "http://127.0.0.1:14317",
	}, {
		name:     "http/protobuf uses the http port",
		protocol: "http/protobuf",
		want:     "http://127.0.0.1:14318",
	}, {
		name:     "http shorthand uses the http port",
		protocol: "http",
		want:     "http://127.0.0.1:14318",
	}, {
		name:     "explicit endpoint wins regardless of protocol",
		protocol: "http/protobuf",
		endpoint: "http://collector.internal:4317",
		want:     "http://collector.internal:4317",
	}} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			cfg.Protocol = tc.protocol
			cfg.Endpoint = tc.endpoint
			if got := defaultEndpoint(cfg); got != tc.want {
				t.Errorf("defaultEndpoint = %q, want %q", got, tc.want)
			}
		})
	}
}
