/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package proberun_test

import (
	"strings"
	"testing"

	"chainguard.dev/tracesmoke/verify/proberun"
)

func TestNewMarker_Unique(t *testing.T) {
	t.Parallel()
	seen := map[string]bool{}
	for range 100 {
		m := proberun.NewMarker()
		if !strings.HasPrefix(m, "smoke-") {
			t.Fatalf("marker %q missing prefix", m)
		}
		if seen[m] {
			t.Fatalf("duplicate marker %q", m)
		}
		seen[m] = true
	}
}
