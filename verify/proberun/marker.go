/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package proberun

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// NewMarker generates a run-unique marker correlating one emitted span
// with one evidence scan. Callers may override it via the environment;
// this is the default.
func NewMarker() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		// Timestamp only if random generation fails.
		return "smoke-" + time.Now().Format("20060102-150405.000000")
	}
	return fmt.Sprintf("smoke-%s-%s", time.Now().Format("20060102-150405"), hex.EncodeToString(b))
}
