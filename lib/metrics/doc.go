// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package metrics defines the Prometheus collectors exported by the
// receiver and the HTTP handler that serves them.
//
// A nil *Metrics is valid and records nothing, so libraries accept an
// optional *Metrics without guarding every call site.
package metrics
