// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for hl7ingest packages.
//
// [SocketDir] creates a short temporary directory for Unix domain
// sockets. Socket paths are limited to 108 bytes (sun_path in
// sockaddr_un), and t.TempDir() paths can exceed that.
//
// [RequireReceive], [RequireSend], and [RequireClosed] wrap the select
// with a time.After fallback so that a broken test fails instead of
// hanging.
//
// [Message] and [Frame] build device-style HL7 fixtures. [Client] is a
// device stand-in: it writes framed messages to a receiver and reads
// the acknowledgment for each one.
//
// [UniqueID] generates distinct control ids for tests that send many
// messages.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
//
// This package has no hl7ingest-internal dependencies.
package testutil
