// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds the CBOR encoding configuration used by the
// status socket.
//
// The status protocol is one CBOR request and one CBOR response per
// Unix socket connection. CBOR is self-delimiting, so no extra framing
// is needed on the stream:
//
//	encoder := codec.NewEncoder(conn)
//	decoder := codec.NewDecoder(conn)
//
// The encoder uses Core Deterministic Encoding, so the same logical
// value always produces identical bytes.
//
// Types only ever sent as CBOR carry `cbor` struct tags. Types that are
// also printed as JSON by the CLI carry `json` tags, which the CBOR
// encoder reads when `cbor` tags are absent. A field never has both.
package codec
