// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Hl7ingest receives HL7 v2 messages from medical devices over TCP,
// stores each one as a file in a bounded message directory, and answers
// every message with an AA or AE acknowledgment.
//
// "hl7ingest" (or "hl7ingest serve") runs the receiver until SIGINT or
// SIGTERM. "hl7ingest status" queries a running receiver over its
// status socket.
package main
