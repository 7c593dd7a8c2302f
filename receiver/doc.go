// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package receiver accepts device connections and acknowledges every
// HL7 message they send.
//
// A [Server] binds one TCP listener and runs a single accept loop that
// polls with a deadline of PollInterval, checking for shutdown between
// polls. Each accepted connection runs in its own goroutine: bytes go
// through a [frame.Splitter], every complete message has its MSH header
// extracted and is saved to the [MessageStore], and the device gets an
// AA reply on success or an AE reply on failure before the next read.
// A message that fails never ends its connection.
//
// Connection goroutines are counted but not joined: [Server.Stop]
// closes the listener and returns while established connections run
// until their devices disconnect.
//
// When StatusSocket is set, the server also answers CBOR status
// requests on a Unix socket; [QueryStatus] is the client side.
package receiver
