// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package msgstore persists received HL7 messages as one file per
// message in a capacity-bounded directory.
//
// Each record is a text file named
//
//	{YYYYMMDD_HHMMSS}_{controlID}_{messageType}.hl7
//
// (carets in the message type become underscores) holding a short
// commented header block followed by the original message text. Batch
// tools downstream read these files directly, so the layout is part of
// the external interface.
//
// # Capacity
//
// The record count is never cached: [Store.Count] reads the directory
// every time, so files removed by an operator are reflected at once.
// [Store.Save] takes the store mutex, re-reads the count, and when the
// directory is at capacity runs an eviction sweep before writing. The
// sweep deletes the oldest half of the records by modification time,
// which spreads eviction cost over many subsequent writes rather than
// deleting one file per insert. Save pins each file's modification time
// to the record's receipt time, so "oldest" means "received first".
//
// # Atomicity
//
// Records are written to a hidden temporary file, fsynced, renamed into
// place, and the directory is fsynced. A reader listing the directory
// sees either no file or a complete one. Temporary files orphaned by a
// crash are removed by [Open].
//
// # Concurrency
//
// Save and Evict serialize on one mutex owned by the Store. Count and
// List take no lock; called concurrently with a write they are
// best-effort.
package msgstore
