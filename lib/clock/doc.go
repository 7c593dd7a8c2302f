// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source.
//
// The receiver stamps every stored record and every acknowledgment
// with the current time, and the message store pins each record's
// modification time to its receipt time so that eviction order follows
// arrival order. Production code injects Real(); tests inject Fake() and
// move time explicitly:
//
//	c := clock.Fake(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
//	store, _ := msgstore.Open(msgstore.Config{Clock: c, ...})
//	c.Advance(time.Second)
//
// Network deadlines (the accept poll) stay on wall-clock time: the
// kernel enforces them, so a fake clock cannot drive them.
package clock
