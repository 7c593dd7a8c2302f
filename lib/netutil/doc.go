// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil provides listener setup and connection error
// classification shared by the receiver and its status socket.
//
// [ListenTCP] binds with SO_REUSEADDR so a restarted receiver can
// rebind its port while old connections sit in TIME_WAIT. [ListenUnix]
// replaces a stale socket file left by a previous run.
//
// [IsExpectedCloseError] and [IsTimeout] separate ordinary teardown and
// accept-poll deadlines from failures worth logging at error level.
package netutil
