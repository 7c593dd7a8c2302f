// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides the binary entrypoint error path: reporting
// an error from run() to stderr before the structured logger exists
// (or after it is closed) and choosing the exit status.
//
// Errors may carry their own status through an ExitCode() int method;
// the command uses this to exit 2 on usage errors.
package process
