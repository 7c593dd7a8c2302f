// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package receiver

// State is the server lifecycle state. Transitions run
// Stopped → Starting → Running → Stopping → Stopped; a failed bind goes
// from Starting straight back to Stopped.
type State int32

const (
	Stopped State = iota
	Starting
	Running
	Stopping
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	default:
		return "unknown"
	}
}
