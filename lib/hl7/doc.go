// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package hl7 reads the header of HL7 v2 messages and builds the
// acknowledgments sent back to devices.
//
// Only the MSH segment is interpreted. [ParseHeader] locates the field
// separator declared at MSH-1 and exposes the sending application
// (MSH-3), sending facility (MSH-4), message type (MSH-9) and control
// id (MSH-10). Fields beyond the end of a short header read as
// [Unknown]; everything else about the message is opaque.
//
// [AckBuilder] produces the two-segment MSH/MSA replies: AA for an
// accepted message and AE for a rejected one, both terminated with the
// MLLP end-of-block byte.
package hl7
