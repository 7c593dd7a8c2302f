// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package frame splits a TCP byte stream into discrete HL7 message
// texts.
//
// Devices delimit messages with a terminator rather than a length
// prefix. Two terminators are recognized: a hard terminator (the MLLP
// end-of-block byte, 0x1C) and a soft terminator (carriage return,
// 0x0D). A [Splitter] buffers bytes across reads and yields one message
// text per terminator.
//
// # Precedence
//
// When the buffer holds a hard terminator anywhere, the message ends at
// the first hard terminator, even if carriage returns (HL7 segment
// separators) appear before it. Only a buffer with no hard terminator
// at all is split at its first carriage return. Devices that frame with
// 0x1C therefore deliver whole multi-segment messages provided the
// terminator arrives in the same read as the segments; devices that
// omit it get one message per line.
//
// # Envelope
//
// Full MLLP wraps each message as 0x0B <message> 0x1C 0x0D. The
// splitter does not require or validate the leading 0x0B: it is
// whitespace to the trimmer, as is the trailing 0x0D left at the start
// of the next message. Input without the start byte is accepted
// unchanged. This is a deliberate deviation from the full envelope.
//
// # Limits
//
// No maximum message size is enforced. A sender that never transmits a
// terminator grows the buffer without bound.
package frame
