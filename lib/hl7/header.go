// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package hl7

import (
	"fmt"
	"strings"
)

// Unknown is reported for header fields the message does not contain.
const Unknown = "UNKNOWN"

// SegmentSeparator ends each segment of an HL7 message.
const SegmentSeparator = '\r'

// DefaultEncodingCharacters is the MSH-2 value used in replies.
const DefaultEncodingCharacters = `^~\&`

// MSH field positions, numbered as in the HL7 standard (MSH-1 is the
// field separator itself).
const (
	FieldSendingApplication = 3
	FieldSendingFacility    = 4
	FieldMessageType        = 9
	FieldControlID          = 10
)

// ParseError reports a message whose header cannot be located.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return "malformed HL7 message: " + e.Reason
}

// Header is the read-only view of a message's MSH segment.
type Header struct {
	// FieldSeparator is the delimiter declared at MSH-1.
	FieldSeparator byte

	// fields holds the MSH segment split on FieldSeparator. fields[0]
	// is "MSH" and fields[n-1] is MSH-n for n >= 2.
	fields []string
}

// ParseHeader extracts the header of message. Line feeds are treated as
// segment separators. The message must begin with an MSH segment that
// declares a field separator.
func ParseHeader(message string) (Header, error) {
	message = strings.ReplaceAll(message, "\n", string(SegmentSeparator))
	segment, _, _ := strings.Cut(message, string(SegmentSeparator))

	if !strings.HasPrefix(segment, "MSH") {
		if len(segment) > 8 {
			segment = segment[:8] + "..."
		}
		return Header{}, &ParseError{Reason: fmt.Sprintf("first segment %q is not MSH", segment)}
	}
	if len(segment) < 4 {
		return Header{}, &ParseError{Reason: "MSH segment has no field separator"}
	}

	separator := segment[3]
	if separator == ' ' || separator == SegmentSeparator {
		return Header{}, &ParseError{Reason: fmt.Sprintf("invalid field separator %q", separator)}
	}

	return Header{
		FieldSeparator: separator,
		fields:         strings.Split(segment, string(separator)),
	}, nil
}

// Field returns MSH-n, or [Unknown] when the segment is too short.
// Field(1) is the field separator.
func (h Header) Field(n int) string {
	if n == 1 {
		return string(h.FieldSeparator)
	}
	if n < 1 || n-1 >= len(h.fields) {
		return Unknown
	}
	return h.fields[n-1]
}

// FieldCount returns the number of MSH fields present, counting MSH-1.
func (h Header) FieldCount() int {
	return len(h.fields)
}

// SendingApplication returns MSH-3.
func (h Header) SendingApplication() string { return h.Field(FieldSendingApplication) }

// SendingFacility returns MSH-4.
func (h Header) SendingFacility() string { return h.Field(FieldSendingFacility) }

// MessageType returns MSH-9 with its components, e.g. "ORU^W01".
func (h Header) MessageType() string { return h.Field(FieldMessageType) }

// ControlID returns MSH-10.
func (h Header) ControlID() string { return h.Field(FieldControlID) }
