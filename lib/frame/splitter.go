// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package frame

import (
	"bytes"
	"strings"
	"unicode"
)

// Byte values used by HL7 devices to delimit messages.
const (
	// StartBlock is the MLLP start-of-block byte (VT).
	StartBlock byte = 0x0B

	// EndBlock is the MLLP end-of-block byte (FS): the hard terminator.
	EndBlock byte = 0x1C

	// CarriageReturn separates HL7 segments and serves as the soft
	// terminator when no EndBlock is buffered.
	CarriageReturn byte = 0x0D
)

// Splitter accumulates stream bytes and extracts terminated message
// texts. The zero value is not usable; construct with [NewSplitter] or
// [NewHL7Splitter].
//
// A Splitter is owned by a single connection goroutine and is not safe
// for concurrent use.
type Splitter struct {
	hard   byte
	soft   byte
	buffer []byte
}

// NewSplitter returns a Splitter that ends messages at hard, falling
// back to soft when no hard terminator is buffered.
func NewSplitter(hard, soft byte) *Splitter {
	return &Splitter{hard: hard, soft: soft}
}

// NewHL7Splitter returns a Splitter using [EndBlock] as the hard
// terminator and [CarriageReturn] as the soft terminator.
func NewHL7Splitter() *Splitter {
	return NewSplitter(EndBlock, CarriageReturn)
}

// Write appends p to the pending buffer. It never fails; the signature
// satisfies io.Writer so a Splitter can sit behind io.Copy in tests.
func (s *Splitter) Write(p []byte) (int, error) {
	s.buffer = append(s.buffer, p...)
	return len(p), nil
}

// Next returns the next complete message text. It returns ok == false
// when the buffer holds no terminator, meaning the caller must read
// more bytes. Terminated segments that are empty after trimming are
// consumed and skipped.
func (s *Splitter) Next() (text string, ok bool) {
	for {
		end := bytes.IndexByte(s.buffer, s.hard)
		if end < 0 {
			end = bytes.IndexByte(s.buffer, s.soft)
		}
		if end < 0 {
			return "", false
		}

		raw := s.buffer[:end]
		s.consume(end + 1)

		text = strings.TrimFunc(strings.ToValidUTF8(string(raw), ""), isFrameSpace)
		if text == "" {
			continue
		}
		return text, true
	}
}

// Buffered returns the number of bytes waiting for a terminator.
func (s *Splitter) Buffered() int {
	return len(s.buffer)
}

// consume drops the first n bytes. When the buffer empties, the
// backing array is released so one large message does not pin memory
// for the rest of the connection.
func (s *Splitter) consume(n int) {
	if n >= len(s.buffer) {
		s.buffer = nil
		return
	}
	s.buffer = s.buffer[n:]
}

// isFrameSpace reports whether r is trimmed from message edges:
// Unicode whitespace (which includes StartBlock and CarriageReturn)
// plus the ASCII information separators 0x1C-0x1F.
func isFrameSpace(r rune) bool {
	return unicode.IsSpace(r) || (r >= 0x1C && r <= 0x1F)
}
