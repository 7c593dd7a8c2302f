// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package msgstore

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zeebo/blake3"
)

// Extension is the suffix of every record file.
const Extension = ".hl7"

// ErrCorrupt reports a record file whose header block cannot be parsed
// or whose digest does not match its message text.
var ErrCorrupt = errors.New("corrupt record")

const (
	filenameTimeLayout = "20060102_150405"
	receivedTimeLayout = "2006-01-02T15:04:05.000000Z07:00"
	headerSeparator    = "#=================================================="
	digestPrefix       = "blake3:"
)

// Record is one received message plus its receipt metadata.
type Record struct {
	// ReceivedAt is when the message arrived. Save stamps it from the
	// store's clock when zero.
	ReceivedAt time.Time

	// RemoteAddr is the sender's host:port.
	RemoteAddr string

	// ControlID is MSH-10 of the message.
	ControlID string

	// MessageType is MSH-9 of the message, e.g. "ORU^W01".
	MessageType string

	// Text is the message as framed off the wire.
	Text string
}

// Filename returns the record's identity within the store.
func (r Record) Filename() string {
	return r.ReceivedAt.Format(filenameTimeLayout) +
		"_" + pathSafe(r.ControlID) +
		"_" + pathSafe(strings.ReplaceAll(r.MessageType, "^", "_")) +
		Extension
}

// Digest returns the BLAKE3 digest of the message text, hex encoded.
func (r Record) Digest() string {
	sum := blake3.Sum256([]byte(r.Text))
	return hex.EncodeToString(sum[:])
}

// encode renders the file body.
func (r Record) encode() []byte {
	var body strings.Builder
	fmt.Fprintf(&body, "# Received: %s\n", r.ReceivedAt.Format(receivedTimeLayout))
	fmt.Fprintf(&body, "# From: %s\n", r.RemoteAddr)
	fmt.Fprintf(&body, "# Control ID: %s\n", r.ControlID)
	fmt.Fprintf(&body, "# Message Type: %s\n", r.MessageType)
	fmt.Fprintf(&body, "# Digest: %s%s\n", digestPrefix, r.Digest())
	body.WriteString(headerSeparator)
	body.WriteByte('\n')
	body.WriteString(r.Text)
	body.WriteByte('\n')
	return []byte(body.String())
}

// decodeRecord parses a file body produced by encode. Files without a
// Digest line (written before digests were recorded) are accepted
// without verification.
func decodeRecord(data []byte) (Record, error) {
	header, text, found := strings.Cut(string(data), headerSeparator+"\n")
	if !found {
		return Record{}, fmt.Errorf("%w: missing header separator", ErrCorrupt)
	}

	record := Record{Text: strings.TrimSuffix(text, "\n")}
	var digest string

	scanner := bufio.NewScanner(strings.NewReader(header))
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimPrefix(scanner.Text(), "# "), ": ")
		if !ok {
			continue
		}
		switch key {
		case "Received":
			receivedAt, err := time.Parse(receivedTimeLayout, value)
			if err != nil {
				return Record{}, fmt.Errorf("%w: received time %q: %v", ErrCorrupt, value, err)
			}
			record.ReceivedAt = receivedAt
		case "From":
			record.RemoteAddr = value
		case "Control ID":
			record.ControlID = value
		case "Message Type":
			record.MessageType = value
		case "Digest":
			digest = strings.TrimPrefix(value, digestPrefix)
		}
	}

	if digest != "" && digest != record.Digest() {
		return Record{}, fmt.Errorf("%w: digest mismatch", ErrCorrupt)
	}
	return record, nil
}

// pathSafe replaces characters that cannot appear in a single path
// element.
func pathSafe(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r < 0x20 || r == 0x7f {
			return '_'
		}
		return r
	}, s)
}
