// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package hl7

import (
	"strings"

	"github.com/bureau-foundation/hl7ingest/lib/clock"
	"github.com/bureau-foundation/hl7ingest/lib/frame"
)

// Acknowledgment codes carried in MSA-1.
const (
	CodeAccept = "AA"
	CodeError  = "AE"
)

// DefaultSendingApplication identifies this receiver in reply headers.
const DefaultSendingApplication = "HL7_SERVER"

// MaxErrorTextLength bounds the MSA-3 text of a negative
// acknowledgment, in characters.
const MaxErrorTextLength = 100

const (
	ackVersion      = "2.3.1"
	ackProcessingID = "P"
	ackTimeLayout   = "20060102150405"
	acceptedText    = "Message accepted"
)

// AckBuilder builds acknowledgment replies. The zero value is usable:
// it identifies as [DefaultSendingApplication] and reads the wall
// clock.
type AckBuilder struct {
	// SendingApplication fills MSH-3 of every reply.
	SendingApplication string

	// Clock supplies the MSH-7 timestamp.
	Clock clock.Clock
}

// BuildAck returns a positive acknowledgment (MSA-1 = AA) for the
// message with the given control id. senderApp and receivingFacility
// come from the original message's MSH-3 and MSH-4 and address the
// reply back to the device.
func (b *AckBuilder) BuildAck(senderApp, receivingFacility, controlID string) []byte {
	return b.build(
		[]string{senderApp, receivingFacility},
		controlID+"_ACK",
		[]string{"MSA", CodeAccept, controlID, acceptedText},
	)
}

// BuildNak returns a negative acknowledgment (MSA-1 = AE). errorText is
// cut to [MaxErrorTextLength] characters and sanitized so it cannot
// break the reply's segment or field structure.
func (b *AckBuilder) BuildNak(controlID, errorText string) []byte {
	return b.build(
		[]string{"", ""},
		controlID+"_NAK",
		[]string{"MSA", CodeError, controlID, sanitizeText(truncate(errorText, MaxErrorTextLength))},
	)
}

// build assembles MSH and MSA segments. receiver holds MSH-5 and MSH-6.
func (b *AckBuilder) build(receiver []string, replyControlID string, msa []string) []byte {
	msh := []string{
		"MSH",
		DefaultEncodingCharacters,
		b.sendingApplication(),
		"",
		receiver[0],
		receiver[1],
		b.now(),
		"",
		"ACK",
		replyControlID,
		ackProcessingID,
		ackVersion,
	}

	var reply strings.Builder
	reply.WriteString(strings.Join(msh, "|"))
	reply.WriteByte(SegmentSeparator)
	reply.WriteString(strings.Join(msa, "|"))
	reply.WriteByte(SegmentSeparator)
	reply.WriteByte(frame.EndBlock)
	return []byte(reply.String())
}

func (b *AckBuilder) sendingApplication() string {
	if b.SendingApplication != "" {
		return b.SendingApplication
	}
	return DefaultSendingApplication
}

func (b *AckBuilder) now() string {
	if b.Clock != nil {
		return b.Clock.Now().Format(ackTimeLayout)
	}
	return clock.Real().Now().Format(ackTimeLayout)
}

// truncate returns at most limit runes of s.
func truncate(s string, limit int) string {
	count := 0
	for index := range s {
		if count == limit {
			return s[:index]
		}
		count++
	}
	return s
}

var textReplacer = strings.NewReplacer(
	"\r", " ",
	"\n", " ",
	string(frame.EndBlock), " ",
	`\`, `\E\`,
	"|", `\F\`,
)

// sanitizeText flattens line breaks and escapes HL7 delimiters in
// free text.
func sanitizeText(s string) string {
	return textReplacer.Replace(s)
}
