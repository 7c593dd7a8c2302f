// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package hl7

import (
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/hl7ingest/lib/clock"
	"github.com/bureau-foundation/hl7ingest/lib/frame"
)

func testBuilder() *AckBuilder {
	return &AckBuilder{
		Clock: clock.Fake(time.Date(2024, 1, 1, 12, 30, 45, 0, time.UTC)),
	}
}

// segments splits a reply into its segments, checking the trailing
// end-of-block byte.
func segments(t *testing.T, reply []byte) []string {
	t.Helper()
	text := string(reply)
	if !strings.HasSuffix(text, "\r"+string(frame.EndBlock)) {
		t.Fatalf("reply %q does not end with CR + end-of-block", text)
	}
	text = strings.TrimSuffix(text, "\r"+string(frame.EndBlock))
	return strings.Split(text, "\r")
}

func TestBuildAck(t *testing.T) {
	reply := testBuilder().BuildAck("DEV", "HOSP", "ABC123")
	parts := segments(t, reply)
	if len(parts) != 2 {
		t.Fatalf("got %d segments, want 2: %q", len(parts), parts)
	}

	wantMSH := "MSH|^~\\&|HL7_SERVER||DEV|HOSP|20240101123045||ACK|ABC123_ACK|P|2.3.1"
	if parts[0] != wantMSH {
		t.Errorf("MSH = %q\nwant  %q", parts[0], wantMSH)
	}
	if parts[1] != "MSA|AA|ABC123|Message accepted" {
		t.Errorf("MSA = %q", parts[1])
	}
}

func TestBuildAckIsParseable(t *testing.T) {
	reply := testBuilder().BuildAck("DEV", "HOSP", "ABC123")
	header, err := ParseHeader(strings.TrimSuffix(string(reply), string(frame.EndBlock)))
	if err != nil {
		t.Fatalf("ParseHeader(reply): %v", err)
	}
	if header.MessageType() != "ACK" || header.ControlID() != "ABC123_ACK" {
		t.Errorf("reply header type %q control %q", header.MessageType(), header.ControlID())
	}
}

func TestBuildAckCustomSendingApplication(t *testing.T) {
	builder := testBuilder()
	builder.SendingApplication = "ECG_GATEWAY"
	reply := string(builder.BuildAck("DEV", "", "X"))
	if !strings.HasPrefix(reply, "MSH|^~\\&|ECG_GATEWAY||DEV||") {
		t.Errorf("reply = %q", reply)
	}
}

func TestBuildNak(t *testing.T) {
	parts := segments(t, testBuilder().BuildNak("ABC123", "boom"))
	if len(parts) != 2 {
		t.Fatalf("got %d segments, want 2", len(parts))
	}
	wantMSH := "MSH|^~\\&|HL7_SERVER||||20240101123045||ACK|ABC123_NAK|P|2.3.1"
	if parts[0] != wantMSH {
		t.Errorf("MSH = %q\nwant  %q", parts[0], wantMSH)
	}
	if parts[1] != "MSA|AE|ABC123|boom" {
		t.Errorf("MSA = %q", parts[1])
	}
}

func TestBuildNakTruncatesErrorText(t *testing.T) {
	long := strings.Repeat("x", 250)
	parts := segments(t, testBuilder().BuildNak("ABC123", long))
	fields := strings.Split(parts[1], "|")
	if len(fields) != 4 {
		t.Fatalf("MSA has %d fields, want 4: %q", len(fields), parts[1])
	}
	if fields[1] != CodeError || fields[2] != "ABC123" {
		t.Errorf("MSA code/control = %q/%q", fields[1], fields[2])
	}
	if len(fields[3]) != MaxErrorTextLength {
		t.Errorf("error text length = %d, want %d", len(fields[3]), MaxErrorTextLength)
	}
}

func TestBuildNakTruncatesByCharacter(t *testing.T) {
	text := strings.Repeat("é", 150)
	parts := segments(t, testBuilder().BuildNak("C", text))
	errorText := strings.Split(parts[1], "|")[3]
	if got := len([]rune(errorText)); got != MaxErrorTextLength {
		t.Errorf("error text has %d characters, want %d", got, MaxErrorTextLength)
	}
}

func TestBuildNakKeepsStructureIntact(t *testing.T) {
	parts := segments(t, testBuilder().BuildNak("C1", "open a|b: failed\r\nretry \\ later"))
	if len(parts) != 2 {
		t.Fatalf("error text split the reply into %d segments: %q", len(parts), parts)
	}
	if got, want := parts[1], `MSA|AE|C1|open a\F\b: failed  retry \E\ later`; got != want {
		t.Errorf("MSA = %q\nwant  %q", got, want)
	}
}

func TestZeroValueBuilder(t *testing.T) {
	var builder AckBuilder
	reply := string(builder.BuildAck("DEV", "HOSP", "Z"))
	if !strings.Contains(reply, "|HL7_SERVER|") || !strings.Contains(reply, "MSA|AA|Z|") {
		t.Errorf("reply = %q", reply)
	}
}
