// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"bufio"
	"net"
	"strings"
	"testing"
	"time"
)

const (
	startBlock     = 0x0B
	endBlock       = 0x1C
	carriageReturn = 0x0D
)

// replyTimeout bounds every Client read and write.
const replyTimeout = 5 * time.Second

// Message returns a three-segment device message (MSH, PID, OBX) with
// the given control id (MSH-10) and message type (MSH-9). The sender is
// MONITOR at facility WARD3.
func Message(controlID, messageType string) string {
	return strings.Join([]string{
		"MSH|^~\\&|MONITOR|WARD3|HL7_SERVER||20240101120000||" + messageType + "|" + controlID + "|P|2.3.1",
		"PID|1||12345^^^HOSP||DOE^JANE",
		"OBX|1|NM|8867-4^Heart rate^LN||72|/min|||||F",
	}, "\r")
}

// Frame wraps text in the full MLLP envelope: start block, text, end
// block, carriage return.
func Frame(text string) []byte {
	framed := make([]byte, 0, len(text)+3)
	framed = append(framed, startBlock)
	framed = append(framed, text...)
	return append(framed, endBlock, carriageReturn)
}

// Reply is an acknowledgment split into the fields tests inspect.
type Reply struct {
	// Raw is the reply text without the trailing end block.
	Raw string

	// Header holds the MSH fields, Header[0] being "MSH".
	Header []string

	// Code is MSA-1: "AA" or "AE".
	Code string

	// ControlID is MSA-2.
	ControlID string

	// Text is MSA-3.
	Text string
}

// ParseReply splits an acknowledgment into its MSH and MSA fields.
func ParseReply(t TB, raw string) Reply {
	t.Helper()
	segments := strings.Split(strings.TrimSuffix(raw, "\r"), "\r")
	if len(segments) != 2 {
		t.Fatalf("reply has %d segments, want 2: %q", len(segments), raw)
	}
	msa := strings.Split(segments[1], "|")
	if len(msa) != 4 || msa[0] != "MSA" {
		t.Fatalf("malformed MSA segment: %q", segments[1])
	}
	return Reply{
		Raw:       raw,
		Header:    strings.Split(segments[0], "|"),
		Code:      msa[1],
		ControlID: msa[2],
		Text:      msa[3],
	}
}

// Client is a device stand-in connected to a receiver.
type Client struct {
	t      *testing.T
	conn   net.Conn
	reader *bufio.Reader
}

// Dial connects to address. The connection is closed when the test
// completes.
func Dial(t *testing.T, address string) *Client {
	t.Helper()
	conn, err := net.DialTimeout("tcp", address, replyTimeout)
	if err != nil {
		t.Fatalf("dialing %s: %v", address, err)
	}
	t.Cleanup(func() { conn.Close() })
	return &Client{t: t, conn: conn, reader: bufio.NewReader(conn)}
}

// Send frames text, writes it, and returns the parsed reply.
func (c *Client) Send(text string) Reply {
	c.t.Helper()
	c.Write(Frame(text))
	return c.ReadReply()
}

// Write writes raw bytes without framing.
func (c *Client) Write(data []byte) {
	c.t.Helper()
	c.conn.SetWriteDeadline(time.Now().Add(replyTimeout))
	if _, err := c.conn.Write(data); err != nil {
		c.t.Fatalf("writing %d bytes: %v", len(data), err)
	}
}

// ReadReply reads one acknowledgment up to its end block.
func (c *Client) ReadReply() Reply {
	c.t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(replyTimeout))
	raw, err := c.reader.ReadString(endBlock)
	if err != nil {
		c.t.Fatalf("reading reply: %v", err)
	}
	return ParseReply(c.t, strings.TrimSuffix(raw, string(rune(endBlock))))
}

// Close closes the connection.
func (c *Client) Close() {
	c.conn.Close()
}
