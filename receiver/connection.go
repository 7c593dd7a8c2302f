// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package receiver

import (
	"log/slog"
	"net"

	"github.com/bureau-foundation/hl7ingest/lib/frame"
	"github.com/bureau-foundation/hl7ingest/lib/hl7"
	"github.com/bureau-foundation/hl7ingest/lib/metrics"
	"github.com/bureau-foundation/hl7ingest/lib/msgstore"
	"github.com/bureau-foundation/hl7ingest/lib/netutil"
)

// readBufferSize is the most one Read asks for.
const readBufferSize = 4096

// handleConnection serves one device until it disconnects. Messages on
// one connection are processed strictly in order, and each reply is
// written before the next read.
func (s *Server) handleConnection(connection net.Conn, connectionID int64) {
	defer connection.Close()

	s.activeConnections.Add(1)
	s.Metrics.ConnectionOpened()
	defer func() {
		s.activeConnections.Add(-1)
		s.Metrics.ConnectionClosed()
	}()

	remoteAddr := connection.RemoteAddr().String()
	logger := s.logger().With(
		"connection_id", connectionID,
		"remote_addr", remoteAddr,
	)
	logger.Info("connection accepted")

	splitter := frame.NewHL7Splitter()
	buffer := make([]byte, readBufferSize)
	messages := 0

	for {
		n, readErr := connection.Read(buffer)
		if n > 0 {
			splitter.Write(buffer[:n])
			for {
				text, ok := splitter.Next()
				if !ok {
					break
				}
				messages++
				reply := s.process(logger, remoteAddr, text)
				if _, err := connection.Write(reply); err != nil {
					s.Metrics.ReplyFailed()
					if netutil.IsExpectedCloseError(err) {
						logger.Debug("device closed before reply", "error", err)
					} else {
						logger.Error("writing reply failed", "error", err)
					}
					return
				}
			}
		}
		if readErr != nil {
			if netutil.IsExpectedCloseError(readErr) {
				logger.Debug("read ended", "error", readErr)
			} else {
				logger.Error("reading from device failed", "error", readErr)
			}
			logger.Info("connection closed",
				"messages", messages,
				"unframed_bytes", splitter.Buffered(),
			)
			return
		}
	}
}

// process handles one framed message and returns the reply to send.
func (s *Server) process(logger *slog.Logger, remoteAddr, text string) []byte {
	header, err := hl7.ParseHeader(text)
	if err != nil {
		s.rejected.Add(1)
		s.Metrics.MessageRejected(metrics.ReasonParse)
		logger.Warn("rejecting malformed message", "error", err, "bytes", len(text))
		return s.Acks.BuildNak(hl7.Unknown, err.Error())
	}

	controlID := header.ControlID()
	messageType := header.MessageType()
	logger.Debug("message received",
		"control_id", controlID,
		"message_type", messageType,
		"bytes", len(text),
	)

	name, err := s.Store.Save(msgstore.Record{
		ReceivedAt:  s.clock().Now(),
		RemoteAddr:  remoteAddr,
		ControlID:   controlID,
		MessageType: messageType,
		Text:        text,
	})
	if err != nil {
		s.rejected.Add(1)
		s.Metrics.MessageRejected(metrics.ReasonStore)
		logger.Error("saving message failed",
			"control_id", controlID,
			"message_type", messageType,
			"error", err,
		)
		return s.Acks.BuildNak(controlID, err.Error())
	}

	s.accepted.Add(1)
	s.Metrics.MessageAccepted()
	logger.Info("message accepted",
		"control_id", controlID,
		"message_type", messageType,
		"file", name,
	)
	return s.Acks.BuildAck(header.SendingApplication(), header.SendingFacility(), controlID)
}
