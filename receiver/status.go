// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package receiver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/bureau-foundation/hl7ingest/lib/codec"
	"github.com/bureau-foundation/hl7ingest/lib/netutil"
)

// ActionStatus is the only action the status socket answers.
const ActionStatus = "status"

const (
	// statusReadTimeout is how long a status client has to send its
	// request after connecting.
	statusReadTimeout = 5 * time.Second

	statusWriteTimeout = 5 * time.Second

	// maxStatusRequestSize bounds one CBOR request.
	maxStatusRequestSize = 64 * 1024
)

// statusRequest is the wire form of a status socket request.
type statusRequest struct {
	Action string `cbor:"action"`
}

// statusResponse is the wire envelope for every status socket reply.
type statusResponse struct {
	OK    bool             `cbor:"ok"`
	Error string           `cbor:"error,omitempty"`
	Data  codec.RawMessage `cbor:"data,omitempty"`
}

// statusServer answers one CBOR request per connection on a Unix
// socket.
type statusServer struct {
	path     string
	listener net.Listener
	stats    func() Stats
	logger   *slog.Logger

	connections sync.WaitGroup
	done        chan struct{}
}

func (s *Server) startStatus(path string) (*statusServer, error) {
	listener, err := netutil.ListenUnix(path)
	if err != nil {
		return nil, err
	}
	status := &statusServer{
		path:     path,
		listener: listener,
		stats:    s.Stats,
		logger:   s.logger().With("status_socket", path),
		done:     make(chan struct{}),
	}
	go status.serve()
	status.logger.Info("status socket listening")
	return status, nil
}

func (st *statusServer) serve() {
	defer close(st.done)
	for {
		connection, err := st.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			st.logger.Error("status accept failed", "error", err)
			continue
		}
		st.connections.Add(1)
		go func() {
			defer st.connections.Done()
			st.handle(connection)
		}()
	}
}

// close stops the accept loop, waits for in-flight requests, and
// removes the socket file.
func (st *statusServer) close() {
	st.listener.Close()
	<-st.done
	st.connections.Wait()
	os.Remove(st.path)
}

func (st *statusServer) handle(connection net.Conn) {
	defer connection.Close()

	connection.SetReadDeadline(time.Now().Add(statusReadTimeout))
	var request statusRequest
	if err := codec.NewDecoder(io.LimitReader(connection, maxStatusRequestSize)).Decode(&request); err != nil {
		if errors.Is(err, io.EOF) {
			return
		}
		st.write(connection, statusResponse{Error: fmt.Sprintf("invalid request: %v", err)})
		return
	}

	switch request.Action {
	case "":
		st.write(connection, statusResponse{Error: "missing required field: action"})
	case ActionStatus:
		data, err := codec.Marshal(st.stats())
		if err != nil {
			st.write(connection, statusResponse{Error: fmt.Sprintf("encoding status: %v", err)})
			return
		}
		st.write(connection, statusResponse{OK: true, Data: data})
	default:
		st.write(connection, statusResponse{Error: fmt.Sprintf("unknown action %q", request.Action)})
	}
}

func (st *statusServer) write(connection net.Conn, response statusResponse) {
	connection.SetWriteDeadline(time.Now().Add(statusWriteTimeout))
	if err := codec.NewEncoder(connection).Encode(response); err != nil {
		st.logger.Debug("writing status response failed", "error", err)
	}
}

// QueryStatus asks the server listening on socketPath for its Stats.
func QueryStatus(ctx context.Context, socketPath string) (Stats, error) {
	return queryAction(ctx, socketPath, ActionStatus)
}

func queryAction(ctx context.Context, socketPath, action string) (Stats, error) {
	var dialer net.Dialer
	connection, err := dialer.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return Stats{}, fmt.Errorf("connecting to status socket %s: %w", socketPath, err)
	}
	defer connection.Close()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(statusReadTimeout + statusWriteTimeout)
	}
	connection.SetDeadline(deadline)

	if err := codec.NewEncoder(connection).Encode(statusRequest{Action: action}); err != nil {
		return Stats{}, fmt.Errorf("sending status request: %w", err)
	}

	var response statusResponse
	if err := codec.NewDecoder(connection).Decode(&response); err != nil {
		return Stats{}, fmt.Errorf("reading status response: %w", err)
	}
	if !response.OK {
		return Stats{}, fmt.Errorf("status request failed: %s", response.Error)
	}

	var stats Stats
	if err := codec.Unmarshal(response.Data, &stats); err != nil {
		return Stats{}, fmt.Errorf("decoding status: %w", err)
	}
	return stats, nil
}
