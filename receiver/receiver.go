// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package receiver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/hl7ingest/lib/clock"
	"github.com/bureau-foundation/hl7ingest/lib/hl7"
	"github.com/bureau-foundation/hl7ingest/lib/metrics"
	"github.com/bureau-foundation/hl7ingest/lib/msgstore"
	"github.com/bureau-foundation/hl7ingest/lib/netutil"
)

// DefaultPollInterval is how long one Accept call blocks before the
// loop checks for shutdown.
const DefaultPollInterval = time.Second

// MessageStore persists received messages. *msgstore.Store implements
// it; Save must be safe for concurrent use.
type MessageStore interface {
	Save(record msgstore.Record) (string, error)
	Count() (int, error)
	MaxFiles() int
}

// ListenError reports a failure to bind the listening socket. Nothing
// is left running when Start returns one.
type ListenError struct {
	Address string
	Err     error
}

func (e *ListenError) Error() string {
	return fmt.Sprintf("listening on %s: %v", e.Address, e.Err)
}

func (e *ListenError) Unwrap() error { return e.Err }

// Server receives HL7 messages over TCP.
type Server struct {
	// Address is the TCP address to listen on, e.g. "0.0.0.0:2575".
	// Port 0 binds an ephemeral port; see Addr.
	Address string

	// Store persists accepted messages. Required.
	Store MessageStore

	// Acks builds replies. If nil, a builder using Clock and the
	// default sending application is used.
	Acks *hl7.AckBuilder

	// Clock stamps receipt times. If nil, clock.Real() is used.
	Clock clock.Clock

	// Logger receives structured log output. If nil, slog.Default() is
	// used. Per-message events are logged at Debug/Info, failures at
	// Warn/Error.
	Logger *slog.Logger

	// Metrics, when non-nil, receives message and connection counts.
	Metrics *metrics.Metrics

	// PollInterval bounds each Accept call. Zero means
	// DefaultPollInterval.
	PollInterval time.Duration

	// StatusSocket, when set, is the path of a Unix socket answering
	// status requests while the server runs.
	StatusSocket string

	state atomic.Int32

	// mu serializes Start and Stop and guards the fields below.
	mu        sync.Mutex
	listener  *net.TCPListener
	status    *statusServer
	cancel    context.CancelFunc
	done      chan struct{}
	startedAt time.Time

	connections       atomic.Int64
	activeConnections atomic.Int64
	accepted          atomic.Int64
	rejected          atomic.Int64
}

func (s *Server) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s *Server) clock() clock.Clock {
	if s.Clock != nil {
		return s.Clock
	}
	return clock.Real()
}

func (s *Server) pollInterval() time.Duration {
	if s.PollInterval > 0 {
		return s.PollInterval
	}
	return DefaultPollInterval
}

// Start binds the listener and begins accepting connections in the
// background. It returns once the listener is bound, or a *ListenError
// if binding fails. The server runs until Stop is called or ctx is
// cancelled.
func (s *Server) Start(ctx context.Context) error {
	if s.Address == "" {
		return fmt.Errorf("receiver: Address is required")
	}
	if s.Store == nil {
		return fmt.Errorf("receiver: Store is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.CompareAndSwap(int32(Stopped), int32(Starting)) {
		return fmt.Errorf("receiver: cannot start while %s", s.State())
	}
	if s.Acks == nil {
		s.Acks = &hl7.AckBuilder{Clock: s.Clock}
	}

	listener, err := netutil.ListenTCP(ctx, s.Address)
	if err != nil {
		s.state.Store(int32(Stopped))
		return &ListenError{Address: s.Address, Err: err}
	}

	var status *statusServer
	if s.StatusSocket != "" {
		status, err = s.startStatus(s.StatusSocket)
		if err != nil {
			listener.Close()
			s.state.Store(int32(Stopped))
			return &ListenError{Address: s.StatusSocket, Err: err}
		}
	}

	s.listener = listener
	s.status = status
	s.startedAt = s.clock().Now()
	ctx, s.cancel = context.WithCancel(ctx)
	done := make(chan struct{})
	s.done = done
	s.state.Store(int32(Running))

	go func() {
		defer close(done)
		s.acceptLoop(ctx, listener, status)
	}()

	stored, _ := s.Store.Count()
	s.logger().Info("HL7 server listening",
		"address", listener.Addr().String(),
		"stored", stored,
		"max_files", s.Store.MaxFiles(),
	)
	return nil
}

// Addr returns the bound listener address, useful when Address uses
// port 0. Returns nil if the server has never started.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// State returns the current lifecycle state.
func (s *Server) State() State {
	return State(s.state.Load())
}

// Healthy reports whether the server is accepting connections.
func (s *Server) Healthy() bool {
	return s.State() == Running
}

// Stop stops accepting connections and waits for the accept loop to
// close the listener. Connections already established are not
// interrupted. Stop is idempotent and safe to call on a server that
// never started.
func (s *Server) Stop() {
	s.mu.Lock()
	if s.state.CompareAndSwap(int32(Running), int32(Stopping)) {
		s.logger().Info("shutting down HL7 server")
		s.cancel()
	}
	done := s.done
	s.mu.Unlock()

	if done != nil {
		<-done
	}
}

// Wait blocks until the accept loop has exited.
func (s *Server) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

// acceptLoop owns listener and status and closes both on exit.
func (s *Server) acceptLoop(ctx context.Context, listener *net.TCPListener, status *statusServer) {
	defer func() {
		s.state.CompareAndSwap(int32(Running), int32(Stopping))
		listener.Close()
		if status != nil {
			status.close()
		}
		s.state.Store(int32(Stopped))
		s.logger().Info("HL7 server stopped",
			"connections", s.connections.Load(),
			"accepted", s.accepted.Load(),
			"rejected", s.rejected.Load(),
		)
	}()

	poll := s.pollInterval()
	for {
		if ctx.Err() != nil {
			return
		}

		// Listener deadlines compare against the wall clock, not s.Clock.
		listener.SetDeadline(time.Now().Add(poll))
		connection, err := listener.Accept()
		if err != nil {
			if netutil.IsTimeout(err) {
				continue
			}
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger().Error("accept failed", "error", err)
			continue
		}

		connectionID := s.connections.Add(1)
		go s.handleConnection(connection, connectionID)
	}
}

// Stats is a point-in-time snapshot of the server. It is served on
// the status socket as CBOR and printed by the CLI as JSON.
type Stats struct {
	State             string        `json:"state"`
	Address           string        `json:"address"`
	Stored            int           `json:"stored"`
	StoreError        string        `json:"store_error,omitempty"`
	Capacity          int           `json:"capacity"`
	Accepted          int64         `json:"accepted"`
	Rejected          int64         `json:"rejected"`
	Connections       int64         `json:"connections"`
	ActiveConnections int64         `json:"active_connections"`
	Uptime            time.Duration `json:"uptime"`
}

// Stats returns current counters and the live store count.
func (s *Server) Stats() Stats {
	stats := Stats{
		State:             s.State().String(),
		Accepted:          s.accepted.Load(),
		Rejected:          s.rejected.Load(),
		Connections:       s.connections.Load(),
		ActiveConnections: s.activeConnections.Load(),
	}

	s.mu.Lock()
	if s.listener != nil {
		stats.Address = s.listener.Addr().String()
	}
	startedAt := s.startedAt
	s.mu.Unlock()

	if stats.State == Running.String() {
		stats.Uptime = clock.Since(s.clock(), startedAt)
	}

	if s.Store != nil {
		stats.Capacity = s.Store.MaxFiles()
		count, err := s.Store.Count()
		if err != nil {
			stats.StoreError = err.Error()
		}
		stats.Stored = count
	}
	return stats
}
