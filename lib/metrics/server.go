// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// Server exposes /metrics and /healthz over HTTP.
type Server struct {
	// ListenAddr is the TCP address to listen on.
	ListenAddr string

	// Metrics supplies the collectors.
	Metrics *Metrics

	// Healthy reports whether /healthz should return 200. Nil means
	// always healthy.
	Healthy func() bool

	// Logger receives lifecycle events. If nil, slog.Default() is used.
	Logger *slog.Logger

	listener net.Listener
	server   *http.Server
	done     chan struct{}
}

func (s *Server) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	if s.ListenAddr == "" {
		return fmt.Errorf("metrics: ListenAddr is required")
	}
	if s.Metrics == nil {
		return fmt.Errorf("metrics: Metrics is required")
	}

	listener, err := net.Listen("tcp", s.ListenAddr)
	if err != nil {
		return fmt.Errorf("metrics: failed to listen on %s: %w", s.ListenAddr, err)
	}
	s.listener = listener

	mux := http.NewServeMux()
	mux.Handle("/metrics", s.Metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if s.Healthy != nil && !s.Healthy() {
			http.Error(w, "not running", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger().Error("metrics server failed", "error", err)
		}
	}()

	s.logger().Info("metrics server listening", "listen_addr", listener.Addr().String())
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop shuts the server down, allowing in-flight scrapes up to the
// context deadline.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	err := s.server.Shutdown(ctx)
	<-s.done
	return err
}
