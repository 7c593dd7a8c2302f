// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"context"
	"fmt"
	"net"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// ListenTCP binds a TCP listener on address with SO_REUSEADDR set.
func ListenTCP(ctx context.Context, address string) (*net.TCPListener, error) {
	config := net.ListenConfig{Control: reuseAddress}
	listener, err := config.Listen(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}
	return listener.(*net.TCPListener), nil
}

func reuseAddress(network, address string, raw syscall.RawConn) error {
	var optionErr error
	err := raw.Control(func(fd uintptr) {
		optionErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	if optionErr != nil {
		return fmt.Errorf("setting SO_REUSEADDR: %w", optionErr)
	}
	return nil
}

// ListenUnix listens on a Unix socket at path, removing any socket file
// left behind by a previous process. The caller removes the file after
// closing the listener.
func ListenUnix(path string) (net.Listener, error) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("removing stale socket %s: %w", path, err)
	}
	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", path, err)
	}
	return listener, nil
}
