// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func TestIsExpectedCloseError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"eof", io.EOF, true},
		{"wrapped eof", fmt.Errorf("reading: %w", io.EOF), true},
		{"closed", net.ErrClosed, true},
		{"reset", &net.OpError{Op: "read", Err: os.NewSyscallError("read", syscall.ECONNRESET)}, true},
		{"broken pipe", &net.OpError{Op: "write", Err: os.NewSyscallError("write", syscall.EPIPE)}, true},
		{"refused", &net.OpError{Op: "dial", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)}, false},
		{"other", errors.New("disk on fire"), false},
	}
	for _, test := range tests {
		if got := IsExpectedCloseError(test.err); got != test.want {
			t.Errorf("%s: IsExpectedCloseError(%v) = %v, want %v", test.name, test.err, got, test.want)
		}
	}
}

func TestListenTCPSetsReuseAddress(t *testing.T) {
	listener, err := ListenTCP(context.Background(), "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenTCP: %v", err)
	}
	defer listener.Close()

	raw, err := listener.SyscallConn()
	if err != nil {
		t.Fatalf("SyscallConn: %v", err)
	}
	var value int
	var optionErr error
	raw.Control(func(fd uintptr) {
		value, optionErr = unix.GetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR)
	})
	if optionErr != nil {
		t.Fatalf("GetsockoptInt: %v", optionErr)
	}
	if value == 0 {
		t.Error("SO_REUSEADDR not set on listener")
	}
}

func TestListenTCPAddressInUse(t *testing.T) {
	first, err := ListenTCP(context.Background(), "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenTCP: %v", err)
	}
	defer first.Close()

	if second, err := ListenTCP(context.Background(), first.Addr().String()); err == nil {
		second.Close()
		t.Fatal("expected error binding an address already listening")
	}
}

func TestAcceptDeadlineIsTimeout(t *testing.T) {
	listener, err := ListenTCP(context.Background(), "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenTCP: %v", err)
	}
	defer listener.Close()

	listener.SetDeadline(time.Now().Add(10 * time.Millisecond))
	_, err = listener.Accept()
	if !IsTimeout(err) {
		t.Fatalf("Accept after deadline: %v, want timeout", err)
	}
	if IsExpectedCloseError(err) {
		t.Error("timeout classified as close")
	}

	listener.Close()
	_, err = listener.Accept()
	if IsTimeout(err) || !IsExpectedCloseError(err) {
		t.Fatalf("Accept after close: %v, want net.ErrClosed", err)
	}
}

func TestListenUnixReplacesStaleSocket(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.sock")
	if err := os.WriteFile(path, nil, 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	listener, err := ListenUnix(path)
	if err != nil {
		t.Fatalf("ListenUnix: %v", err)
	}
	defer listener.Close()

	conn, err := net.Dial("unix", path)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	conn.Close()
}
