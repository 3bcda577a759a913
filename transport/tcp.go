// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"
)

var _ Dialer = (*TCPDialer)(nil)

// TCPDialer opens frame streams over plain TCP. This is the
// development and same-host transport: no TLS, no authentication. Use
// WebSocketDialer with wss:// for anything that crosses a network you
// do not control.
type TCPDialer struct {
	// Address is the provider's host:port.
	Address string

	// Timeout is the maximum time to wait for the TCP connection to be
	// established. Zero means no standalone timeout; only the context
	// deadline applies.
	Timeout time.Duration

	// Logger is handed to each stream. Nil uses slog.Default.
	Logger *slog.Logger
}

// Dial connects and starts a ConnStream.
func (d *TCPDialer) Dial(ctx context.Context) (Stream, error) {
	conn, err := (&net.Dialer{Timeout: d.Timeout}).DialContext(ctx, "tcp", d.Address)
	if err != nil {
		return nil, fmt.Errorf("transport: dialing %s: %w", d.Address, err)
	}
	return NewConnStream(conn, d.Logger), nil
}

// TCPListener accepts provider-side TCP connections.
type TCPListener struct {
	listener net.Listener
}

// NewTCPListener listens on address (e.g. ":8789" or "127.0.0.1:0").
func NewTCPListener(address string) (*TCPListener, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}
	return &TCPListener{listener: listener}, nil
}

// Serve runs server on every accepted connection. Blocks until ctx is
// cancelled or Close is called.
func (l *TCPListener) Serve(ctx context.Context, server *Server) error {
	return server.Serve(ctx, l.listener)
}

// Address returns the TCP address in "host:port" format.
func (l *TCPListener) Address() string {
	return l.listener.Addr().String()
}

// Close stops accepting connections.
func (l *TCPListener) Close() error {
	return l.listener.Close()
}
