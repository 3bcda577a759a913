// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
)

var _ Dialer = (*PipeDialer)(nil)

// PipeDialer connects to a Server in the same process over net.Pipe.
// Every Dial starts a fresh server session.
type PipeDialer struct {
	server *Server
	logger *slog.Logger

	// BeforeDial, when set, is called with the 1-based attempt number
	// and may fail the dial.
	BeforeDial func(attempt int) error

	attempts atomic.Int64
	sessions sync.WaitGroup
}

// Pipe returns a dialer whose streams are served by server.
func Pipe(server *Server, logger *slog.Logger) *PipeDialer {
	return &PipeDialer{server: server, logger: logger}
}

// Dial creates a connected pair and serves the far end.
func (d *PipeDialer) Dial(ctx context.Context) (Stream, error) {
	attempt := int(d.attempts.Add(1))
	if d.BeforeDial != nil {
		if err := d.BeforeDial(attempt); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client, server := net.Pipe()
	d.sessions.Add(1)
	go func() {
		defer d.sessions.Done()
		if err := d.server.ServeConn(context.Background(), server); err != nil {
			d.server.logger().Warn("pipe session failed", "error", err)
		}
	}()
	return NewConnStream(client, d.logger), nil
}

// Attempts returns how many times Dial has been called.
func (d *PipeDialer) Attempts() int { return int(d.attempts.Load()) }

// Wait blocks until every server session has ended.
func (d *PipeDialer) Wait() { d.sessions.Wait() }
