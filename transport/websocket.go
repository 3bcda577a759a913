// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bureau-foundation/puppet/lib/netutil"
	"github.com/bureau-foundation/puppet/lib/version"
)

var _ Dialer = (*WebSocketDialer)(nil)

// WebSocketDialer opens frame streams over a WebSocket. Frames travel
// as binary messages, one frame per message.
type WebSocketDialer struct {
	// URL is the provider endpoint (ws:// or wss://).
	URL string

	// Token, when non-empty, is sent as "Authorization: Bearer <token>".
	Token string

	// Header carries extra upgrade request headers.
	Header http.Header

	// HandshakeTimeout bounds the upgrade. Zero leaves only the context
	// deadline.
	HandshakeTimeout time.Duration

	// Logger is handed to each stream. Nil uses slog.Default.
	Logger *slog.Logger
}

// Dial performs the upgrade and starts a ConnStream.
func (d *WebSocketDialer) Dial(ctx context.Context) (Stream, error) {
	header := d.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	if d.Token != "" {
		header.Set("Authorization", "Bearer "+d.Token)
	}
	if header.Get("User-Agent") == "" {
		header.Set("User-Agent", version.UserAgent())
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.HandshakeTimeout,
	}
	conn, response, err := dialer.DialContext(ctx, d.URL, header)
	if err != nil {
		if response != nil {
			return nil, fmt.Errorf("transport: websocket handshake with %s: %s: %w", d.URL, response.Status, err)
		}
		return nil, fmt.Errorf("transport: dialing %s: %w", d.URL, err)
	}
	return NewConnStream(newWebSocketConn(conn), d.Logger), nil
}

// webSocketConn presents a WebSocket as a byte stream. Reads continue
// across message boundaries; each Write is sent as one binary message.
// Only one goroutine may Read and one may Write at a time, which the
// frame reader and frameWriter guarantee.
type webSocketConn struct {
	conn   *websocket.Conn
	reader io.Reader
}

func newWebSocketConn(conn *websocket.Conn) *webSocketConn {
	return &webSocketConn{conn: conn}
}

func (c *webSocketConn) Read(p []byte) (int, error) {
	for {
		if c.reader == nil {
			messageType, reader, err := c.conn.NextReader()
			if err != nil {
				if netutil.IsCloseFrame(err) {
					return 0, io.EOF
				}
				return 0, err
			}
			if messageType != websocket.BinaryMessage {
				continue
			}
			c.reader = reader
		}

		n, err := c.reader.Read(p)
		if err == io.EOF {
			c.reader = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (c *webSocketConn) Write(p []byte) (int, error) {
	if err := c.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close sends a close message, best effort, then drops the connection.
func (c *webSocketConn) Close() error {
	deadline := time.Now().Add(time.Second) //nolint:realclock network write deadline
	message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, message, deadline)
	return c.conn.Close()
}
