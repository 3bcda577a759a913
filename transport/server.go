// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/bureau-foundation/puppet/lib/codec"
	"github.com/bureau-foundation/puppet/lib/netutil"
)

// Handler answers one request. The returned bytes become the response
// payload; a non-nil error becomes the response's error string.
type Handler interface {
	ServeRequest(ctx context.Context, stream *ServerStream, request Request) ([]byte, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, stream *ServerStream, request Request) ([]byte, error)

// ServeRequest calls f.
func (f HandlerFunc) ServeRequest(ctx context.Context, stream *ServerStream, request Request) ([]byte, error) {
	return f(ctx, stream, request)
}

// Server is the provider end of the frame protocol. Fields must be set
// before the first connection is served.
type Server struct {
	// Handler answers requests. Nil answers every request with an
	// "unknown method" error.
	Handler Handler

	// OnConnect, when set, runs in its own goroutine for each new
	// stream. Its context ends when the stream does.
	OnConnect func(ctx context.Context, stream *ServerStream)

	// Token, when non-empty, must be presented as a bearer token on
	// WebSocket upgrade requests.
	Token string

	// Logger receives connection lifecycle lines. Nil uses
	// slog.Default.
	Logger *slog.Logger
}

// ServerStream is one connected client as seen by the Server.
type ServerStream struct {
	writer *frameWriter
	conn   io.Closer
	done   chan struct{}
}

// Push sends an event to the client.
func (s *ServerStream) Push(ctx context.Context, envelope Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	return s.writer.write(Frame{Type: FrameEvent, Envelope: &envelope})
}

// Close disconnects the client. The client's stream observes the end
// of the connection as a read failure.
func (s *ServerStream) Close() error {
	return s.conn.Close()
}

// Done is closed when the connection has ended.
func (s *ServerStream) Done() <-chan struct{} { return s.done }

func (s *Server) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

// ServeConn runs the protocol on conn until the client disconnects or
// ctx ends. It closes conn and waits for outstanding handlers before
// returning. A client hang-up returns nil.
func (s *Server) ServeConn(ctx context.Context, conn io.ReadWriteCloser) error {
	ctx, cancel := context.WithCancel(ctx)
	stream := &ServerStream{
		writer: newFrameWriter(conn),
		conn:   conn,
		done:   make(chan struct{}),
	}

	var handlers sync.WaitGroup
	defer func() {
		cancel()
		conn.Close()
		handlers.Wait()
	}()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	if s.OnConnect != nil {
		handlers.Add(1)
		go func() {
			defer handlers.Done()
			s.OnConnect(ctx, stream)
		}()
	}

	decoder := codec.NewDecoder(conn)
	for {
		var frame Frame
		if err := decoder.Decode(&frame); err != nil {
			var typeErr *codec.UnmarshalTypeError
			if errors.As(err, &typeErr) {
				s.logger().Warn("dropping malformed client frame", "error", err)
				continue
			}
			close(stream.done)
			if netutil.IsExpectedCloseError(err) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("transport: reading client frame: %w", err)
		}
		if frame.Type != FrameRequest || frame.Request == nil {
			s.logger().Warn("client sent a non-request frame", "type", frame.Type)
			continue
		}

		request := *frame.Request
		handlers.Add(1)
		go func() {
			defer handlers.Done()
			s.answer(ctx, stream, request)
		}()
	}
}

func (s *Server) answer(ctx context.Context, stream *ServerStream, request Request) {
	response := Response{ID: request.ID}
	if s.Handler == nil {
		response.Error = "unknown method " + request.Method
	} else {
		payload, err := s.Handler.ServeRequest(ctx, stream, request)
		if err != nil {
			response.Error = err.Error()
		} else {
			response.Payload = payload
		}
	}

	if err := stream.writer.write(Frame{Type: FrameResponse, Response: &response}); err != nil {
		if !netutil.IsExpectedCloseError(err) {
			s.logger().Warn("writing response failed",
				"method", request.Method,
				"request_id", request.ID,
				"error", err,
			)
		}
	}
}

// Serve accepts connections on listener until ctx ends, serving each
// in its own goroutine. It waits for every connection to finish before
// returning.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	var connections sync.WaitGroup
	defer connections.Wait()

	s.logger().Info("provider listening", "address", listener.Addr().String())
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger().Error("accept failed", "error", err)
			continue
		}

		connections.Add(1)
		go func() {
			defer connections.Done()
			remote := conn.RemoteAddr().String()
			s.logger().Info("client connected", "remote", remote)
			if err := s.ServeConn(ctx, conn); err != nil {
				s.logger().Warn("client stream failed", "remote", remote, "error", err)
			}
			s.logger().Info("client disconnected", "remote", remote)
		}()
	}
}

var upgrader = websocket.Upgrader{
	// Clients are puppets, not browsers.
	CheckOrigin: func(*http.Request) bool { return true },
}

// ServeHTTP upgrades the request to a WebSocket and serves the
// protocol on it.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.Token != "" && !validBearer(r.Header.Get("Authorization"), s.Token) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error.
		s.logger().Warn("websocket upgrade failed", "error", err)
		return
	}

	remote := r.RemoteAddr
	s.logger().Info("client connected", "remote", remote, "user_agent", r.UserAgent())
	if err := s.ServeConn(r.Context(), newWebSocketConn(conn)); err != nil {
		s.logger().Warn("client stream failed", "remote", remote, "error", err)
	}
	s.logger().Info("client disconnected", "remote", remote)
}

func validBearer(header, token string) bool {
	presented, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(token)) == 1
}
