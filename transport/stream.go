// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/bureau-foundation/puppet/lib/codec"
	"github.com/bureau-foundation/puppet/lib/netutil"
)

// frameWriter serializes frame writes on a shared connection. CBOR
// encoding issues exactly one Write per frame, which message-oriented
// carriers rely on.
type frameWriter struct {
	mu      sync.Mutex
	encoder *codec.Encoder
}

func newFrameWriter(w io.Writer) *frameWriter {
	return &frameWriter{encoder: codec.NewEncoder(w)}
}

func (w *frameWriter) write(frame Frame) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.encoder.Encode(frame); err != nil {
		return fmt.Errorf("transport: writing %s frame: %w", frame.Type, err)
	}
	return nil
}

// ConnStream is the client side of a frame stream over any
// byte-stream carrier. A single reader goroutine routes responses to
// waiting Send calls and hands events to Receive one at a time, so the
// provider is read no faster than events are consumed.
type ConnStream struct {
	conn   io.ReadWriteCloser
	writer *frameWriter
	logger *slog.Logger

	mu      sync.Mutex
	pending map[string]chan Response
	err     error

	events    chan Envelope
	closed    chan struct{}
	closeOnce sync.Once
	readDone  chan struct{}
}

var _ Stream = (*ConnStream)(nil)

// NewConnStream starts reading frames from conn. The stream owns conn
// and closes it on Close. A nil logger uses slog.Default.
func NewConnStream(conn io.ReadWriteCloser, logger *slog.Logger) *ConnStream {
	if logger == nil {
		logger = slog.Default()
	}
	stream := &ConnStream{
		conn:     conn,
		writer:   newFrameWriter(conn),
		logger:   logger,
		pending:  make(map[string]chan Response),
		events:   make(chan Envelope),
		closed:   make(chan struct{}),
		readDone: make(chan struct{}),
	}
	go stream.readLoop()
	return stream
}

// Send writes request and waits for its response.
func (s *ConnStream) Send(ctx context.Context, request Request) (Response, error) {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	reply := make(chan Response, 1)

	s.mu.Lock()
	if s.err != nil {
		err := s.err
		s.mu.Unlock()
		return Response{}, err
	}
	if _, exists := s.pending[request.ID]; exists {
		s.mu.Unlock()
		return Response{}, fmt.Errorf("transport: request id %s already in flight", request.ID)
	}
	s.pending[request.ID] = reply
	s.mu.Unlock()
	defer s.forget(request.ID)

	if err := s.writer.write(Frame{Type: FrameRequest, Request: &request}); err != nil {
		if failure := s.failure(); failure != nil {
			return Response{}, failure
		}
		return Response{}, err
	}

	select {
	case response := <-reply:
		return response, nil
	case <-s.readDone:
		// The read loop may have delivered the response just before it
		// stopped.
		select {
		case response := <-reply:
			return response, nil
		default:
		}
		return Response{}, s.failure()
	case <-ctx.Done():
		return Response{}, fmt.Errorf("transport: %s: %w", request.Method, ctx.Err())
	}
}

// Receive returns the next event.
func (s *ConnStream) Receive(ctx context.Context) (Envelope, error) {
	select {
	case envelope := <-s.events:
		return envelope, nil
	case <-s.readDone:
		return Envelope{}, s.failure()
	case <-ctx.Done():
		return Envelope{}, ctx.Err()
	}
}

// Close closes the carrier and waits for the read loop to exit.
func (s *ConnStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		if s.err == nil {
			s.err = ErrClosed
		}
		s.mu.Unlock()
		close(s.closed)
		err = s.conn.Close()
	})
	<-s.readDone
	if netutil.IsExpectedCloseError(err) {
		return nil
	}
	return err
}

// Done is closed once the stream has stopped reading.
func (s *ConnStream) Done() <-chan struct{} { return s.readDone }

func (s *ConnStream) readLoop() {
	defer close(s.readDone)

	decoder := codec.NewDecoder(s.conn)
	for {
		var frame Frame
		if err := decoder.Decode(&frame); err != nil {
			var typeErr *codec.UnmarshalTypeError
			if errors.As(err, &typeErr) {
				s.logger.Warn("dropping malformed frame", "error", err)
				continue
			}
			s.fail(err)
			return
		}

		switch frame.Type {
		case FrameEvent:
			if frame.Envelope == nil {
				s.logger.Warn("event frame without envelope")
				continue
			}
			select {
			case s.events <- *frame.Envelope:
			case <-s.closed:
				return
			}
		case FrameResponse:
			if frame.Response == nil {
				s.logger.Warn("response frame without body")
				continue
			}
			s.deliver(*frame.Response)
		case FrameRequest:
			s.logger.Warn("provider sent a request frame, ignoring")
		default:
			s.logger.Debug("unknown frame type", "type", frame.Type)
		}
	}
}

func (s *ConnStream) deliver(response Response) {
	s.mu.Lock()
	reply, ok := s.pending[response.ID]
	delete(s.pending, response.ID)
	s.mu.Unlock()

	if !ok {
		s.logger.Debug("response for unknown request", "request_id", response.ID)
		return
	}
	reply <- response
}

func (s *ConnStream) forget(id string) {
	s.mu.Lock()
	delete(s.pending, id)
	s.mu.Unlock()
}

func (s *ConnStream) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return
	}
	if netutil.IsExpectedCloseError(err) {
		s.err = fmt.Errorf("transport: provider closed the stream: %w", err)
		return
	}
	s.err = fmt.Errorf("transport: reading frame: %w", err)
}

func (s *ConnStream) failure() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		return ErrClosed
	}
	return s.err
}
