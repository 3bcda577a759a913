// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"
)

// Dialer opens streams to the provider. Each Dial returns a new,
// independent stream; the puppet dials again after every reset.
type Dialer interface {
	Dial(ctx context.Context) (Stream, error)
}

// Stream is one live provider session.
type Stream interface {
	// Send delivers request and waits for the matching response. A
	// response carrying an error string is still a successful Send:
	// the returned error is reserved for transport failure.
	Send(ctx context.Context, request Request) (Response, error)

	// Receive returns the next inbound event. After the stream fails or
	// is closed it returns the terminating error (ErrClosed after
	// Close).
	Receive(ctx context.Context) (Envelope, error)

	// Close tears the stream down. In-flight Send and Receive calls
	// return. Safe to call more than once.
	Close() error
}

// ErrClosed is returned by Stream operations after Close.
var ErrClosed = errors.New("transport: stream closed")

// Envelope is one inbound event: a discriminant and an opaque payload.
type Envelope struct {
	Kind    string `cbor:"kind"`
	Payload []byte `cbor:"payload,omitempty"`
}

// Request is an outbound call. ID is filled by the stream when empty.
type Request struct {
	ID      string `cbor:"id"`
	Method  string `cbor:"method"`
	Payload []byte `cbor:"payload,omitempty"`
}

// Response answers the Request with the same ID. Error is non-empty
// when the provider refused or failed the call.
type Response struct {
	ID      string `cbor:"id"`
	Payload []byte `cbor:"payload,omitempty"`
	Error   string `cbor:"error,omitempty"`
}

// FrameType discriminates Frame.
type FrameType string

const (
	FrameEvent    FrameType = "event"
	FrameRequest  FrameType = "request"
	FrameResponse FrameType = "response"
)

// Frame is the wire unit. Exactly one of the pointer fields is set,
// matching Type.
type Frame struct {
	Type     FrameType `cbor:"type"`
	Envelope *Envelope `cbor:"envelope,omitempty"`
	Request  *Request  `cbor:"request,omitempty"`
	Response *Response `cbor:"response,omitempty"`
}

// DialerOptions are shared by the endpoint-based constructors.
type DialerOptions struct {
	// Token is sent as a bearer token by transports that have headers.
	Token string

	// Timeout bounds connection establishment. Zero leaves only the
	// context deadline.
	Timeout time.Duration
}

// NewDialer picks a dialer from an endpoint URL: ws:// and wss://
// select WebSocket, tcp://host:port selects raw TCP.
func NewDialer(endpoint string, options DialerOptions) (Dialer, error) {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(parsed.Scheme) {
	case "ws", "wss":
		return &WebSocketDialer{
			URL:              endpoint,
			Token:            options.Token,
			HandshakeTimeout: options.Timeout,
		}, nil
	case "tcp":
		if parsed.Host == "" {
			return nil, errors.New("transport: tcp endpoint needs host:port")
		}
		return &TCPDialer{Address: parsed.Host, Timeout: options.Timeout}, nil
	default:
		return nil, errors.New("transport: unsupported endpoint scheme " + parsed.Scheme)
	}
}
