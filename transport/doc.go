// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport carries the puppet's conversation with its provider.
//
// The puppet needs one thing from a connection: a duplex [Stream] on
// which it can send requests and await their responses while reading a
// sequence of inbound event [Envelope] values. A [Dialer] opens such a
// stream. Everything on the wire is a [Frame]: a CBOR value tagged as
// an event, a request, or a response. CBOR is self-delimiting, so frames
// are written back to back with no length prefix, the same way the
// service sockets elsewhere in the codebase stream CBOR.
//
// Three carriers implement the same framing:
//
//   - [TCPDialer] for a raw TCP connection (tcp://host:port)
//   - [WebSocketDialer] for gorilla/websocket binary messages
//     (ws:// or wss://), with a bearer token on the upgrade request
//   - [Pipe] for an in-memory pair, used in tests
//
// The provider side is [Server]: it answers requests through a
// [Handler] and pushes events with [ServerStream.Push]. Tests and the
// puppet-mock command both use it.
package transport
