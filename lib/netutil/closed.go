// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"errors"
	"io"
	"net"
	"slices"
	"syscall"

	"github.com/gorilla/websocket"
)

// IsExpectedCloseError reports whether err is how a provider stream
// normally ends on one of the transport carriers. TCP and in-memory
// pipes end in EOF, or in a closed pipe once the local side has gone.
// A provider process that exits leaves a reset or a broken pipe, and a
// WebSocket provider sends a close frame. Callers treat these as a
// session ending rather than a fault.
func IsExpectedCloseError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	if IsCloseFrame(err) {
		return true
	}
	var errno syscall.Errno
	return errors.As(err, &errno) && (errno == syscall.EPIPE || errno == syscall.ECONNRESET)
}

// hangupCodes are the WebSocket close codes a provider sends when it
// ends a session on purpose.
var hangupCodes = []int{websocket.CloseNormalClosure, websocket.CloseGoingAway}

// IsCloseFrame reports whether err, anywhere in its chain, is a
// WebSocket close frame with a normal or going-away code.
func IsCloseFrame(err error) bool {
	var closeErr *websocket.CloseError
	return errors.As(err, &closeErr) && slices.Contains(hangupCodes, closeErr.Code)
}
