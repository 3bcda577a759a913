// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"testing"

	"github.com/gorilla/websocket"
)

func TestIsExpectedCloseError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"eof", io.EOF, true},
		{"wrapped eof", fmt.Errorf("reading frame: %w", io.EOF), true},
		{"net closed", net.ErrClosed, true},
		{"closed pipe", io.ErrClosedPipe, true},
		{"epipe", syscall.EPIPE, true},
		{"reset", &net.OpError{Op: "read", Err: syscall.ECONNRESET}, true},
		{"refused", syscall.ECONNREFUSED, false},
		{"websocket normal close", &websocket.CloseError{Code: websocket.CloseNormalClosure}, true},
		{"wrapped going away", fmt.Errorf("reading frame: %w", &websocket.CloseError{Code: websocket.CloseGoingAway}), true},
		{"websocket policy violation", &websocket.CloseError{Code: websocket.ClosePolicyViolation}, false},
		{"unexpected eof", io.ErrUnexpectedEOF, false},
		{"other", errors.New("boom"), false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := IsExpectedCloseError(test.err); got != test.want {
				t.Errorf("IsExpectedCloseError(%v) = %v, want %v", test.err, got, test.want)
			}
		})
	}
}
