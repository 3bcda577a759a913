// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package puppet

import (
	"errors"
	"fmt"
)

// Lifecycle misuse. These are returned synchronously to the caller.
var (
	ErrAlreadyStarted  = errors.New("puppet: already started")
	ErrNotRunning      = errors.New("puppet: not running")
	ErrAlreadyLoggedIn = errors.New("puppet: already logged in, must log out first")
	ErrNotLoggedIn     = errors.New("puppet: not logged in")
)

// ErrUnsupported is matched by every *UnsupportedError.
var ErrUnsupported = errors.New("puppet: not supported by this provider")

// RemoteError is a failure reported by the provider in answer to a
// request.
type RemoteError struct {
	Method  string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("puppet: provider failed %s: %s", e.Method, e.Message)
}

// IsRemoteError reports whether err wraps a *RemoteError for method.
// An empty method matches any.
func IsRemoteError(err error, method string) bool {
	var remote *RemoteError
	if !errors.As(err, &remote) {
		return false
	}
	return method == "" || remote.Method == method
}

// UnsupportedError is returned for an operation the provider cannot
// perform, such as forwarding a location message.
type UnsupportedError struct {
	Operation   string
	MessageType MessageType
}

func (e *UnsupportedError) Error() string {
	if e.MessageType != MessageTypeUnknown || e.Operation == "forward" {
		return fmt.Sprintf("puppet: %s of %s messages is not supported by this provider", e.Operation, e.MessageType)
	}
	return fmt.Sprintf("puppet: %s is not supported by this provider", e.Operation)
}

// Is matches ErrUnsupported.
func (e *UnsupportedError) Is(target error) bool { return target == ErrUnsupported }
