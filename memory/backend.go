// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"context"
	"errors"
)

// Backend stores one opaque blob.
type Backend interface {
	// Load returns the stored blob, or an error wrapping ErrNotFound
	// when nothing has been saved.
	Load(ctx context.Context) ([]byte, error)

	// Save replaces the stored blob. Readers never observe a partial
	// write.
	Save(ctx context.Context, blob []byte) error

	// Destroy removes the stored blob. Destroying nothing succeeds.
	Destroy(ctx context.Context) error
}

// ErrNotFound means a backend holds no blob yet.
var ErrNotFound = errors.New("memory: no saved card")

// NopBackend keeps nothing. Every Load reports ErrNotFound.
type NopBackend struct{}

var _ Backend = NopBackend{}

// Load always reports ErrNotFound.
func (NopBackend) Load(context.Context) ([]byte, error) { return nil, ErrNotFound }

// Save discards blob.
func (NopBackend) Save(context.Context, []byte) error { return nil }

// Destroy does nothing.
func (NopBackend) Destroy(context.Context) error { return nil }
