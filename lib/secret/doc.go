// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret keeps key material out of the Go heap.
//
// The puppet holds two secrets for its whole lifetime: the provider
// token and the age identity that opens a sealed memory card. Both are
// kept in a [Buffer]: anonymous mmap memory that the garbage collector
// never sees, locked against swap where the kernel allows it, excluded
// from core dumps, and zeroed on Close.
//
// Constructors:
//
//   - [New] -- a zero-filled buffer of a given size
//   - [NewFromBytes] -- copies into protected memory and zeros the source
//   - [FromString] -- for values that arrive as strings (environment)
//   - [ReadKeyFile] -- the one key in an age-keygen style file, or stdin for "-"
//
// After Close any access panics. Close is idempotent.
package secret
