// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package memory persists a puppet's session memory between runs.
//
// A [Card] is a small key/value map. The puppet loads it once when a
// session starts and saves it once when the session stops; nothing is
// written mid-session. On disk the card is an opaque versioned blob:
//
//	magic "PPMC" | version (1 byte) | compression tag (1 byte) |
//	uncompressed length (uint32, big endian) | BLAKE3 digest (32 bytes) |
//	body
//
// The body is the CBOR encoding of the key/value map, compressed with
// zstd or LZ4 when that makes it smaller. The digest covers the
// uncompressed body, so corruption is caught whichever compression was
// used.
//
// Where the blob lives is a [Backend]: [FileBackend] for a local file
// guarded by an advisory lock, [NopBackend] to keep nothing, and
// [SealedBackend] to age-encrypt whatever another backend stores.
// [Memory] ties a Card to a Backend.
package memory
