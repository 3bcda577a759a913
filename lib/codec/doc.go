// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds the one CBOR configuration used by the runtime:
// provider stream frames, envelope payloads, and session memory card
// bodies all go through it so that the same value always encodes to the
// same bytes.
//
// Encoding follows RFC 8949 §4.2 Core Deterministic Encoding. Decoding
// ignores unknown fields, so a newer provider can add fields without
// breaking older clients.
//
// Struct tags: types that only travel over the provider stream use
// `cbor` tags. Payload types that are also printed as JSON by the CLI
// use `json` tags, which fxamacker/cbor reads as a fallback. A field
// never carries both.
package codec
