// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package lru is a bounded, goroutine-safe least-recently-used cache.
//
// [Cache] holds the puppet's payload snapshots, one cache per entity
// kind. It never fetches on a miss: read-through belongs to the owner.
// Eviction and insertion for a key happen under a single lock, so a
// concurrent Get never observes a half-replaced entry.
package lru
