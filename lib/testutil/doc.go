// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds helpers shared by the runtime's tests.
//
// [RequireReceive], [RequireSend] and [RequireClosed] wrap a channel
// operation in a wall-clock safety timeout so a broken test fails
// instead of hanging. They are the only place tests touch real time;
// everything else runs on the fake clock from lib/clock.
//
// [UniqueID] produces distinct ids for messages, rooms and contacts in
// tests that share a provider fixture.
package testutil
