// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package puppet supervises one session with a chat-automation
// provider and presents it as typed events plus read-through caches of
// contacts, messages, rooms, room members, friendships and room
// invitations.
//
// A Puppet dials the provider through a [transport.Dialer] on Start
// and runs two goroutines per session: the read loop, which decodes
// envelopes into events and applies their side effects (identity,
// cache invalidation), and the dispatcher, which emits those events in
// order on the puppet's [eventchannel.Channel]. The read loop never
// waits on a listener.
//
// Failures are folded into reset signals. A read-loop error, a reset
// frame from the provider, and an expired watchdog all emit "reset";
// the internal reset handler pushes each one into a leading-edge
// [throttle.Queue], and the first signal of every throttle window
// restarts the session (Stop then Start, under one hold of the
// lifecycle lock) on a worker goroutine. Only one restart runs at a
// time, and a restart that loses a race with Stop leaves the puppet
// stopped. Restart failures surface as "error" events.
//
// Payload accessors consult the cache and, on a miss, call the
// [Provider] to fetch and parse the raw payload. Dirty methods only
// remove; the next access fetches again. Search methods hydrate in
// fixed-size batches and drop ids that fail to hydrate.
//
// Listeners run on the dispatcher goroutine, with two exceptions: the
// events emitted by SetSelfID, ClearSelfID and Stop run on the caller's
// goroutine, and a watchdog reset runs on the timer's. Listeners must
// not call Start, Stop, Reset or Close synchronously. Work that
// outlives a listener goes through [Puppet.Go], which Stop waits for.
// A panicking listener becomes an "error" event; the listeners after
// it still run.
package puppet
