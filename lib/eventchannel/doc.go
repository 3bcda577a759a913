// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package eventchannel is a per-owner table of named event
// subscriptions. It is the publish/subscribe surface of the puppet
// session and of the smaller primitives (state switch, watchdog) that
// report their transitions as events.
//
// Listeners are plain functions taking variadic arguments. A listener
// is either persistent ([Channel.On]) or one-shot ([Channel.Once]).
// [Channel.Emit] invokes the listeners registered for a name in
// subscription order and reports whether any were registered.
//
// Emission works on a snapshot of the listener list, so listeners may
// subscribe or unsubscribe (themselves included) while an emission is
// in progress, and other goroutines may do the same concurrently.
// One-shot listeners are detached while the lock is held, before any
// listener runs: two concurrent emitters can never both invoke the same
// one-shot registration.
//
// Listener identity for [Channel.Unsubscribe] is the function value's
// code pointer, the same notion of "the same function" that reflect
// reports. Two closures created from one function literal therefore
// count as the same listener. To remove one exact registration
// regardless of identity, keep the [Handle] returned at subscription
// time and call [Handle.Cancel].
package eventchannel
