// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package throttle collapses bursts of signals to their first
// occurrence.
//
// A [Queue] delivers the first [Queue.Push] into an idle queue to every
// subscriber immediately, on the pushing goroutine. Pushes that arrive
// before the window has elapsed since that delivery are dropped. They do
// not extend the window. Once the window passes, the next push delivers
// again. This is leading-edge debouncing: the puppet uses it so that a
// storm of reset signals produces one restart, not one per signal.
package throttle
