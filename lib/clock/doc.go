// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock is the injectable time source for every timer in the
// puppet runtime: the liveness watchdog countdown, the reset throttle
// window, and the mock provider's heartbeat ticker.
//
// Production code holds a [Clock] and receives [Real]. Tests construct
// a [FakeClock] with [Fake], which never moves on its own. Calling
// [FakeClock.Advance] fires every timer whose deadline has passed, in
// deadline order, on the calling goroutine. [FakeClock.WaitForTimers]
// blocks until a goroutine under test has registered its timer, which
// removes the need to sleep in tests.
package clock
