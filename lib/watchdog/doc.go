// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package watchdog is a single-timer liveness monitor.
//
// A process that expects regular signs of life (the puppet expects
// provider traffic) feeds the [Watchdog] with [Food]. Each feed restarts
// the countdown using the food's timeout, or the watchdog's default
// when the food carries none. If the countdown runs out before the next
// feed the watchdog emits "reset" with the last food and its timeout.
// That emission is the only automatic source of reset signals from
// inactivity; it never touches anything else, so the owner decides what
// a reset means.
//
// [Watchdog.Sleep] stops the countdown without firing and emits
// "sleep". Only one countdown exists at a time: arming a second one
// while the first is live is a bug in this package and panics.
package watchdog
