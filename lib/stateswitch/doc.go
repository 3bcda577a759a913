// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package stateswitch provides a two-valued gate (On/Off) whose
// transitions can be marked pending and awaited.
//
// Exactly one of On or Off is current at any time. A transition may be
// set pending first ([Switch.SetOn] with pending) and settled later
// ([Switch.SetOn] without). Goroutines that need the switch to reach a
// value call [Switch.Ready], which returns once the value is settled.
// The puppet lifecycle uses one switch: On while started, pending while
// the connection is being opened or torn down.
//
// Every transition emits "on" or "off" with the new [Status].
package stateswitch
