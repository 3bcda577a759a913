// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil tells a provider hanging up apart from a broken
// carrier, for the transports and the puppet's Stop.
package netutil
