// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package puppettest provides an in-memory provider for tests and for
// the puppet-mock binary. A Provider serves payloads from fixtures,
// records every outbound call, counts requests per method, and pushes
// event frames to whichever puppet is connected.
package puppettest
