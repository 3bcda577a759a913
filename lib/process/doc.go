// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds the entrypoint helpers shared by the puppet
// binaries: reporting a fatal error from main() before or after the
// structured logger exists, and mapping errors that carry an exit code
// to that code.
package process
