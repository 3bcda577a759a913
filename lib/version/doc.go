// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports the build of the running puppet binary.
//
// Three variables are injected at build time via -ldflags -X:
// [GitCommit], [BuildTime], and [Version]. When a binary was built
// without them (go install, go run, tests) the commit and dirty flag
// are recovered from the Go build info's VCS stamp where available.
//
// [Info] is the --version line, [Full] adds the toolchain and
// platform, and [UserAgent] is what transports send to the provider.
package version
