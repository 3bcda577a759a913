// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads puppet configuration.
//
// Configuration comes from a single file named by the PUPPET_CONFIG
// environment variable (via [Load]) or a --config flag (via
// [LoadFile]). There is no search path and no ~/.config discovery: a
// running puppet's behaviour is whatever that one file says.
//
// The file is YAML. Files ending in .json or .jsonc are accepted too;
// comments and trailing commas are stripped before decoding. Durations
// use Go syntax ("30s", "2m").
//
// A production section overrides base values when
// [Config].Environment is production. Path fields support ${VAR} and
// ${VAR:-default} expansion. Secrets never live in the file: the
// provider token and the memory decryption identity come from the
// environment through [LoadSecrets].
//
// This package depends on no other puppet packages.
package config
