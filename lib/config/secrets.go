// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Secrets are the values that must never be written to a config file.
type Secrets struct {
	// Token authenticates to the provider. Sent as a bearer token.
	Token string `env:"PUPPET_TOKEN"`

	// MemoryIdentity is the age X25519 private key that opens a sealed
	// memory card.
	MemoryIdentity string `env:"PUPPET_MEMORY_IDENTITY"`
}

// LoadSecrets reads Secrets from the process environment.
func LoadSecrets() (Secrets, error) {
	var secrets Secrets
	if err := env.Parse(&secrets); err != nil {
		return Secrets{}, fmt.Errorf("parse env: %w", err)
	}
	return secrets, nil
}

// loadSecretsFrom reads Secrets from an explicit variable map.
func loadSecretsFrom(environment map[string]string) (Secrets, error) {
	var secrets Secrets
	if err := env.ParseWithOptions(&secrets, env.Options{Environment: environment}); err != nil {
		return Secrets{}, fmt.Errorf("parse env: %w", err)
	}
	return secrets, nil
}

// Check reports secrets the configuration needs but is missing.
func (s Secrets) Check(cfg *Config) error {
	if cfg.Memory.Recipient != "" && s.MemoryIdentity == "" && cfg.Memory.IdentityFile == "" {
		return fmt.Errorf("memory.recipient is set but neither PUPPET_MEMORY_IDENTITY nor memory.identity_file is")
	}
	return nil
}
