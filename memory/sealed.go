// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"filippo.io/age"

	"github.com/bureau-foundation/puppet/lib/secret"
)

// SealedBackend age-encrypts blobs before handing them to an inner
// backend. Encryption needs only the recipient; decryption needs the
// identity, which stays in protected memory and is borrowed, not owned.
type SealedBackend struct {
	inner     Backend
	recipient *age.X25519Recipient
	identity  *secret.Buffer
}

var _ Backend = (*SealedBackend)(nil)

// NewSealedBackend wraps inner. recipient is an age1... public key.
// identity may be nil for a write-only backend, in which case Load
// fails.
func NewSealedBackend(inner Backend, recipient string, identity *secret.Buffer) (*SealedBackend, error) {
	parsed, err := age.ParseX25519Recipient(recipient)
	if err != nil {
		return nil, fmt.Errorf("memory: parsing recipient key: %w", err)
	}
	if identity != nil {
		if _, err := age.ParseX25519Identity(identity.String()); err != nil {
			return nil, fmt.Errorf("memory: parsing identity: %w", err)
		}
	}
	return &SealedBackend{inner: inner, recipient: parsed, identity: identity}, nil
}

// Load decrypts the inner blob.
func (b *SealedBackend) Load(ctx context.Context) ([]byte, error) {
	ciphertext, err := b.inner.Load(ctx)
	if err != nil {
		return nil, err
	}
	if b.identity == nil {
		return nil, fmt.Errorf("memory: sealed card has no identity to open it")
	}

	// age only takes the identity as a string; the heap copy is
	// confined to this call.
	identity, err := age.ParseX25519Identity(b.identity.String())
	if err != nil {
		return nil, fmt.Errorf("memory: parsing identity: %w", err)
	}
	reader, err := age.Decrypt(bytes.NewReader(ciphertext), identity)
	if err != nil {
		return nil, fmt.Errorf("memory: decrypting card: %w", err)
	}
	plaintext, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("memory: reading decrypted card: %w", err)
	}
	return plaintext, nil
}

// Save encrypts blob and stores it in the inner backend.
func (b *SealedBackend) Save(ctx context.Context, blob []byte) error {
	var ciphertext bytes.Buffer
	writer, err := age.Encrypt(&ciphertext, b.recipient)
	if err != nil {
		return fmt.Errorf("memory: creating age encryptor: %w", err)
	}
	if _, err := writer.Write(blob); err != nil {
		return fmt.Errorf("memory: encrypting card: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("memory: finalizing card encryption: %w", err)
	}
	return b.inner.Save(ctx, ciphertext.Bytes())
}

// Destroy removes the inner blob.
func (b *SealedBackend) Destroy(ctx context.Context) error {
	return b.inner.Destroy(ctx)
}
