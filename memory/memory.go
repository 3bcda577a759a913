// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Memory is a Card bound to the Backend it is loaded from and saved to.
type Memory struct {
	backend     Backend
	compression Compression
	logger      *slog.Logger

	mu   sync.Mutex
	card *Card
}

// New returns a Memory holding an empty card. A nil backend keeps
// nothing; a nil logger uses slog.Default.
func New(backend Backend, compression Compression, logger *slog.Logger) *Memory {
	if backend == nil {
		backend = NopBackend{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Memory{
		backend:     backend,
		compression: compression,
		logger:      logger,
		card:        NewCard(),
	}
}

// Card returns the current card.
func (m *Memory) Card() *Card {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.card
}

// Load replaces the card with the backend's copy. A backend with
// nothing saved yields an empty card.
func (m *Memory) Load(ctx context.Context) error {
	blob, err := m.backend.Load(ctx)
	if errors.Is(err, ErrNotFound) {
		m.logger.Debug("no saved session memory, starting empty")
		m.replace(NewCard())
		return nil
	}
	if err != nil {
		return fmt.Errorf("memory: load: %w", err)
	}

	card, err := DecodeCard(blob)
	if err != nil {
		return fmt.Errorf("memory: load: %w", err)
	}
	m.logger.Debug("session memory loaded", "keys", card.Len(), "bytes", len(blob))
	m.replace(card)
	return nil
}

// Save encodes the card and writes it to the backend.
func (m *Memory) Save(ctx context.Context) error {
	blob, err := m.Card().Encode(m.compression)
	if err != nil {
		return fmt.Errorf("memory: save: %w", err)
	}
	if err := m.backend.Save(ctx, blob); err != nil {
		return fmt.Errorf("memory: save: %w", err)
	}
	m.logger.Debug("session memory saved", "bytes", len(blob))
	return nil
}

// Destroy empties the card and removes the backend's copy.
func (m *Memory) Destroy(ctx context.Context) error {
	m.replace(NewCard())
	if err := m.backend.Destroy(ctx); err != nil {
		return fmt.Errorf("memory: destroy: %w", err)
	}
	return nil
}

func (m *Memory) replace(card *Card) {
	m.mu.Lock()
	m.card = card
	m.mu.Unlock()
}
