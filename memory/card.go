// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/puppet/lib/codec"
)

// Card format constants.
const (
	cardVersion = 1
	digestSize  = 32
	headerSize  = 4 + 1 + 1 + 4 + digestSize
	maxCardBody = 64 << 20
)

var cardMagic = [4]byte{'P', 'P', 'M', 'C'}

// cardDomainKey separates card digests from any other BLAKE3 use. The
// bytes are the ASCII name, zero padded.
var cardDomainKey = [32]byte{
	'p', 'u', 'p', 'p', 'e', 't', '.', 'm', 'e', 'm', 'o', 'r', 'y', '.', 'c', 'a',
	'r', 'd', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// ErrCorrupt is wrapped by every decode failure caused by the blob
// itself (as opposed to an unsupported but intact version).
var ErrCorrupt = errors.New("memory: corrupt card")

// ErrUnsupportedVersion means the card was written by a newer format.
var ErrUnsupportedVersion = errors.New("memory: unsupported card version")

// Card is a goroutine-safe key/value map of CBOR-encoded values. The
// zero value is not usable; create with NewCard or DecodeCard.
type Card struct {
	mu     sync.Mutex
	values map[string]codec.RawMessage
}

// NewCard returns an empty card.
func NewCard() *Card {
	return &Card{values: make(map[string]codec.RawMessage)}
}

// Get decodes the value stored under key into destination. It reports
// false, with destination untouched, when key is absent.
func (c *Card) Get(key string, destination any) (bool, error) {
	c.mu.Lock()
	raw, ok := c.values[key]
	c.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := codec.Unmarshal(raw, destination); err != nil {
		return true, fmt.Errorf("memory: decoding %s: %w", key, err)
	}
	return true, nil
}

// GetString returns the string stored under key, or "" when absent or
// not a string.
func (c *Card) GetString(key string) string {
	var value string
	if ok, err := c.Get(key, &value); !ok || err != nil {
		return ""
	}
	return value
}

// Set encodes value and stores it under key.
func (c *Card) Set(key string, value any) error {
	raw, err := codec.Marshal(value)
	if err != nil {
		return fmt.Errorf("memory: encoding %s: %w", key, err)
	}
	c.mu.Lock()
	c.values[key] = raw
	c.mu.Unlock()
	return nil
}

// Delete removes key and reports whether it was present.
func (c *Card) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.values[key]
	delete(c.values, key)
	return ok
}

// Has reports whether key is present.
func (c *Card) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.values[key]
	return ok
}

// Keys returns the keys in sorted order.
func (c *Card) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Sorted(maps.Keys(c.values))
}

// Len returns the number of keys.
func (c *Card) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.values)
}

// Clear removes every key.
func (c *Card) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.values)
}

// Encode serializes the card, compressing the body with compression
// when that shrinks it.
func (c *Card) Encode(compression Compression) ([]byte, error) {
	c.mu.Lock()
	body, err := codec.Marshal(c.values)
	c.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("memory: encoding card: %w", err)
	}
	if len(body) > maxCardBody {
		return nil, fmt.Errorf("memory: card body is %d bytes, limit is %d", len(body), maxCardBody)
	}

	stored, err := compress(body, compression)
	if errors.Is(err, errIncompressible) {
		stored, compression = body, CompressionNone
	} else if err != nil {
		return nil, err
	}

	digest := digestOf(body)
	blob := make([]byte, headerSize, headerSize+len(stored))
	copy(blob[0:4], cardMagic[:])
	blob[4] = cardVersion
	blob[5] = byte(compression)
	binary.BigEndian.PutUint32(blob[6:10], uint32(len(body)))
	copy(blob[10:headerSize], digest[:])
	return append(blob, stored...), nil
}

// DecodeCard parses a blob produced by Encode.
func DecodeCard(blob []byte) (*Card, error) {
	if len(blob) < headerSize {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the header", ErrCorrupt, len(blob))
	}
	if !bytes.Equal(blob[0:4], cardMagic[:]) {
		return nil, fmt.Errorf("%w: bad magic %q", ErrCorrupt, blob[0:4])
	}
	if version := blob[4]; version != cardVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}
	compression := Compression(blob[5])
	size := int(binary.BigEndian.Uint32(blob[6:10]))
	if size > maxCardBody {
		return nil, fmt.Errorf("%w: body size %d exceeds limit", ErrCorrupt, size)
	}
	var want [digestSize]byte
	copy(want[:], blob[10:headerSize])

	body, err := decompress(blob[headerSize:], compression, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if digestOf(body) != want {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}

	values := make(map[string]codec.RawMessage)
	if err := codec.Unmarshal(body, &values); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return &Card{values: values}, nil
}

func digestOf(body []byte) [digestSize]byte {
	hasher, err := blake3.NewKeyed(cardDomainKey[:])
	if err != nil {
		// Only possible with a key that is not 32 bytes.
		panic("memory: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(body)
	var digest [digestSize]byte
	copy(digest[:], hasher.Sum(nil))
	return digest
}
