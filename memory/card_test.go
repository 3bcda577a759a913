// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func sampleCard(t *testing.T) *Card {
	t.Helper()
	card := NewCard()
	if err := card.Set("puppet.self-id", "u-1"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := card.Set("counter", 42); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := card.Set("notes", strings.Repeat("hello puppet ", 200)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	return card
}

func TestCardGetSetDelete(t *testing.T) {
	card := NewCard()

	var missing string
	if ok, err := card.Get("absent", &missing); ok || err != nil {
		t.Fatalf("Get(absent) = %v, %v, want false, nil", ok, err)
	}

	if err := card.Set("name", "alpha"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got := card.GetString("name"); got != "alpha" {
		t.Fatalf("GetString(name) = %q, want alpha", got)
	}
	if !card.Has("name") {
		t.Fatal("Has(name) = false after Set")
	}

	var wrong int
	if ok, err := card.Get("name", &wrong); !ok || err == nil {
		t.Fatalf("Get(name) into int = %v, %v, want true, error", ok, err)
	}

	if !card.Delete("name") {
		t.Fatal("Delete(name) = false, want true")
	}
	if card.Delete("name") {
		t.Fatal("second Delete(name) = true, want false")
	}
	if card.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", card.Len())
	}
}

func TestCardKeysSorted(t *testing.T) {
	card := NewCard()
	for _, key := range []string{"c", "a", "b"} {
		card.Set(key, true)
	}
	keys := card.Keys()
	if strings.Join(keys, ",") != "a,b,c" {
		t.Fatalf("Keys() = %v, want [a b c]", keys)
	}
	card.Clear()
	if card.Len() != 0 {
		t.Fatalf("Len() after Clear = %d, want 0", card.Len())
	}
}

func TestCardEncodeDecode(t *testing.T) {
	for _, compression := range []Compression{CompressionNone, CompressionLZ4, CompressionZstd} {
		t.Run(compression.String(), func(t *testing.T) {
			blob, err := sampleCard(t).Encode(compression)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			if Compression(blob[5]) != compression {
				t.Fatalf("header compression = %s, want %s", Compression(blob[5]), compression)
			}

			card, err := DecodeCard(blob)
			if err != nil {
				t.Fatalf("DecodeCard: %v", err)
			}
			if got := card.GetString("puppet.self-id"); got != "u-1" {
				t.Errorf("self id = %q, want u-1", got)
			}
			var counter int
			if ok, err := card.Get("counter", &counter); !ok || err != nil || counter != 42 {
				t.Errorf("counter = %d (%v, %v), want 42", counter, ok, err)
			}
		})
	}
}

func TestCardEncodeDeterministic(t *testing.T) {
	first, err := sampleCard(t).Encode(CompressionZstd)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	second, err := sampleCard(t).Encode(CompressionZstd)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatal("encoding the same card twice produced different blobs")
	}
}

func TestCardEncodeIncompressibleFallsBack(t *testing.T) {
	card := NewCard()
	card.Set("k", "v")

	blob, err := card.Encode(CompressionZstd)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if Compression(blob[5]) != CompressionNone {
		t.Fatalf("tiny card stored with %s, want none", Compression(blob[5]))
	}
	if _, err := DecodeCard(blob); err != nil {
		t.Fatalf("DecodeCard: %v", err)
	}
}

func TestDecodeCardRejectsDamage(t *testing.T) {
	good, err := sampleCard(t).Encode(CompressionLZ4)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	tests := []struct {
		name   string
		mutate func([]byte) []byte
		want   error
	}{
		{"short", func(b []byte) []byte { return b[:10] }, ErrCorrupt},
		{"magic", func(b []byte) []byte { b[0] = 'X'; return b }, ErrCorrupt},
		{"version", func(b []byte) []byte { b[4] = 9; return b }, ErrUnsupportedVersion},
		{"compression", func(b []byte) []byte { b[5] = 7; return b }, ErrCorrupt},
		{"digest", func(b []byte) []byte { b[12] ^= 0xff; return b }, ErrCorrupt},
		{"truncated body", func(b []byte) []byte { return b[:len(b)-3] }, ErrCorrupt},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			blob := test.mutate(bytes.Clone(good))
			_, err := DecodeCard(blob)
			if !errors.Is(err, test.want) {
				t.Fatalf("DecodeCard() = %v, want %v", err, test.want)
			}
		})
	}
}

func TestParseCompression(t *testing.T) {
	tests := []struct {
		name string
		want Compression
	}{
		{"", CompressionNone},
		{"none", CompressionNone},
		{"lz4", CompressionLZ4},
		{"zstd", CompressionZstd},
	}
	for _, test := range tests {
		got, err := ParseCompression(test.name)
		if err != nil || got != test.want {
			t.Errorf("ParseCompression(%q) = %s, %v, want %s", test.name, got, err, test.want)
		}
	}
	if _, err := ParseCompression("gzip"); err == nil {
		t.Error("ParseCompression(gzip) = nil error, want error")
	}
}
