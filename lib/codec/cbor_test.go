// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"strings"
	"testing"
)

type sampleFrame struct {
	Kind    string `cbor:"kind"`
	Payload []byte `cbor:"payload,omitempty"`
}

type samplePayload struct {
	ID     string   `json:"id"`
	Topic  string   `json:"topic,omitempty"`
	Member []string `json:"member_ids,omitempty"`
}

func TestMarshalDeterministic(t *testing.T) {
	value := map[string]any{"zeta": 1, "alpha": "a", "mid": []string{"x"}}

	first, err := Marshal(value)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for range 10 {
		again, err := Marshal(value)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("encoding not deterministic: %x vs %x", first, again)
		}
	}
}

func TestJSONTagFallback(t *testing.T) {
	data, err := Marshal(samplePayload{ID: "room-1", Member: []string{"a", "b"}})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var generic map[string]any
	if err := Unmarshal(data, &generic); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if generic["id"] != "room-1" {
		t.Errorf("id = %v, want room-1", generic["id"])
	}
	if _, ok := generic["topic"]; ok {
		t.Errorf("omitempty topic was encoded: %v", generic)
	}
	if _, ok := generic["member_ids"]; !ok {
		t.Errorf("member_ids missing: %v", generic)
	}
}

func TestUnknownFieldsIgnored(t *testing.T) {
	data, err := Marshal(map[string]any{"kind": "message", "added_later": true})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var frame sampleFrame
	if err := Unmarshal(data, &frame); err != nil {
		t.Fatalf("Unmarshal with unknown field: %v", err)
	}
	if frame.Kind != "message" {
		t.Errorf("Kind = %q, want message", frame.Kind)
	}
}

func TestRawMessageDefersDecoding(t *testing.T) {
	inner, err := Marshal(samplePayload{ID: "c-1"})
	if err != nil {
		t.Fatalf("Marshal inner: %v", err)
	}
	type wrapper struct {
		Raw RawMessage `cbor:"raw"`
	}
	data, err := Marshal(wrapper{Raw: inner})
	if err != nil {
		t.Fatalf("Marshal wrapper: %v", err)
	}

	var decoded wrapper
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal wrapper: %v", err)
	}
	if !bytes.Equal(decoded.Raw, inner) {
		t.Fatalf("raw = %x, want %x", decoded.Raw, inner)
	}
}

func TestStreamRoundtrip(t *testing.T) {
	var buffer bytes.Buffer
	encoder := NewEncoder(&buffer)
	frames := []sampleFrame{{Kind: "heartbeat"}, {Kind: "message", Payload: []byte{1, 2}}}
	for _, frame := range frames {
		if err := encoder.Encode(frame); err != nil {
			t.Fatalf("Encode: %v", err)
		}
	}

	decoder := NewDecoder(&buffer)
	for index, want := range frames {
		var got sampleFrame
		if err := decoder.Decode(&got); err != nil {
			t.Fatalf("Decode %d: %v", index, err)
		}
		if got.Kind != want.Kind || !bytes.Equal(got.Payload, want.Payload) {
			t.Errorf("frame %d = %+v, want %+v", index, got, want)
		}
	}
}

func TestDiagnose(t *testing.T) {
	data, err := Marshal(sampleFrame{Kind: "scan"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	text, err := Diagnose(data)
	if err != nil {
		t.Fatalf("Diagnose: %v", err)
	}
	if !strings.Contains(text, `"scan"`) {
		t.Errorf("Diagnose = %q, want it to mention \"scan\"", text)
	}
}
