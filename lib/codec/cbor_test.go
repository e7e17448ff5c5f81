// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"testing"
)

type storedAttribute struct {
	String string `cbor:"s,omitempty"`
	Binary []byte `cbor:"b,omitempty"`
}

func TestMarshalDeterministicMapOrder(t *testing.T) {
	// Go randomizes map iteration; deterministic encoding must not.
	attributes := map[string]storedAttribute{
		"Sender":    {String: "host1"},
		"Encrypted": {Binary: []byte{0, 1, 2, 255}},
		"RequestID": {String: "2b1f"},
	}

	first, err := Marshal(attributes)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for range 20 {
		again, err := Marshal(attributes)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("encoding differs between runs: %x != %x", first, again)
		}
	}
}

func TestBinaryAttributesSurviveStorage(t *testing.T) {
	ciphertext := make([]byte, 256)
	for i := range ciphertext {
		ciphertext[i] = byte(i)
	}
	original := map[string]storedAttribute{"Encrypted": {Binary: ciphertext}}

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded map[string]storedAttribute
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !bytes.Equal(decoded["Encrypted"].Binary, ciphertext) {
		t.Error("binary attribute changed across CBOR storage")
	}
	if decoded["Encrypted"].String != "" {
		t.Errorf("String = %q, want empty", decoded["Encrypted"].String)
	}
}

func TestUnmarshalAnyUsesStringKeys(t *testing.T) {
	data, err := Marshal(map[string]any{"nested": map[string]any{"k": "v"}})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded any
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	top, ok := decoded.(map[string]any)
	if !ok {
		t.Fatalf("decoded type = %T, want map[string]any", decoded)
	}
	if _, ok := top["nested"].(map[string]any); !ok {
		t.Errorf("nested type = %T, want map[string]any", top["nested"])
	}
}

func TestUnmarshalRejectsGarbage(t *testing.T) {
	var decoded map[string]storedAttribute
	if err := Unmarshal([]byte{0xff, 0x00}, &decoded); err == nil {
		t.Fatal("Unmarshal accepted invalid CBOR")
	}
}
