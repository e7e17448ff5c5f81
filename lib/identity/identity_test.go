// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func generate(t *testing.T) *Identity {
	t.Helper()
	identity, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	t.Cleanup(func() { identity.Close() })
	return identity
}

func TestPublicKeyTextForms(t *testing.T) {
	identity := generate(t)
	key := identity.PublicKey()

	text := key.String()
	if len(text) != 44 || !strings.HasSuffix(text, "=") {
		t.Fatalf("String() = %q, want 44 chars of padded base64", text)
	}
	if strings.Contains(key.EndpointName(), "=") {
		t.Errorf("EndpointName() = %q, still contains padding", key.EndpointName())
	}

	for _, form := range []string{text, key.EndpointName(), " " + text + "\n"} {
		parsed, err := ParsePublicKey(form)
		if err != nil {
			t.Fatalf("ParsePublicKey(%q): %v", form, err)
		}
		if parsed != key {
			t.Errorf("ParsePublicKey(%q) = %s, want %s", form, parsed, key)
		}
	}
}

func TestParsePublicKeyRejectsWrongLength(t *testing.T) {
	if _, err := ParsePublicKey("c2hvcnQ="); err == nil {
		t.Fatal("expected error for 5-byte key")
	}
	if _, err := ParsePublicKey("!!!"); err == nil {
		t.Fatal("expected error for invalid base64")
	}
}

func TestLoadRoundTrip(t *testing.T) {
	original := generate(t)

	loaded, err := Load(original.PublicKey().String(), original.ExportPrivateKey())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer loaded.Close()

	if loaded.PublicKey() != original.PublicKey() {
		t.Errorf("loaded public key differs from original")
	}
}

func TestLoadRejectsMismatchedKeys(t *testing.T) {
	first := generate(t)
	second := generate(t)

	if _, err := Load(first.PublicKey().String(), second.ExportPrivateKey()); err == nil {
		t.Fatal("Load accepted a public key that does not match the private key")
	}
}

func TestSealOpen(t *testing.T) {
	alice := generate(t)
	bob := generate(t)
	message := []byte(`{"name":"echo","params":{}}`)

	sealed, err := alice.Seal(message, bob.PublicKey())
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	opened, err := bob.Open(sealed, alice.PublicKey())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !bytes.Equal(opened, message) {
		t.Errorf("Open() = %q, want %q", opened, message)
	}
}

func TestSealUsesFreshNonce(t *testing.T) {
	alice := generate(t)
	bob := generate(t)

	first, err := alice.Seal([]byte("same"), bob.PublicKey())
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	second, err := alice.Seal([]byte("same"), bob.PublicKey())
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if bytes.Equal(first[:NonceSize], second[:NonceSize]) {
		t.Fatal("two Seal calls produced the same nonce")
	}
}

func TestOpenFailures(t *testing.T) {
	alice := generate(t)
	bob := generate(t)
	mallory := generate(t)

	sealed, err := alice.Seal([]byte("hello"), bob.PublicKey())
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	if _, err := mallory.Open(sealed, alice.PublicKey()); !errors.Is(err, ErrDecrypt) {
		t.Errorf("Open with wrong recipient: err = %v, want ErrDecrypt", err)
	}

	corrupted := append([]byte(nil), sealed...)
	corrupted[len(corrupted)-1] ^= 0xff
	if _, err := bob.Open(corrupted, alice.PublicKey()); !errors.Is(err, ErrDecrypt) {
		t.Errorf("Open corrupted: err = %v, want ErrDecrypt", err)
	}

	if _, err := bob.Open([]byte("plain"), alice.PublicKey()); !errors.Is(err, ErrMessageTooShort) {
		t.Errorf("Open plaintext: err = %v, want ErrMessageTooShort", err)
	}
}

func TestFingerprintStableAndDistinct(t *testing.T) {
	alice := generate(t)
	bob := generate(t)

	first := Fingerprint(alice.PublicKey())
	if len(first) != 16 {
		t.Fatalf("Fingerprint length = %d, want 16", len(first))
	}
	if Fingerprint(alice.PublicKey()) != first {
		t.Error("Fingerprint is not deterministic")
	}
	if Fingerprint(bob.PublicKey()) == first {
		t.Error("distinct keys produced the same fingerprint")
	}
}
