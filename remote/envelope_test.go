// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"bytes"
	"errors"
	"testing"

	"github.com/bureau-foundation/sera/queue"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	master, watcher := newIdentity(t), newIdentity(t)
	returnCode := 3

	tests := []struct {
		name    string
		command Command
	}{
		{"request", Command{
			Name:      "echo",
			Params:    map[string]string{"args": "hello world"},
			RequestID: "request-1",
		}},
		{"response", Command{
			Name:       "allow",
			Params:     map[string]string{"from_ip": "10.0.0.1", "delay": "60"},
			Stdout:     "Rule added\n",
			Stderr:     "warning\n",
			ReturnCode: &returnCode,
			RequestID:  "request-2",
		}},
		{"no params", Command{Name: "end"}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			envelope, err := Encode(master, "master-endpoint", watcher.PublicKey(), &test.command)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			decoded, err := Decode(watcher, envelope)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}

			if decoded.Host != "master-endpoint" {
				t.Errorf("Host = %q, want master-endpoint", decoded.Host)
			}
			if decoded.PublicKey != master.PublicKey() {
				t.Error("PublicKey is not the sender's key")
			}
			if decoded.Name != test.command.Name {
				t.Errorf("Name = %q, want %q", decoded.Name, test.command.Name)
			}
			if len(decoded.Params) != len(test.command.Params) {
				t.Errorf("Params = %v, want %v", decoded.Params, test.command.Params)
			}
			for key, value := range test.command.Params {
				if decoded.Params[key] != value {
					t.Errorf("Params[%q] = %q, want %q", key, decoded.Params[key], value)
				}
			}
			if decoded.Stdout != test.command.Stdout || decoded.Stderr != test.command.Stderr {
				t.Errorf("output = %q/%q, want %q/%q",
					decoded.Stdout, decoded.Stderr, test.command.Stdout, test.command.Stderr)
			}
			if (decoded.ReturnCode == nil) != (test.command.ReturnCode == nil) {
				t.Fatalf("ReturnCode = %v, want %v", decoded.ReturnCode, test.command.ReturnCode)
			}
			if decoded.ReturnCode != nil && *decoded.ReturnCode != *test.command.ReturnCode {
				t.Errorf("ReturnCode = %d, want %d", *decoded.ReturnCode, *test.command.ReturnCode)
			}
			if decoded.RequestID != test.command.RequestID {
				t.Errorf("RequestID = %q, want %q", decoded.RequestID, test.command.RequestID)
			}
		})
	}
}

func TestEncodeWireShape(t *testing.T) {
	master, watcher := newIdentity(t), newIdentity(t)
	envelope, err := Encode(master, "m", watcher.PublicKey(), &Command{Name: "echo"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if want := "decrypt " + master.PublicKey().String(); envelope.Body != want {
		t.Errorf("Body = %q, want %q", envelope.Body, want)
	}
	if _, ok := envelope.Attributes.Binary(queue.AttributeEncrypted); !ok {
		t.Error("no Encrypted attribute")
	}
	if _, ok := envelope.Attributes.String(queue.AttributeRequestID); ok {
		t.Error("RequestID attribute set for a command without one")
	}
}

func TestEncodeUsesFreshNonce(t *testing.T) {
	master, watcher := newIdentity(t), newIdentity(t)
	command := &Command{Name: "echo", Params: map[string]string{"args": "same"}}
	first, err := Encode(master, "m", watcher.PublicKey(), command)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	second, err := Encode(master, "m", watcher.PublicKey(), command)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	a, _ := first.Attributes.Binary(queue.AttributeEncrypted)
	b, _ := second.Attributes.Binary(queue.AttributeEncrypted)
	if bytes.Equal(a[:24], b[:24]) {
		t.Error("two encodings share a nonce")
	}
}

func TestHandshakeRoundTrip(t *testing.T) {
	master, watcher := newIdentity(t), newIdentity(t)
	envelope := EncodeHandshake("master-endpoint", master.PublicKey(), "request-9")
	if _, ok := envelope.Attributes.Binary(queue.AttributeEncrypted); ok {
		t.Error("handshake carries an Encrypted attribute")
	}

	decoded, err := Decode(watcher, envelope)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !decoded.IsHandshake() {
		t.Errorf("Name = %q, want %q", decoded.Name, HandshakeCommand)
	}
	if decoded.PublicKey != master.PublicKey() {
		t.Error("handshake key mismatch")
	}
	if decoded.Host != "master-endpoint" || decoded.RequestID != "request-9" {
		t.Errorf("Host/RequestID = %q/%q", decoded.Host, decoded.RequestID)
	}
}

func TestDecodeFailures(t *testing.T) {
	master, watcher, stranger := newIdentity(t), newIdentity(t), newIdentity(t)
	sealedForStranger, err := Encode(master, "m", stranger.PublicKey(), &Command{Name: "echo"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	encryptedBody := "decrypt " + master.PublicKey().String()

	tests := []struct {
		name     string
		envelope Envelope
		want     error
	}{
		{"unrecognized body", Envelope{Body: "echo hello"}, ErrDecode},
		{"bad handshake key", Envelope{Body: "public_key not-a-key"}, ErrDecode},
		{"bad sender key", Envelope{Body: "decrypt ???"}, ErrDecode},
		{"missing ciphertext", Envelope{Body: encryptedBody}, ErrNotEncrypted},
		{"plaintext posing as ciphertext", Envelope{
			Body:       encryptedBody,
			Attributes: queue.Attributes{queue.AttributeEncrypted: queue.BinaryAttribute([]byte("hello"))},
		}, ErrNotEncrypted},
		{"sealed for someone else", sealedForStranger, ErrDecode},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Decode(watcher, test.envelope)
			if !errors.Is(err, test.want) {
				t.Errorf("Decode error = %v, want %v", err, test.want)
			}
		})
	}
}

func TestDecodeAcceptsQuotedBodyAndTypedParams(t *testing.T) {
	master, watcher := newIdentity(t), newIdentity(t)
	plaintext := []byte(`{"name": "echo", "params": {"args": ["hello", "world"], "n": true, "none": null, "text": "x"}, "stdout": "", "stderr": "", "returncode": null}`)
	sealed, err := master.Seal(plaintext, watcher.PublicKey())
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	envelope := Envelope{
		Body: `"decrypt ` + master.PublicKey().String() + `"`,
		Attributes: queue.Attributes{
			queue.AttributeSender:    queue.StringAttribute("legacy"),
			queue.AttributeEncrypted: queue.BinaryAttribute(sealed),
		},
	}

	decoded, err := Decode(watcher, envelope)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := map[string]string{
		"args": `["hello","world"]`,
		"n":    "true",
		"none": "",
		"text": "x",
	}
	for key, value := range want {
		if decoded.Params[key] != value {
			t.Errorf("Params[%q] = %q, want %q", key, decoded.Params[key], value)
		}
	}
	if decoded.ReturnCode != nil {
		t.Errorf("ReturnCode = %d, want nil", *decoded.ReturnCode)
	}
}
