// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/nacl/box"

	"github.com/bureau-foundation/sera/lib/secret"
)

// KeySize is the length in bytes of public and private keys.
const KeySize = 32

// PublicKey is a Curve25519 public key.
type PublicKey [KeySize]byte

// ParsePublicKey decodes a URL-safe base64 public key. Both padded and
// unpadded input are accepted, since endpoint names carry the key with
// its padding stripped.
func ParsePublicKey(encoded string) (PublicKey, error) {
	var key PublicKey
	encoded = strings.TrimSpace(encoded)
	decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(encoded, "="))
	if err != nil {
		return key, fmt.Errorf("parsing public key: %w", err)
	}
	if len(decoded) != KeySize {
		return key, fmt.Errorf("parsing public key: got %d bytes, want %d", len(decoded), KeySize)
	}
	copy(key[:], decoded)
	return key, nil
}

// String returns the padded URL-safe base64 form of the key.
func (k PublicKey) String() string {
	return base64.URLEncoding.EncodeToString(k[:])
}

// EndpointName returns the key in the form used to name a master's own
// endpoint: the base64 text with padding removed.
func (k PublicKey) EndpointName() string {
	return strings.TrimRight(k.String(), "=")
}

// IsZero reports whether k is the zero key.
func (k PublicKey) IsZero() bool {
	return k == PublicKey{}
}

// Identity is a local keypair. The caller must Close it when done.
type Identity struct {
	public  PublicKey
	private *secret.Buffer
}

// Generate creates a new random keypair.
func Generate() (*Identity, error) {
	publicKey, privateKey, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating keypair: %w", err)
	}
	buffer, err := secret.NewFromBytes(privateKey[:])
	if err != nil {
		return nil, fmt.Errorf("protecting private key: %w", err)
	}
	return &Identity{public: *publicKey, private: buffer}, nil
}

// Load builds an Identity from base64 key strings as stored in the key
// file. The public key must be the one derived from the private key.
func Load(publicKey, privateKey string) (*Identity, error) {
	public, err := ParsePublicKey(publicKey)
	if err != nil {
		return nil, err
	}
	buffer, err := secret.NewFromBase64(strings.TrimSpace(privateKey))
	if err != nil {
		return nil, fmt.Errorf("loading private key: %w", err)
	}
	if buffer.Len() != KeySize {
		buffer.Close()
		return nil, fmt.Errorf("loading private key: got %d bytes, want %d", buffer.Len(), KeySize)
	}

	derived, err := curve25519.X25519(buffer.Bytes(), curve25519.Basepoint)
	if err != nil {
		buffer.Close()
		return nil, fmt.Errorf("deriving public key: %w", err)
	}
	if !bytes.Equal(derived, public[:]) {
		buffer.Close()
		return nil, fmt.Errorf("public key %s does not match private key", Fingerprint(public))
	}
	return &Identity{public: public, private: buffer}, nil
}

// PublicKey returns the identity's public key.
func (i *Identity) PublicKey() PublicKey {
	return i.public
}

// ExportPrivateKey returns the padded URL-safe base64 private key. The
// only caller is keygen, which writes it to the key file.
func (i *Identity) ExportPrivateKey() string {
	return base64.URLEncoding.EncodeToString(i.private.Bytes())
}

// Close releases the private key.
func (i *Identity) Close() error {
	if i.private == nil {
		return nil
	}
	return i.private.Close()
}

// NonceSize is the crypto_box nonce length prepended to every sealed
// message.
const NonceSize = 24

// ErrMessageTooShort is returned by Open when the input cannot even
// hold a nonce and authenticator. In practice this means the message
// was never encrypted.
var ErrMessageTooShort = errors.New("identity: ciphertext shorter than nonce and authenticator")

// ErrDecrypt is returned by Open when authentication fails: the wrong
// key pair, or corrupted ciphertext.
var ErrDecrypt = errors.New("identity: decryption failed")

// Seal encrypts plaintext for recipient under a fresh random nonce and
// returns nonce || ciphertext.
func (i *Identity) Seal(plaintext []byte, recipient PublicKey) ([]byte, error) {
	var nonce [NonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}

	var privateKey [KeySize]byte
	copy(privateKey[:], i.private.Bytes())
	defer secret.Zero(privateKey[:])

	peer := [KeySize]byte(recipient)
	return box.Seal(nonce[:], plaintext, &nonce, &peer, &privateKey), nil
}

// Open authenticates and decrypts a nonce || ciphertext message sent by
// sender.
func (i *Identity) Open(sealed []byte, sender PublicKey) ([]byte, error) {
	if len(sealed) < NonceSize+box.Overhead {
		return nil, ErrMessageTooShort
	}
	var nonce [NonceSize]byte
	copy(nonce[:], sealed[:NonceSize])

	var privateKey [KeySize]byte
	copy(privateKey[:], i.private.Bytes())
	defer secret.Zero(privateKey[:])

	peer := [KeySize]byte(sender)
	plaintext, ok := box.Open(nil, sealed[NonceSize:], &nonce, &peer, &privateKey)
	if !ok {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}
