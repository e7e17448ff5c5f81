// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package identity holds a party's Curve25519 keypair and performs the
// public-key authenticated encryption used by the envelope codec.
//
// Keys are 32 bytes, rendered as URL-safe base64 with padding, the same
// text form PyNaCl's URLSafeBase64Encoder produces. The public key is
// the party's only durable name in the protocol: masters name their
// endpoint after it (see [PublicKey.EndpointName]) and allow-lists are
// keyed by it.
//
// [Identity.Seal] and [Identity.Open] wrap NaCl crypto_box
// (Curve25519, XSalsa20, Poly1305). Every Seal draws a fresh 24-byte
// nonce from crypto/rand and prepends it to the ciphertext, so the wire
// form is nonce || box. The private key never leaves the process: it
// lives in a [secret.Buffer] and is copied onto the stack only for the
// duration of a single box operation.
//
// [Fingerprint] gives a short, stable, non-reversible label for a
// public key, used in log lines instead of the full key.
package identity
