// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sealed encrypts files at rest under a passphrase, for the
// encrypt and decrypt commands.
//
// It wraps filippo.io/age with a scrypt recipient: the passphrase is
// stretched by scrypt and the file body sealed with ChaCha20-Poly1305
// in age's chunked STREAM construction. Encrypted files carry the
// [Extension] suffix and sit next to their plaintext; decrypting
// writes the plaintext back under the original name, replacing any
// file already there.
//
//	sealer, err := sealed.New(passphrase)
//	written, err := sealer.EncryptFile("/srv/report.csv") // report.csv.age
//	restored, err := sealer.DecryptFile(written)          // report.csv
//
// A wrong passphrase surfaces as [ErrWrongPassphrase].
package sealed
