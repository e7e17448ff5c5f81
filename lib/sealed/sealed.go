// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sealed

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"filippo.io/age"

	"github.com/bureau-foundation/sera/lib/envfile"
)

// Extension is appended to the name of every encrypted file.
const Extension = ".age"

// ErrWrongPassphrase is returned when a file cannot be opened with the
// given passphrase.
var ErrWrongPassphrase = errors.New("sealed: wrong passphrase")

// Sealer encrypts and decrypts under one passphrase.
type Sealer struct {
	passphrase string
	workFactor int
}

// New returns a Sealer for passphrase, which must not be empty.
func New(passphrase string) (*Sealer, error) {
	if passphrase == "" {
		return nil, errors.New("sealed: empty passphrase")
	}
	return &Sealer{passphrase: passphrase}, nil
}

// WithWorkFactor sets the scrypt log2(N) used when encrypting. Zero
// keeps age's default. Low values are only suitable for tests.
func (s *Sealer) WithWorkFactor(logN int) *Sealer {
	s.workFactor = logN
	return s
}

// Encrypt reads plaintext from src and writes the age file to dst.
func (s *Sealer) Encrypt(dst io.Writer, src io.Reader) error {
	recipient, err := age.NewScryptRecipient(s.passphrase)
	if err != nil {
		return fmt.Errorf("creating scrypt recipient: %w", err)
	}
	if s.workFactor > 0 {
		recipient.SetWorkFactor(s.workFactor)
	}

	writer, err := age.Encrypt(dst, recipient)
	if err != nil {
		return fmt.Errorf("creating age encryptor: %w", err)
	}
	if _, err := io.Copy(writer, src); err != nil {
		return fmt.Errorf("writing plaintext to age encryptor: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("finalizing age encryption: %w", err)
	}
	return nil
}

// Decrypt reads an age file from src and writes the plaintext to dst.
func (s *Sealer) Decrypt(dst io.Writer, src io.Reader) error {
	identity, err := age.NewScryptIdentity(s.passphrase)
	if err != nil {
		return fmt.Errorf("creating scrypt identity: %w", err)
	}

	reader, err := age.Decrypt(src, identity)
	if err != nil {
		var noMatch *age.NoIdentityMatchError
		if errors.As(err, &noMatch) {
			return ErrWrongPassphrase
		}
		return fmt.Errorf("decrypting: %w", err)
	}
	if _, err := io.Copy(dst, reader); err != nil {
		return fmt.Errorf("reading decrypted plaintext: %w", err)
	}
	return nil
}

// EncryptFile writes path+Extension and returns its name. The
// plaintext file is left in place.
func (s *Sealer) EncryptFile(path string) (string, error) {
	plaintext, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var ciphertext bytes.Buffer
	if err := s.Encrypt(&ciphertext, bytes.NewReader(plaintext)); err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	output := path + Extension
	if err := envfile.WriteAtomic(output, ciphertext.Bytes(), 0600); err != nil {
		return "", err
	}
	return output, nil
}

// DecryptFile decrypts a file named with Extension and writes the
// plaintext under the name without it, returning that name.
func (s *Sealer) DecryptFile(path string) (string, error) {
	if !strings.HasSuffix(path, Extension) || len(path) == len(Extension) {
		return "", fmt.Errorf("sealed: %s does not end in %s", path, Extension)
	}
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	var plaintext bytes.Buffer
	if err := s.Decrypt(&plaintext, file); err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	output := strings.TrimSuffix(path, Extension)
	if err := envfile.WriteAtomic(output, plaintext.Bytes(), 0600); err != nil {
		return "", err
	}
	return output, nil
}
