// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// fingerprintDomainKey separates key fingerprints from any other BLAKE3
// use. ASCII of the domain name, zero-padded to 32 bytes.
var fingerprintDomainKey = [32]byte{
	's', 'e', 'r', 'a', '.', 'i', 'd', 'e', 'n', 't', 'i', 't', 'y', '.',
	'f', 'i', 'n', 'g', 'e', 'r', 'p', 'r', 'i', 'n', 't', 0, 0, 0, 0, 0, 0, 0,
}

// Fingerprint returns a 16-character hex label for key.
func Fingerprint(key PublicKey) string {
	hasher, err := blake3.NewKeyed(fingerprintDomainKey[:])
	if err != nil {
		// NewKeyed only fails for keys that are not 32 bytes.
		panic("identity: blake3 keyed hasher: " + err.Error())
	}
	hasher.Write(key[:])
	sum := hasher.Sum(nil)
	return hex.EncodeToString(sum[:8])
}
