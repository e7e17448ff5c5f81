// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the shared CBOR configuration for data sera
// stores at rest.
//
// The wire protocol between master and watcher is JSON inside a NaCl
// box, which keeps it readable by any NaCl implementation. CBOR is used
// where sera controls both ends of the bytes: the attribute maps stored
// alongside each message in the SQLite queue backend. Binary attributes
// (the Encrypted ciphertext) round-trip as CBOR byte strings with no
// base64 detour.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2): sorted
// map keys, smallest integer encoding, no indefinite-length items.
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// Types that are only ever stored as CBOR carry `cbor` struct tags.
// Never put both `cbor` and `json` tags on one field.
package codec
