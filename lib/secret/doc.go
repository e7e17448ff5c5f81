// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret holds private key material outside the Go heap.
//
// A [Buffer] is an anonymous mmap region locked into RAM (mlock) and
// excluded from core dumps (MADV_DONTDUMP). The garbage collector never
// sees it, so the key cannot be copied around by the runtime. Close
// zeroes, unlocks, and unmaps the region.
//
// sera keeps exactly one secret per process: the local Curve25519
// private key loaded by lib/identity. It is read from the key file,
// base64-decoded straight into a Buffer with [NewFromBase64], and
// borrowed for the duration of each box seal/open.
package secret
