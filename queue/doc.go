// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package queue defines the message queue that carries sera's protocol
// and implements it on three backends.
//
// A [Provider] manages named endpoints (one inbound queue per party)
// and moves [Message] values between them. The contract is the weakest
// one every backend can honor: delivery is at least once, order is not
// guaranteed, a message may be delivered again after its visibility
// timeout if it was not deleted, and an unconsumed message may be
// discarded after the retention period. Everything stronger (duplicate
// suppression, request correlation) is built on top, in package remote.
//
// Endpoint names are passed through [Sanitize] by every backend, so
// callers use logical names (a host name, a base64 public key) and get
// a backend-safe, namespaced queue name.
//
// Backends:
//
//   - [MemoryProvider]: in-process, for tests and local execution.
//   - [SQLiteProvider]: a SQLite file shared by processes on one host.
//   - [RedisProvider]: a Redis server shared by hosts on a network.
//
// [CachedProvider] wraps any of them with a TTL cache of resolved
// endpoint URLs. [Open] builds the configured stack.
//
// Backend transport failures are returned as [*TransientError] so
// that callers can retry them with backoff; [IsTransient] tests for it.
package queue
