// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package remote implements sera's command protocol: authenticated,
// encrypted command and response messages exchanged through a
// [queue.Provider].
//
// Two roles share the same primitives. A [Master] sends a named
// command to a watcher and waits for the correlated response. A
// [Watcher] runs the dispatch loop: it receives, de-duplicates,
// decrypts and authorizes each message, runs the registered [Handler],
// sends the result back, and follows chain instructions before
// returning to the queue.
//
// Every exchange rides on at-least-once delivery. Messages may be
// duplicated, delayed or reordered, so the receive path filters
// message IDs it has already seen (see [dedup.Filter]) and the master
// matches responses by request ID rather than by arrival order.
//
// Wire format. A message body is one of:
//
//	public_key <base64 public key>     plaintext handshake
//	decrypt <base64 sender public key> encrypted command or response
//
// The Sender attribute names the sender's endpoint, where responses
// are sent. The Encrypted attribute holds a NaCl box over a JSON
// object {name, params, stdout, stderr, returncode}. The RequestID
// attribute correlates every response with the request it answers.
//
// An [Observer] in [Options] is told about every received, filtered,
// dropped and handled message; the metrics package implements one.
package remote
