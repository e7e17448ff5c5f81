// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package trust holds the two pieces of peer state the protocol core
// consults: the [Cache] of peer name to public key learned through the
// handshake, and the [AllowList] of sender keys a watcher will execute
// commands for.
//
// Both are explicit objects handed to the session and dispatch loop by
// the caller rather than process-wide globals. Both are safe for
// concurrent use and both can optionally be backed by a file: the cache
// by a dotenv file (see lib/envfile) whose keys are peer names with
// characters outside [A-Za-z0-9.] escaped as _XX, the allow-list by a
// file with one base64 public key per line. A zero path keeps the state in memory
// only, which is what tests use.
package trust
