// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands assembles the sera command tree.
//
// Three commands manage local state and the queue: keygen, watch and
// endpoint. The application commands (echo, allow, disallow, add,
// revoke, export, set, end, encrypt, decrypt) run on the watcher named
// by --watcher, or on the local host when no watcher is given. A
// remote command's output is printed as received and its non-zero
// return code becomes the process exit code.
package commands
