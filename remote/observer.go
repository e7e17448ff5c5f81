// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package remote

import "time"

// Reasons passed to Observer.Dropped.
const (
	DropUndecodable  = "undecodable"
	DropNoSender     = "no_sender"
	DropUnauthorized = "unauthorized"
	DropUnreachable  = "unreachable_sender"
)

// Observer is told about receive and dispatch events. Implementations
// must be safe for concurrent use and must not block.
type Observer interface {
	// Received is called for each message that passes the duplicate
	// filter.
	Received()

	// Duplicate is called for each redelivery the filter drops.
	Duplicate()

	// Dropped is called when a watcher discards a message without
	// running or answering it.
	Dropped(reason string)

	// Handled is called after each step a watcher runs, handshakes
	// included. command is "unknown" for names with no handler.
	Handled(command string, returnCode int, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) Received()                          {}
func (nopObserver) Duplicate()                         {}
func (nopObserver) Dropped(string)                     {}
func (nopObserver) Handled(string, int, time.Duration) {}
