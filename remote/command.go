// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"time"

	"github.com/bureau-foundation/sera/lib/identity"
)

// HandshakeCommand is the name of the key exchange command. It is the
// only command a watcher answers for a sender it has not authorized.
const HandshakeCommand = "public_key"

// Command is a decoded command or response.
type Command struct {
	// Host is the sender's endpoint name, from the Sender attribute.
	// Responses are sent there.
	Host string

	// PublicKey is the sender's public key. It is zero only for a
	// message that carried none.
	PublicKey identity.PublicKey

	Name   string
	Params map[string]string

	// Stdout, Stderr and ReturnCode are set on responses. ReturnCode
	// is nil on a request.
	Stdout     string
	Stderr     string
	ReturnCode *int

	// RequestID correlates a response with its request. Empty for
	// messages from peers that do not send one.
	RequestID string

	// MessageID and SentAt come from the queue backend.
	MessageID string
	SentAt    time.Time
}

// IsHandshake reports whether c is a key exchange message.
func (c *Command) IsHandshake() bool {
	return c.Name == HandshakeCommand
}

// ExitCode returns the response's return code, or 0 when none was
// set.
func (c *Command) ExitCode() int {
	if c.ReturnCode == nil {
		return 0
	}
	return *c.ReturnCode
}
