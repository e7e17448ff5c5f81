// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"errors"
	"time"
)

// Forever, passed as a timeout, waits without limit.
const Forever time.Duration = -1

var (
	// ErrDecode is returned by Decode for a message that is malformed
	// or fails authentication.
	ErrDecode = errors.New("remote: cannot decode message")

	// ErrNotEncrypted is returned by Decode for a message that claims
	// to be encrypted but carries no usable ciphertext.
	ErrNotEncrypted = errors.New("remote: message is not encrypted")

	// ErrTimeout is returned when no response arrives in time.
	ErrTimeout = errors.New("remote: timed out waiting for response")

	// ErrUnknownCommand marks a command name with no registered
	// handler.
	ErrUnknownCommand = errors.New("remote: unknown command")
)
