// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package queue

import (
	"errors"
	"fmt"
)

// ErrEndpointNotFound is returned by GetEndpoint, and by operations on
// a URL whose endpoint no longer exists.
var ErrEndpointNotFound = errors.New("queue: endpoint not found")

// TransientError marks a backend failure that may succeed on retry:
// a dropped connection, a timeout, a locked database.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("queue: %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is or wraps a TransientError.
func IsTransient(err error) bool {
	var transient *TransientError
	return errors.As(err, &transient)
}

func transient(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Op: op, Err: err}
}

// ErrCorruptMessage matches a CorruptMessageError with errors.Is.
var ErrCorruptMessage = errors.New("queue: corrupt message")

// CorruptMessageError is returned by ReceiveMessage when a stored
// message was claimed but its attributes could not be restored. The
// delivery is still acknowledged with DeleteMessage(Receipt) so that
// the record does not come back.
type CorruptMessageError struct {
	ID      string
	Receipt string
	Err     error
}

func (e *CorruptMessageError) Error() string {
	return fmt.Sprintf("queue: message %s: %v", e.ID, e.Err)
}

func (e *CorruptMessageError) Unwrap() error {
	return e.Err
}

func (e *CorruptMessageError) Is(target error) bool {
	return target == ErrCorruptMessage
}
