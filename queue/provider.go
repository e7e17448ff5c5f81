// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package queue

import (
	"context"
	"time"
)

// Provider is a message queue backend.
type Provider interface {
	// CreateEndpoint creates the endpoint for name if needed and
	// returns its URL. Creating an existing endpoint is not an error.
	CreateEndpoint(ctx context.Context, name string) (string, error)

	// GetEndpoint resolves name to a URL, returning
	// ErrEndpointNotFound when the endpoint does not exist.
	GetEndpoint(ctx context.Context, name string) (string, error)

	// DeleteEndpoint removes the endpoint and any queued messages.
	DeleteEndpoint(ctx context.Context, url string) error

	// SendMessage enqueues a message on the endpoint at targetURL and
	// returns the message id.
	SendMessage(ctx context.Context, targetURL, body string, attributes Attributes) (string, error)

	// ReceiveMessage waits up to wait for a message on the endpoint at
	// url. It returns nil and no error when none arrived. A zero wait
	// polls once without blocking. Waits longer than MaxPollWait are
	// clamped. A claimed message whose stored form cannot be decoded
	// is reported as a *CorruptMessageError.
	ReceiveMessage(ctx context.Context, url string, wait time.Duration) (*Message, error)

	// DeleteMessage acknowledges a received message so it is not
	// redelivered. receipt is Message.Receipt.
	DeleteMessage(ctx context.Context, url, receipt string) error

	// MaxPollWait is the longest single ReceiveMessage wait the
	// backend supports.
	MaxPollWait() time.Duration

	// Retention is how long an unconsumed message is kept.
	Retention() time.Duration
}

// Message is one received message.
type Message struct {
	// ID is assigned by the backend at send time and is stable across
	// redeliveries.
	ID string

	// Receipt identifies this particular delivery for DeleteMessage.
	Receipt string

	SentAt     time.Time
	Body       string
	Attributes Attributes
}

// Standard attribute names.
const (
	// AttributeSender is the sender's logical name (string).
	AttributeSender = "Sender"
	// AttributeEncrypted is the sealed command payload (binary).
	AttributeEncrypted = "Encrypted"
	// AttributeRequestID correlates responses with requests (string).
	AttributeRequestID = "RequestID"
)

// Attribute is a message attribute value. Exactly one field is set.
type Attribute struct {
	String string `cbor:"s,omitempty" msgpack:"s,omitempty"`
	Binary []byte `cbor:"b,omitempty" msgpack:"b,omitempty"`
}

// StringAttribute returns a string-valued attribute.
func StringAttribute(value string) Attribute {
	return Attribute{String: value}
}

// BinaryAttribute returns a binary-valued attribute.
func BinaryAttribute(value []byte) Attribute {
	return Attribute{Binary: value}
}

// Attributes maps attribute names to values.
type Attributes map[string]Attribute

// String returns the named string attribute.
func (a Attributes) String(name string) (string, bool) {
	attribute, ok := a[name]
	if !ok || attribute.String == "" {
		return "", false
	}
	return attribute.String, true
}

// Binary returns the named binary attribute.
func (a Attributes) Binary(name string) ([]byte, bool) {
	attribute, ok := a[name]
	if !ok || attribute.Binary == nil {
		return nil, false
	}
	return attribute.Binary, true
}

// Clone returns a deep copy, so a backend never shares byte slices
// with its caller.
func (a Attributes) Clone() Attributes {
	if a == nil {
		return nil
	}
	clone := make(Attributes, len(a))
	for name, attribute := range a {
		if attribute.Binary != nil {
			attribute.Binary = append([]byte(nil), attribute.Binary...)
		}
		clone[name] = attribute
	}
	return clone
}
