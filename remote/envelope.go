// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/bureau-foundation/sera/lib/identity"
	"github.com/bureau-foundation/sera/queue"
)

const (
	handshakePrefix = HandshakeCommand + " "
	encryptedPrefix = "decrypt "
)

// Envelope is a message as it travels through the queue.
type Envelope struct {
	Body       string
	Attributes queue.Attributes
}

// payload is the JSON object sealed inside an encrypted envelope.
type payload struct {
	Name       string            `json:"name"`
	Params     map[string]string `json:"params"`
	Stdout     string            `json:"stdout"`
	Stderr     string            `json:"stderr"`
	ReturnCode *int              `json:"returncode"`
}

// wirePayload accepts params of any JSON type. Peers that build params
// from typed flags send booleans, numbers and lists.
type wirePayload struct {
	Name       string                     `json:"name"`
	Params     map[string]json.RawMessage `json:"params"`
	Stdout     string                     `json:"stdout"`
	Stderr     string                     `json:"stderr"`
	ReturnCode *int                       `json:"returncode"`
}

// EncodeHandshake builds the plaintext key exchange message announcing
// key. sender is the endpoint the reply should go to.
func EncodeHandshake(sender string, key identity.PublicKey, requestID string) Envelope {
	return Envelope{
		Body:       handshakePrefix + key.String(),
		Attributes: baseAttributes(sender, requestID),
	}
}

// Encode seals command for recipient with local's private key. Only
// Name, Params, Stdout, Stderr, ReturnCode and RequestID are used.
// Every call draws a fresh random nonce.
func Encode(local *identity.Identity, sender string, recipient identity.PublicKey, command *Command) (Envelope, error) {
	params := command.Params
	if params == nil {
		params = map[string]string{}
	}
	plaintext, err := json.Marshal(payload{
		Name:       command.Name,
		Params:     params,
		Stdout:     command.Stdout,
		Stderr:     command.Stderr,
		ReturnCode: command.ReturnCode,
	})
	if err != nil {
		return Envelope{}, fmt.Errorf("encoding command %q: %w", command.Name, err)
	}
	sealed, err := local.Seal(plaintext, recipient)
	if err != nil {
		return Envelope{}, fmt.Errorf("sealing command %q: %w", command.Name, err)
	}

	attributes := baseAttributes(sender, command.RequestID)
	attributes[queue.AttributeEncrypted] = queue.BinaryAttribute(sealed)
	return Envelope{
		Body:       encryptedPrefix + local.PublicKey().String(),
		Attributes: attributes,
	}, nil
}

// Decode turns an envelope received by local back into a Command.
// Errors wrap ErrDecode or ErrNotEncrypted; either way the message
// should be dropped.
func Decode(local *identity.Identity, envelope Envelope) (*Command, error) {
	body := unquoteBody(envelope.Body)
	command := &Command{}
	command.Host, _ = envelope.Attributes.String(queue.AttributeSender)
	command.RequestID, _ = envelope.Attributes.String(queue.AttributeRequestID)

	switch {
	case strings.HasPrefix(body, handshakePrefix):
		key, err := identity.ParsePublicKey(strings.TrimPrefix(body, handshakePrefix))
		if err != nil {
			return nil, fmt.Errorf("%w: handshake key: %w", ErrDecode, err)
		}
		command.Name = HandshakeCommand
		command.PublicKey = key
		return command, nil

	case strings.HasPrefix(body, encryptedPrefix):
		sender, err := identity.ParsePublicKey(strings.TrimPrefix(body, encryptedPrefix))
		if err != nil {
			return nil, fmt.Errorf("%w: sender key: %w", ErrDecode, err)
		}
		sealed, ok := envelope.Attributes.Binary(queue.AttributeEncrypted)
		if !ok || len(sealed) == 0 {
			return nil, fmt.Errorf("%w: no %s attribute", ErrNotEncrypted, queue.AttributeEncrypted)
		}
		plaintext, err := local.Open(sealed, sender)
		if errors.Is(err, identity.ErrMessageTooShort) {
			return nil, fmt.Errorf("%w: %w", ErrNotEncrypted, err)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDecode, err)
		}

		var decoded wirePayload
		if err := json.Unmarshal(plaintext, &decoded); err != nil {
			return nil, fmt.Errorf("%w: payload: %w", ErrDecode, err)
		}
		if decoded.Name == "" {
			return nil, fmt.Errorf("%w: payload has no command name", ErrDecode)
		}
		command.PublicKey = sender
		command.Name = decoded.Name
		command.Params = flattenParams(decoded.Params)
		command.Stdout = decoded.Stdout
		command.Stderr = decoded.Stderr
		command.ReturnCode = decoded.ReturnCode
		return command, nil

	default:
		return nil, fmt.Errorf("%w: unrecognized body %q", ErrDecode, truncate(body, 32))
	}
}

// decodeMessage is Decode for a received queue message.
func decodeMessage(local *identity.Identity, message *queue.Message) (*Command, error) {
	command, err := Decode(local, Envelope{Body: message.Body, Attributes: message.Attributes})
	if err != nil {
		return nil, err
	}
	command.MessageID = message.ID
	command.SentAt = message.SentAt
	return command, nil
}

func baseAttributes(sender, requestID string) queue.Attributes {
	attributes := queue.Attributes{
		queue.AttributeSender: queue.StringAttribute(sender),
	}
	if requestID != "" {
		attributes[queue.AttributeRequestID] = queue.StringAttribute(requestID)
	}
	return attributes
}

// unquoteBody accepts a body sent as a JSON string literal, as some
// peers wrap it.
func unquoteBody(body string) string {
	if len(body) >= 2 && body[0] == '"' {
		var unquoted string
		if err := json.Unmarshal([]byte(body), &unquoted); err == nil {
			return unquoted
		}
	}
	return body
}

// flattenParams keeps string values as they are and renders any other
// JSON value as its compact JSON text.
func flattenParams(raw map[string]json.RawMessage) map[string]string {
	params := make(map[string]string, len(raw))
	for key, value := range raw {
		var text string
		if err := json.Unmarshal(value, &text); err == nil {
			params[key] = text
			continue
		}
		if string(value) == "null" {
			params[key] = ""
			continue
		}
		var compact bytes.Buffer
		if err := json.Compact(&compact, value); err != nil {
			params[key] = string(value)
			continue
		}
		params[key] = compact.String()
	}
	return params
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
