// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bureau-foundation/sera/lib/identity"
	"github.com/bureau-foundation/sera/lib/trust"
	"github.com/bureau-foundation/sera/queue"
)

// MasterConfig configures a Master.
type MasterConfig struct {
	Provider queue.Provider
	Identity *identity.Identity

	// Name is the master's own endpoint name. Defaults to the
	// identity's public key in endpoint form, so that every master
	// has a distinct reply channel.
	Name string

	// Watchers caches watcher public keys by endpoint name. Defaults
	// to an empty in-memory cache.
	Watchers *trust.Cache

	Options
}

// Master is the sending side of the protocol: it resolves watchers,
// exchanges keys with them, sends commands and waits for correlated
// responses. Methods must not be called concurrently.
type Master struct {
	*host
	watchers *trust.Cache
}

// Pending identifies a sent request whose responses have not all been
// received.
type Pending struct {
	RequestID string
	Name      string

	// Recipient is the key the request was sealed for. Responses must
	// come from it. Zero for a handshake.
	Recipient identity.PublicKey
}

// NewMaster resolves, creating if needed, the master's own endpoint.
func NewMaster(ctx context.Context, cfg MasterConfig) (*Master, error) {
	if cfg.Provider == nil || cfg.Identity == nil {
		return nil, errors.New("remote: master needs a provider and an identity")
	}
	name := cfg.Name
	if name == "" {
		name = cfg.Identity.PublicKey().EndpointName()
	}
	h := newHost(cfg.Provider, cfg.Identity, cfg.Options)
	endpoint, err := ResolveOrCreate(ctx, cfg.Provider, name, true)
	if err != nil {
		return nil, fmt.Errorf("resolving master endpoint %q: %w", name, err)
	}
	h.endpoint = endpoint

	watchers := cfg.Watchers
	if watchers == nil {
		watchers = trust.NewCache()
	}
	return &Master{host: h, watchers: watchers}, nil
}

// Endpoint returns the master's own endpoint.
func (m *Master) Endpoint() *Endpoint {
	return m.endpoint
}

// ExchangeKeys returns watcher's public key. A key already in the
// watcher cache is returned without any network traffic. Otherwise a
// handshake is sent and the reply awaited up to timeout; the received
// key is stored in the cache. The error wraps ErrTimeout when the
// watcher does not answer.
func (m *Master) ExchangeKeys(ctx context.Context, watcher string, timeout time.Duration) (identity.PublicKey, error) {
	if key, ok := m.watchers.Get(watcher); ok {
		m.logger.Debug("using cached watcher key",
			"watcher", watcher,
			"fingerprint", identity.Fingerprint(key),
		)
		return key, nil
	}

	target, err := ResolveOrCreate(ctx, m.provider, watcher, true)
	if err != nil {
		return identity.PublicKey{}, fmt.Errorf("resolving watcher %q: %w", watcher, err)
	}
	pending := &Pending{RequestID: uuid.NewString(), Name: HandshakeCommand}
	envelope := EncodeHandshake(m.endpoint.Name, m.identity.PublicKey(), pending.RequestID)
	m.logger.Info("exchanging public keys", "watcher", watcher, "request_id", pending.RequestID)
	if err := m.send(ctx, target.URL, envelope); err != nil {
		return identity.PublicKey{}, fmt.Errorf("sending handshake to %q: %w", watcher, err)
	}

	reply, err := m.Await(ctx, pending, timeout)
	if err != nil {
		return identity.PublicKey{}, fmt.Errorf("handshake with %q: %w", watcher, err)
	}
	if reply.PublicKey.IsZero() {
		return identity.PublicKey{}, fmt.Errorf("handshake with %q: %w: reply carried no key", watcher, ErrDecode)
	}
	if err := m.watchers.Put(watcher, reply.PublicKey); err != nil {
		return identity.PublicKey{}, fmt.Errorf("saving key for %q: %w", watcher, err)
	}
	m.logger.Info("received watcher key",
		"watcher", watcher,
		"fingerprint", identity.Fingerprint(reply.PublicKey),
	)
	return reply.PublicKey, nil
}

// Post seals a command for recipient and sends it to target without
// waiting for a response.
func (m *Master) Post(ctx context.Context, target string, recipient identity.PublicKey, name string, params map[string]string) (*Pending, error) {
	endpoint, err := ResolveOrCreate(ctx, m.provider, target, true)
	if err != nil {
		return nil, fmt.Errorf("resolving %q: %w", target, err)
	}
	pending := &Pending{RequestID: uuid.NewString(), Name: name, Recipient: recipient}
	envelope, err := Encode(m.identity, m.endpoint.Name, recipient, &Command{
		Name:      name,
		Params:    params,
		RequestID: pending.RequestID,
	})
	if err != nil {
		return nil, err
	}
	if err := m.send(ctx, endpoint.URL, envelope); err != nil {
		return nil, fmt.Errorf("sending %q to %q: %w", name, target, err)
	}
	m.logger.Debug("command sent",
		"command", name,
		"target", target,
		"request_id", pending.RequestID,
	)
	return pending, nil
}

// Send posts a command and waits up to timeout for its first
// response. The error wraps ErrTimeout when none arrives.
func (m *Master) Send(ctx context.Context, target string, recipient identity.PublicKey, name string, params map[string]string, timeout time.Duration) (*Command, error) {
	pending, err := m.Post(ctx, target, recipient, name, params)
	if err != nil {
		return nil, err
	}
	return m.Await(ctx, pending, timeout)
}

// Await waits up to timeout for the next response to pending. Call it
// again to collect the responses of chained commands. Responses to
// other requests, and messages that fail to decode, are dropped.
//
// A response matches when its RequestID equals the request's. A
// response without a RequestID matches when its command name equals
// the request's.
func (m *Master) Await(ctx context.Context, pending *Pending, timeout time.Duration) (*Command, error) {
	start := m.clock.Now()
	for {
		remaining := Forever
		if timeout >= 0 {
			remaining = max(0, timeout-(m.clock.Now().Sub(start)))
		}
		message, err := m.receive(ctx, remaining)
		if err != nil {
			return nil, err
		}
		if message == nil {
			return nil, fmt.Errorf("%w: %s (request %s)", ErrTimeout, pending.Name, pending.RequestID)
		}

		response, err := decodeMessage(m.identity, message)
		if err != nil {
			m.logger.Warn("dropping undecodable message",
				"message_id", message.ID,
				"error", err,
			)
		} else if m.matches(pending, response) {
			return response, nil
		} else {
			m.logger.Debug("dropping unrelated response",
				"command", response.Name,
				"request_id", response.RequestID,
				"awaiting", pending.RequestID,
			)
		}

		if m.expired(start, timeout) {
			return nil, fmt.Errorf("%w: %s (request %s)", ErrTimeout, pending.Name, pending.RequestID)
		}
	}
}

func (m *Master) matches(pending *Pending, response *Command) bool {
	if response.RequestID != "" {
		if response.RequestID != pending.RequestID {
			return false
		}
	} else if response.Name != pending.Name {
		// Without a request ID only the first response, which carries
		// the request's name, can be matched. Chained responses are
		// named after their own handler.
		return false
	}
	if pending.Name == HandshakeCommand {
		return response.IsHandshake()
	}
	if response.IsHandshake() {
		return false
	}
	if !pending.Recipient.IsZero() && response.PublicKey != pending.Recipient {
		m.logger.Warn("dropping response from unexpected key",
			"request_id", pending.RequestID,
			"fingerprint", identity.Fingerprint(response.PublicKey),
		)
		return false
	}
	return true
}
