// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bureau-foundation/sera/lib/identity"
	"github.com/bureau-foundation/sera/lib/trust"
	"github.com/bureau-foundation/sera/queue"
)

// DefaultMaxChainDepth is the default bound on follow-up commands run
// for one request.
const DefaultMaxChainDepth = 16

// WatcherConfig configures a Watcher.
type WatcherConfig struct {
	Provider queue.Provider
	Identity *identity.Identity

	// Name is the endpoint the watcher listens on. Masters address the
	// watcher by this name.
	Name string

	// Clients holds the public keys allowed to run commands. Only the
	// handshake is answered for other senders.
	Clients *trust.AllowList

	Handlers *Registry

	// Timeout bounds the session. Forever (any negative value) runs
	// until the context is cancelled or a handler asks to exit; zero
	// polls once.
	Timeout time.Duration

	// MaxChainDepth bounds the follow-ups run for one request.
	// Defaults to DefaultMaxChainDepth.
	MaxChainDepth int

	Options
}

// Watcher runs the dispatch loop for one endpoint.
type Watcher struct {
	*host
	name          string
	clients       *trust.AllowList
	handlers      *Registry
	timeout       time.Duration
	maxChainDepth int
}

// NewWatcher validates cfg and returns a Watcher. The endpoint is not
// resolved until Watch.
func NewWatcher(cfg WatcherConfig) (*Watcher, error) {
	if cfg.Provider == nil || cfg.Identity == nil {
		return nil, errors.New("remote: watcher needs a provider and an identity")
	}
	if cfg.Name == "" {
		return nil, errors.New("remote: watcher needs an endpoint name")
	}
	clients := cfg.Clients
	if clients == nil {
		clients = trust.NewAllowList()
	}
	handlers := cfg.Handlers
	if handlers == nil {
		handlers = NewRegistry()
	}
	maxChainDepth := cfg.MaxChainDepth
	if maxChainDepth <= 0 {
		maxChainDepth = DefaultMaxChainDepth
	}
	return &Watcher{
		host:          newHost(cfg.Provider, cfg.Identity, cfg.Options),
		name:          cfg.Name,
		clients:       clients,
		handlers:      handlers,
		timeout:       cfg.Timeout,
		maxChainDepth: maxChainDepth,
	}, nil
}

// errExit stops the loop after a handler asked to exit.
var errExit = errors.New("exit requested")

// Watch waits for the watcher's endpoint to exist, then receives and
// dispatches commands until the session timeout elapses, a handler
// asks to exit, or ctx is cancelled. It returns nil on timeout and on
// exit.
//
// The endpoint is normally created by the first master that addresses
// the watcher, so Watch polls for it with linear backoff rather than
// creating it.
func (w *Watcher) Watch(ctx context.Context) error {
	start := w.clock.Now()
	if err := w.awaitEndpoint(ctx, start); err != nil {
		return err
	}
	w.logger.Info("watching",
		"endpoint", w.name,
		"fingerprint", identity.Fingerprint(w.identity.PublicKey()),
		"allowed_clients", w.clients.Len(),
	)

	for {
		remaining := Forever
		if w.timeout >= 0 {
			remaining = max(0, w.timeout-(w.clock.Now().Sub(start)))
		}
		message, err := w.receive(ctx, remaining)
		if err != nil {
			return fmt.Errorf("watching %q: %w", w.name, err)
		}
		if message != nil {
			if err := w.handle(ctx, message); errors.Is(err, errExit) {
				w.logger.Info("exit requested, stopping", "endpoint", w.name)
				return nil
			} else if err != nil {
				return err
			}
		}
		if message == nil || w.expired(start, w.timeout) {
			w.logger.Info("session timeout reached", "endpoint", w.name)
			return nil
		}
	}
}

func (w *Watcher) awaitEndpoint(ctx context.Context, start time.Time) error {
	retry := w.newBackoff()
	for {
		endpoint, err := ResolveOrCreate(ctx, w.provider, w.name, false)
		if err == nil {
			w.endpoint = endpoint
			return nil
		}
		if !errors.Is(err, queue.ErrEndpointNotFound) && !queue.IsTransient(err) {
			return fmt.Errorf("resolving %q: %w", w.name, err)
		}
		if w.expired(start, w.timeout) {
			return fmt.Errorf("waiting for endpoint %q: %w", w.name, err)
		}
		w.logger.Debug("endpoint not available yet", "endpoint", w.name, "error", err)
		if err := retry.wait(ctx); err != nil {
			return err
		}
	}
}

// handle processes one message. Decode and authorization failures are
// logged and dropped. The only errors returned are errExit and context
// cancellation.
func (w *Watcher) handle(ctx context.Context, message *queue.Message) error {
	command, err := decodeMessage(w.identity, message)
	if err != nil {
		w.logger.Warn("dropping undecodable message",
			"message_id", message.ID,
			"error", err,
		)
		w.observer.Dropped(DropUndecodable)
		return nil
	}
	if command.Host == "" {
		w.logger.Warn("dropping message without sender",
			"message_id", message.ID,
			"command", command.Name,
		)
		w.observer.Dropped(DropNoSender)
		return nil
	}

	if command.IsHandshake() {
		start := w.clock.Now()
		w.answerHandshake(ctx, command)
		w.observer.Handled(HandshakeCommand, 0, w.clock.Now().Sub(start))
		return nil
	}

	if !w.clients.Contains(command.PublicKey) {
		w.logger.Warn("ignoring command from unauthorized client",
			"command", command.Name,
			"peer", command.Host,
			"fingerprint", identity.Fingerprint(command.PublicKey),
		)
		w.observer.Dropped(DropUnauthorized)
		return nil
	}

	target, err := ResolveOrCreate(ctx, w.provider, command.Host, false)
	if err != nil {
		w.logger.Error("cannot resolve sender endpoint, dropping command",
			"command", command.Name,
			"peer", command.Host,
			"error", err,
		)
		w.observer.Dropped(DropUnreachable)
		return nil
	}

	w.logger.Info("received command",
		"command", command.Name,
		"peer", command.Host,
		"request_id", command.RequestID,
	)
	stepStart := w.clock.Now()
	last, truncated, err := w.handlers.RunChain(ctx, command.Name, command.Params, w.maxChainDepth, func(step Step) error {
		w.observer.Handled(w.metricName(step.Name), step.Result.ReturnCode, w.clock.Now().Sub(stepStart))
		w.respond(ctx, target, command, step)
		stepStart = w.clock.Now()
		return nil
	})
	if err != nil {
		return err
	}
	if truncated {
		w.logger.Warn("command chain reached depth limit",
			"command", command.Name,
			"max_chain_depth", w.maxChainDepth,
			"next", last.Next.Name,
		)
	}
	if last.Exit {
		return errExit
	}
	return nil
}

// metricName keeps the observer's command label set bounded by the
// registered names.
func (w *Watcher) metricName(name string) string {
	if _, ok := w.handlers.Lookup(name); ok {
		return name
	}
	return "unknown"
}

func (w *Watcher) answerHandshake(ctx context.Context, request *Command) {
	target, err := ResolveOrCreate(ctx, w.provider, request.Host, false)
	if err != nil {
		w.logger.Warn("cannot resolve handshake sender",
			"peer", request.Host,
			"error", err,
		)
		return
	}
	w.logger.Info("sending public key",
		"peer", request.Host,
		"peer_fingerprint", identity.Fingerprint(request.PublicKey),
	)
	envelope := EncodeHandshake(w.name, w.identity.PublicKey(), request.RequestID)
	if err := w.send(ctx, target.URL, envelope); err != nil {
		w.logger.Error("sending handshake reply failed",
			"peer", request.Host,
			"error", err,
		)
	}
}

// respond sends one step's result to the requesting master. Send
// failures are logged: the master times out, as it would for a lost
// message.
func (w *Watcher) respond(ctx context.Context, target *Endpoint, request *Command, step Step) {
	returnCode := step.Result.ReturnCode
	envelope, err := Encode(w.identity, w.name, request.PublicKey, &Command{
		Name:       step.Name,
		Params:     step.Params,
		Stdout:     step.Result.Stdout,
		Stderr:     step.Result.Stderr,
		ReturnCode: &returnCode,
		RequestID:  request.RequestID,
	})
	if err == nil {
		err = w.send(ctx, target.URL, envelope)
	}
	if err != nil {
		w.logger.Error("sending response failed",
			"command", step.Name,
			"peer", request.Host,
			"error", err,
		)
		return
	}
	w.logger.Debug("response sent",
		"command", step.Name,
		"peer", request.Host,
		"return_code", returnCode,
	)
}
