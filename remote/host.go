// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/bureau-foundation/sera/lib/clock"
	"github.com/bureau-foundation/sera/lib/dedup"
	"github.com/bureau-foundation/sera/lib/identity"
	"github.com/bureau-foundation/sera/queue"
)

// DefaultDedupMargin is added to the provider's retention period to
// get the duplicate filter window when none is configured.
const DefaultDedupMargin = 60 * time.Second

// sendAttempts bounds retries of a send that fails transiently.
const sendAttempts = 5

// Options are the settings shared by Master and Watcher. Zero values
// take defaults.
type Options struct {
	Clock  clock.Clock
	Logger *slog.Logger

	// DedupWindow is how long a received message ID is remembered. It
	// must exceed the backend's retention so that a redelivery is
	// recognized. Defaults to Retention() + DefaultDedupMargin.
	DedupWindow time.Duration

	// BackoffStep and MaxBackoff shape the linear retry delay used
	// while waiting for an endpoint and after transient backend
	// errors.
	BackoffStep time.Duration
	MaxBackoff  time.Duration

	// Observer receives receive and dispatch events. Nil ignores them.
	Observer Observer
}

// host is the state both roles share: a provider, a local identity,
// the local endpoint and the receive-side duplicate filter.
type host struct {
	provider queue.Provider
	identity *identity.Identity
	endpoint *Endpoint
	filter   *dedup.Filter
	clock    clock.Clock
	logger   *slog.Logger
	observer Observer

	backoffStep time.Duration
	maxBackoff  time.Duration
}

func newHost(provider queue.Provider, local *identity.Identity, options Options) *host {
	h := &host{
		provider:    provider,
		identity:    local,
		clock:       options.Clock,
		logger:      options.Logger,
		observer:    options.Observer,
		backoffStep: options.BackoffStep,
		maxBackoff:  options.MaxBackoff,
	}
	if h.clock == nil {
		h.clock = clock.Real()
	}
	if h.logger == nil {
		h.logger = slog.New(slog.DiscardHandler)
	}
	if h.observer == nil {
		h.observer = nopObserver{}
	}
	if h.backoffStep <= 0 {
		h.backoffStep = DefaultBackoffStep
	}
	if h.maxBackoff <= 0 {
		h.maxBackoff = DefaultMaxBackoff
	}
	window := options.DedupWindow
	if window <= 0 {
		window = provider.Retention() + DefaultDedupMargin
	}
	h.filter = dedup.New(window, h.clock)
	return h
}

func (h *host) newBackoff() *backoff {
	return newBackoff(h.clock, h.backoffStep, h.maxBackoff)
}

// expired reports whether timeout has run out since start. A negative
// timeout never runs out.
func (h *host) expired(start time.Time, timeout time.Duration) bool {
	return timeout >= 0 && clock.Since(h.clock, start) >= timeout
}

// receive returns the next message on the local endpoint that has not
// been delivered before, or nil once timeout elapses. A zero timeout
// polls exactly once. Every received message is deleted from the
// backend right after the duplicate check, before the caller sees it.
// Corrupt stored messages are acknowledged and dropped.
// Transient backend errors are retried until timeout.
func (h *host) receive(ctx context.Context, timeout time.Duration) (*queue.Message, error) {
	start := h.clock.Now()
	retry := h.newBackoff()
	for {
		wait := h.provider.MaxPollWait()
		if timeout >= 0 {
			wait = min(wait, max(0, timeout-clock.Since(h.clock, start)))
		}

		message, err := h.provider.ReceiveMessage(ctx, h.endpoint.URL, wait)
		var corrupt *queue.CorruptMessageError
		switch {
		case err != nil && queue.IsTransient(err) && ctx.Err() == nil:
			if h.expired(start, timeout) {
				return nil, err
			}
			h.logger.Warn("receive failed, retrying",
				"endpoint", h.endpoint.Name,
				"error", err,
			)
			if err := retry.wait(ctx); err != nil {
				return nil, err
			}
			continue

		case errors.As(err, &corrupt):
			retry.reset()
			h.logger.Warn("dropping corrupt message",
				"endpoint", h.endpoint.Name,
				"message_id", corrupt.ID,
				"error", corrupt.Err,
			)
			h.acknowledge(ctx, &queue.Message{ID: corrupt.ID, Receipt: corrupt.Receipt})
			h.observer.Dropped(DropUndecodable)

		case err != nil:
			return nil, err

		case message != nil:
			retry.reset()
			duplicate := h.filter.Check(message.ID)
			h.acknowledge(ctx, message)
			if !duplicate {
				h.observer.Received()
				return message, nil
			}
			h.observer.Duplicate()
			h.logger.Debug("dropping duplicate delivery",
				"endpoint", h.endpoint.Name,
				"message_id", message.ID,
			)
		}

		if h.expired(start, timeout) {
			return nil, nil
		}
	}
}

func (h *host) acknowledge(ctx context.Context, message *queue.Message) {
	if err := h.provider.DeleteMessage(ctx, h.endpoint.URL, message.Receipt); err != nil {
		// The message will be redelivered and dropped as a duplicate.
		h.logger.Warn("deleting received message failed",
			"endpoint", h.endpoint.Name,
			"message_id", message.ID,
			"error", err,
		)
	}
}

// send delivers envelope to targetURL, retrying transient failures a
// bounded number of times.
func (h *host) send(ctx context.Context, targetURL string, envelope Envelope) error {
	retry := h.newBackoff()
	for attempt := 1; ; attempt++ {
		_, err := h.provider.SendMessage(ctx, targetURL, envelope.Body, envelope.Attributes)
		if err == nil || !queue.IsTransient(err) || attempt == sendAttempts {
			return err
		}
		h.logger.Warn("send failed, retrying",
			"target", targetURL,
			"attempt", attempt,
			"error", err,
		)
		if err := retry.wait(ctx); err != nil {
			return err
		}
	}
}
