// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bureau-foundation/sera/lib/clock"
)

const memoryScheme = "memory"

// Backend defaults, matching the hosted queue services sera was first
// deployed on.
const (
	DefaultRetention   = 60 * time.Second
	DefaultVisibility  = 120 * time.Second
	DefaultMaxPollWait = 20 * time.Second
)

// MemoryConfig configures a MemoryProvider. Zero durations take the
// package defaults.
type MemoryConfig struct {
	Namespace   string
	Clock       clock.Clock
	Retention   time.Duration
	Visibility  time.Duration
	MaxPollWait time.Duration
}

// MemoryProvider is an in-process Provider. It keeps the at-least-once
// semantics of the real backends: a received message that is not
// deleted becomes visible again after the visibility timeout, and
// messages older than the retention period are discarded.
type MemoryProvider struct {
	namespace   string
	clock       clock.Clock
	retention   time.Duration
	visibility  time.Duration
	maxPollWait time.Duration

	mu        sync.Mutex
	endpoints map[string]*memoryQueue
}

type memoryQueue struct {
	messages []*memoryMessage
	// notify is closed and replaced whenever a message is sent, waking
	// every receiver blocked on this endpoint.
	notify chan struct{}
}

type memoryMessage struct {
	message   Message
	visibleAt time.Time
}

// NewMemory returns an empty MemoryProvider.
func NewMemory(cfg MemoryConfig) *MemoryProvider {
	provider := &MemoryProvider{
		namespace:   cfg.Namespace,
		clock:       cfg.Clock,
		retention:   cfg.Retention,
		visibility:  cfg.Visibility,
		maxPollWait: cfg.MaxPollWait,
		endpoints:   make(map[string]*memoryQueue),
	}
	if provider.clock == nil {
		provider.clock = clock.Real()
	}
	if provider.retention <= 0 {
		provider.retention = DefaultRetention
	}
	if provider.visibility <= 0 {
		provider.visibility = DefaultVisibility
	}
	if provider.maxPollWait <= 0 {
		provider.maxPollWait = DefaultMaxPollWait
	}
	return provider
}

func (p *MemoryProvider) CreateEndpoint(_ context.Context, name string) (string, error) {
	sanitized := Sanitize(p.namespace, name)
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.endpoints[sanitized]; !ok {
		p.endpoints[sanitized] = &memoryQueue{notify: make(chan struct{})}
	}
	return endpointURL(memoryScheme, sanitized), nil
}

func (p *MemoryProvider) GetEndpoint(_ context.Context, name string) (string, error) {
	sanitized := Sanitize(p.namespace, name)
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.endpoints[sanitized]; !ok {
		return "", fmt.Errorf("%w: %s", ErrEndpointNotFound, sanitized)
	}
	return endpointURL(memoryScheme, sanitized), nil
}

func (p *MemoryProvider) DeleteEndpoint(_ context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	name, queue, err := p.lookupLocked(url)
	if err != nil {
		return err
	}
	delete(p.endpoints, name)
	close(queue.notify)
	return nil
}

func (p *MemoryProvider) SendMessage(_ context.Context, targetURL, body string, attributes Attributes) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, queue, err := p.lookupLocked(targetURL)
	if err != nil {
		return "", err
	}

	now := p.clock.Now()
	id := uuid.NewString()
	queue.messages = append(queue.messages, &memoryMessage{
		message: Message{
			ID:         id,
			SentAt:     now,
			Body:       body,
			Attributes: attributes.Clone(),
		},
		visibleAt: now,
	})
	close(queue.notify)
	queue.notify = make(chan struct{})
	return id, nil
}

func (p *MemoryProvider) ReceiveMessage(ctx context.Context, url string, wait time.Duration) (*Message, error) {
	wait = clampWait(wait, p.maxPollWait)
	deadline := p.clock.Now().Add(wait)

	for {
		p.mu.Lock()
		_, queue, err := p.lookupLocked(url)
		if err != nil {
			p.mu.Unlock()
			return nil, err
		}
		now := p.clock.Now()
		message, nextVisible := queue.takeLocked(now, p.retention, p.visibility)
		notify := queue.notify
		p.mu.Unlock()

		if message != nil {
			return message, nil
		}
		remaining := deadline.Sub(now)
		if remaining <= 0 {
			return nil, nil
		}
		if !nextVisible.IsZero() && nextVisible.Sub(now) < remaining {
			remaining = nextVisible.Sub(now)
		}

		timer := p.clock.NewTimer(remaining)
		select {
		case <-notify:
			timer.Stop()
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}
}

func (p *MemoryProvider) DeleteMessage(_ context.Context, url, receipt string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, queue, err := p.lookupLocked(url)
	if err != nil {
		return err
	}
	for index, stored := range queue.messages {
		if stored.message.Receipt == receipt {
			queue.messages = append(queue.messages[:index], queue.messages[index+1:]...)
			return nil
		}
	}
	// A stale receipt (the message was redelivered, or expired) is not
	// an error, matching hosted queue services.
	return nil
}

func (p *MemoryProvider) MaxPollWait() time.Duration { return p.maxPollWait }

func (p *MemoryProvider) Retention() time.Duration { return p.retention }

// Len returns the number of stored messages on the endpoint at url,
// visible or not.
func (p *MemoryProvider) Len(url string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, queue, err := p.lookupLocked(url)
	if err != nil {
		return 0
	}
	return len(queue.messages)
}

func (p *MemoryProvider) lookupLocked(url string) (string, *memoryQueue, error) {
	name, ok := nameFromURL(memoryScheme, url)
	if !ok {
		return "", nil, fmt.Errorf("%w: malformed url %q", ErrEndpointNotFound, url)
	}
	queue, ok := p.endpoints[name]
	if !ok {
		return "", nil, fmt.Errorf("%w: %s", ErrEndpointNotFound, name)
	}
	return name, queue, nil
}

// takeLocked discards expired messages, then claims the oldest visible
// one. When nothing is visible it returns the earliest time a hidden
// message becomes visible again, or zero if there is none.
func (q *memoryQueue) takeLocked(now time.Time, retention, visibility time.Duration) (*Message, time.Time) {
	kept := q.messages[:0]
	for _, stored := range q.messages {
		if now.Sub(stored.message.SentAt) < retention {
			kept = append(kept, stored)
		}
	}
	for index := len(kept); index < len(q.messages); index++ {
		q.messages[index] = nil
	}
	q.messages = kept

	var nextVisible time.Time
	for _, stored := range q.messages {
		if !stored.visibleAt.After(now) {
			stored.message.Receipt = uuid.NewString()
			stored.visibleAt = now.Add(visibility)
			delivered := stored.message
			delivered.Attributes = delivered.Attributes.Clone()
			return &delivered, time.Time{}
		}
		if nextVisible.IsZero() || stored.visibleAt.Before(nextVisible) {
			nextVisible = stored.visibleAt
		}
	}
	return nil, nextVisible
}

// clampWait bounds a single receive wait to [0, limit].
func clampWait(wait, limit time.Duration) time.Duration {
	if wait < 0 {
		return 0
	}
	if wait > limit {
		return limit
	}
	return wait
}
