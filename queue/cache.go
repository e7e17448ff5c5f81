// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package queue

import (
	"context"
	"sync"
	"time"

	"github.com/bureau-foundation/sera/lib/clock"
)

// DefaultEndpointTTL is how long CachedProvider trusts a resolved URL.
const DefaultEndpointTTL = time.Hour

// CachedProvider wraps a Provider with a cache of name to URL
// resolutions. Only successful lookups are cached: a missing endpoint
// is asked about again on every call, since a watcher polls for its
// endpoint to appear.
type CachedProvider struct {
	Provider

	clock clock.Clock
	ttl   time.Duration

	mu      sync.Mutex
	entries map[string]cachedEndpoint
}

type cachedEndpoint struct {
	url     string
	expires time.Time
}

// NewCached wraps inner. A non-positive ttl uses DefaultEndpointTTL.
func NewCached(inner Provider, ttl time.Duration, c clock.Clock) *CachedProvider {
	if ttl <= 0 {
		ttl = DefaultEndpointTTL
	}
	if c == nil {
		c = clock.Real()
	}
	return &CachedProvider{
		Provider: inner,
		clock:    c,
		ttl:      ttl,
		entries:  make(map[string]cachedEndpoint),
	}
}

func (p *CachedProvider) GetEndpoint(ctx context.Context, name string) (string, error) {
	if url, ok := p.lookup(name); ok {
		return url, nil
	}
	url, err := p.Provider.GetEndpoint(ctx, name)
	if err != nil {
		return "", err
	}
	p.store(name, url)
	return url, nil
}

func (p *CachedProvider) CreateEndpoint(ctx context.Context, name string) (string, error) {
	url, err := p.Provider.CreateEndpoint(ctx, name)
	if err != nil {
		return "", err
	}
	p.store(name, url)
	return url, nil
}

func (p *CachedProvider) DeleteEndpoint(ctx context.Context, url string) error {
	p.mu.Lock()
	for name, entry := range p.entries {
		if entry.url == url {
			delete(p.entries, name)
		}
	}
	p.mu.Unlock()
	return p.Provider.DeleteEndpoint(ctx, url)
}

func (p *CachedProvider) lookup(name string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	entry, ok := p.entries[name]
	if !ok {
		return "", false
	}
	if !p.clock.Now().Before(entry.expires) {
		delete(p.entries, name)
		return "", false
	}
	return entry.url, true
}

func (p *CachedProvider) store(name, url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries[name] = cachedEndpoint{url: url, expires: p.clock.Now().Add(p.ttl)}
}
