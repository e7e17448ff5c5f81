// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"context"
	"testing"
	"time"

	"github.com/bureau-foundation/sera/lib/clock"
	"github.com/bureau-foundation/sera/lib/identity"
	"github.com/bureau-foundation/sera/lib/testutil"
	"github.com/bureau-foundation/sera/lib/trust"
	"github.com/bureau-foundation/sera/queue"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// network is a memory queue on a fake clock shared by every party in a
// test.
type network struct {
	clock    *clock.FakeClock
	provider *queue.MemoryProvider
}

func newNetwork() *network {
	fake := clock.Fake(epoch)
	return &network{
		clock:    fake,
		provider: queue.NewMemory(queue.MemoryConfig{Namespace: "Test", Clock: fake}),
	}
}

func (n *network) options(t *testing.T) Options {
	return Options{Clock: n.clock, Logger: testutil.Logger(t)}
}

func newIdentity(t *testing.T) *identity.Identity {
	t.Helper()
	id, err := identity.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	t.Cleanup(func() { id.Close() })
	return id
}

func (n *network) master(t *testing.T, id *identity.Identity, watchers *trust.Cache) *Master {
	t.Helper()
	master, err := NewMaster(context.Background(), MasterConfig{
		Provider: n.provider,
		Identity: id,
		Watchers: watchers,
		Options:  n.options(t),
	})
	if err != nil {
		t.Fatalf("NewMaster: %v", err)
	}
	return master
}

func (n *network) watcher(t *testing.T, cfg WatcherConfig) *Watcher {
	t.Helper()
	cfg.Provider = n.provider
	if cfg.Name == "" {
		cfg.Name = "host1"
	}
	cfg.Options = n.options(t)
	watcher, err := NewWatcher(cfg)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	return watcher
}

// endpointLen returns the number of messages queued on the endpoint
// named name.
func (n *network) endpointLen(t *testing.T, name string) int {
	t.Helper()
	url, err := n.provider.GetEndpoint(context.Background(), name)
	if err != nil {
		t.Fatalf("GetEndpoint(%q): %v", name, err)
	}
	return n.provider.Len(url)
}

// runWatch starts w.Watch in a goroutine and returns a channel that
// receives its result.
func runWatch(ctx context.Context, w *Watcher) <-chan error {
	done := make(chan error, 1)
	go func() { done <- w.Watch(ctx) }()
	return done
}

// echoRegistry registers echo, which prints its args param, and a
// counter of how many times it ran.
func echoRegistry(calls *int) *Registry {
	registry := NewRegistry()
	registry.Register("echo", HandlerFunc(func(_ context.Context, params map[string]string) (Result, error) {
		*calls++
		return Result{Stdout: params["args"]}, nil
	}))
	return registry
}
