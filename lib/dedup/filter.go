// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package dedup suppresses reprocessing of redelivered queue messages.
//
// A [Filter] remembers message identifiers for a fixed retention
// window. Queue backends deliver at least once, so the same message can
// surface again after its visibility timeout lapses; the window must
// therefore exceed the backend's redelivery horizon. Expired entries are
// pruned lazily from Seen and Remember. There is no background sweep.
package dedup

import (
	"sync"
	"time"

	"github.com/bureau-foundation/sera/lib/clock"
)

// Filter is a time-bounded set of message identifiers. It is safe for
// concurrent use.
type Filter struct {
	clock     clock.Clock
	retention time.Duration

	mu      sync.Mutex
	expires map[string]time.Time
	// nextPrune is the earliest time any entry can expire. Pruning is
	// skipped until then so that hot paths stay O(1).
	nextPrune time.Time
}

// New creates a Filter whose entries live for retention. A nil clock
// uses the real clock.
func New(retention time.Duration, c clock.Clock) *Filter {
	if c == nil {
		c = clock.Real()
	}
	return &Filter{
		clock:     c,
		retention: retention,
		expires:   make(map[string]time.Time),
	}
}

// Seen reports whether id was remembered and has not yet expired.
func (f *Filter) Seen(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.clock.Now()
	f.pruneLocked(now)
	expiry, ok := f.expires[id]
	return ok && now.Before(expiry)
}

// Remember records id for the retention window, refreshing the window
// if id was already present.
func (f *Filter) Remember(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.clock.Now()
	f.pruneLocked(now)
	expiry := now.Add(f.retention)
	f.expires[id] = expiry
	if f.nextPrune.IsZero() || expiry.Before(f.nextPrune) {
		f.nextPrune = expiry
	}
}

// Check atomically tests and records id. It returns true when id was
// already present, in which case the caller should drop the delivery.
// Callers that process messages concurrently must use Check rather
// than Seen followed by Remember.
func (f *Filter) Check(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.clock.Now()
	f.pruneLocked(now)
	if expiry, ok := f.expires[id]; ok && now.Before(expiry) {
		return true
	}
	expiry := now.Add(f.retention)
	f.expires[id] = expiry
	if f.nextPrune.IsZero() || expiry.Before(f.nextPrune) {
		f.nextPrune = expiry
	}
	return false
}

// Len returns the number of entries currently held, including any that
// have expired but not yet been pruned.
func (f *Filter) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.expires)
}

func (f *Filter) pruneLocked(now time.Time) {
	if f.nextPrune.IsZero() || now.Before(f.nextPrune) {
		return
	}
	var earliest time.Time
	for id, expiry := range f.expires {
		if !now.Before(expiry) {
			delete(f.expires, id)
			continue
		}
		if earliest.IsZero() || expiry.Before(earliest) {
			earliest = expiry
		}
	}
	f.nextPrune = earliest
}
