// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"context"
	"time"

	"github.com/bureau-foundation/sera/lib/clock"
)

const (
	// DefaultBackoffStep is how much each retry's delay grows by.
	DefaultBackoffStep = time.Second

	// DefaultMaxBackoff caps the retry delay.
	DefaultMaxBackoff = 20 * time.Second
)

// backoff is a linear retry delay: 0, step, 2*step, ... up to max.
type backoff struct {
	clock clock.Clock
	step  time.Duration
	max   time.Duration
	next  time.Duration
}

func newBackoff(c clock.Clock, step, max time.Duration) *backoff {
	return &backoff{clock: c, step: step, max: max}
}

// wait sleeps for the current delay and grows it for the next call.
func (b *backoff) wait(ctx context.Context) error {
	delay := b.next
	b.next = min(b.next+b.step, b.max)
	if delay <= 0 {
		return ctx.Err()
	}
	timer := b.clock.NewTimer(delay)
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	}
}

func (b *backoff) reset() {
	b.next = 0
}
