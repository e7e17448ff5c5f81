// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source for the protocol
// loops.
//
// Everything in sera that waits (the bounded receive poll, the
// endpoint backoff, the duplicate filter's expiry check, the session
// timeout) reads time through a [Clock] instead of the time package.
// Production code uses [Real]. Tests use [Fake], which only moves when
// [FakeClock.Advance] is called:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go loop.Run(ctx)           // loop blocks in c.After(...)
//	c.WaitForTimers(1)         // wait for the loop to register its wait
//	c.Advance(20 * time.Second)
//
// WaitForTimers removes the race between a goroutine registering a
// wait and the test advancing past it.
package clock
