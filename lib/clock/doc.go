// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock lets time-dependent code run against a fake clock in
// tests.
//
// Code that timestamps records or polls on an interval takes a [Clock]
// instead of calling time.Now or time.NewTicker. Binaries pass
// [Real]; tests pass [Fake] and move time with [FakeClock.Advance]:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go flusher.Run(ctx)       // registers a ticker on fake
//	fake.WaitForTimers(1)     // wait for the registration
//	fake.Advance(time.Second) // deliver the tick
//
// WaitForTimers closes the race between a goroutine registering a
// timer and the test advancing past it.
package clock
