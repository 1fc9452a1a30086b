// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"slices"
	"sync"
	"time"
)

// FakeClock is a Clock whose time moves only when Advance is called.
// It is safe for concurrent use.
type FakeClock struct {
	mu      sync.Mutex
	changed *sync.Cond
	now     time.Time
	pending []*waiter
}

// waiter is a pending After channel or ticker. period is zero for
// one-shot waiters.
type waiter struct {
	due     time.Time
	period  time.Duration
	channel chan time.Time
}

// Fake returns a FakeClock reading initial.
func Fake(initial time.Time) *FakeClock {
	c := &FakeClock{now: initial}
	c.changed = sync.NewCond(&c.mu)
	return c
}

// Now returns the fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// After returns a channel that receives once the clock has advanced by
// d.
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	channel := make(chan time.Time, 1)
	if d <= 0 {
		channel <- c.now
		return channel
	}
	c.register(&waiter{due: c.now.Add(d), channel: channel})
	return channel
}

// NewTicker returns a ticker firing every d of fake time.
func (c *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	w := &waiter{due: c.now.Add(d), period: d, channel: make(chan time.Time, 1)}
	c.register(w)
	return &Ticker{
		C: w.channel,
		stop: func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.pending = slices.DeleteFunc(c.pending, func(p *waiter) bool { return p == w })
		},
	}
}

// register must be called with c.mu held.
func (c *FakeClock) register(w *waiter) {
	c.pending = append(c.pending, w)
	c.changed.Broadcast()
}

// Advance moves the clock forward by d, delivering every expiry in the
// interval in due-time order. A ticker spanning several periods fires
// once per period; ticks that find the channel full are dropped.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	target := c.now.Add(d)
	for {
		next := c.earliest()
		if next == nil || next.due.After(target) {
			break
		}
		c.now = next.due
		select {
		case next.channel <- c.now:
		default:
		}
		if next.period > 0 {
			next.due = next.due.Add(next.period)
		} else {
			c.pending = slices.DeleteFunc(c.pending, func(p *waiter) bool { return p == next })
		}
	}
	c.now = target
}

// earliest returns the pending waiter due first. Ties go to the
// earlier registration. Must be called with c.mu held.
func (c *FakeClock) earliest() *waiter {
	var first *waiter
	for _, w := range c.pending {
		if first == nil || w.due.Before(first.due) {
			first = w
		}
	}
	return first
}

// WaitForTimers blocks until at least n waiters are pending.
func (c *FakeClock) WaitForTimers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.pending) < n {
		c.changed.Wait()
	}
}

// PendingCount returns the number of pending waiters.
func (c *FakeClock) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
