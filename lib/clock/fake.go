// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"slices"
	"sync"
	"time"
)

// FakeClock is a Clock whose time only moves when Advance is called.
// Safe for concurrent use.
//
// AfterFunc callbacks run synchronously inside Advance. A callback may
// register new timers or stop existing ones, but must not call Advance
// or Sleep.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	pending []*pendingTimer
	changed *sync.Cond
}

type pendingTimer struct {
	deadline time.Time
	interval time.Duration // non-zero for tickers
	channel  chan time.Time
	callback func()
	done     bool // stopped, or a one-shot that already fired
}

// Fake returns a FakeClock frozen at start.
func Fake(start time.Time) *FakeClock {
	c := &FakeClock{now: start}
	c.changed = sync.NewCond(&c.mu)
	return c
}

// Now returns the frozen time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// After registers a one-shot channel timer.
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	channel := make(chan time.Time, 1)
	if d <= 0 {
		channel <- c.now
		return channel
	}
	c.addLocked(&pendingTimer{deadline: c.now.Add(d), channel: channel})
	return channel
}

// AfterFunc registers a callback timer. A non-positive d runs f before
// AfterFunc returns.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) *Timer {
	if d <= 0 {
		f()
		return &Timer{stop: func() bool { return false }}
	}

	c.mu.Lock()
	timer := &pendingTimer{deadline: c.now.Add(d), callback: f}
	c.addLocked(timer)
	c.mu.Unlock()

	return &Timer{stop: func() bool { return c.cancel(timer) }}
}

// NewTicker registers a repeating channel timer.
func (c *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: NewTicker requires a positive interval")
	}

	c.mu.Lock()
	channel := make(chan time.Time, 1)
	timer := &pendingTimer{deadline: c.now.Add(d), interval: d, channel: channel}
	c.addLocked(timer)
	c.mu.Unlock()

	return &Ticker{C: channel, stop: func() { c.cancel(timer) }}
}

// Sleep blocks until another goroutine advances the clock past d.
func (c *FakeClock) Sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	<-c.After(d)
}

// Advance moves time forward by d and fires everything that came due,
// earliest deadline first. Tickers spanning several intervals fire once
// per interval; ticks that find the channel full are dropped.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	target := c.now
	c.mu.Unlock()

	for {
		timer, ok := c.popDue(target)
		if !ok {
			return
		}
		if timer.callback != nil {
			timer.callback()
			continue
		}
		select {
		case timer.channel <- target:
		default:
		}
	}
}

// WaitForTimers blocks until at least n timers are pending.
func (c *FakeClock) WaitForTimers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.liveLocked() < n {
		c.changed.Wait()
	}
}

// PendingCount returns the number of timers that have neither fired
// nor been stopped.
func (c *FakeClock) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.liveLocked()
}

func (c *FakeClock) addLocked(timer *pendingTimer) {
	c.pending = append(c.pending, timer)
	c.changed.Broadcast()
}

func (c *FakeClock) cancel(timer *pendingTimer) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if timer.done {
		return false
	}
	timer.done = true
	c.pending = slices.DeleteFunc(c.pending, func(candidate *pendingTimer) bool {
		return candidate == timer
	})
	return true
}

// popDue removes and returns the earliest timer due at or before
// target. Tickers are rescheduled one interval later instead of being
// removed.
func (c *FakeClock) popDue(target time.Time) (*pendingTimer, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	earliest := -1
	for index, timer := range c.pending {
		if timer.deadline.After(target) {
			continue
		}
		if earliest < 0 || timer.deadline.Before(c.pending[earliest].deadline) {
			earliest = index
		}
	}
	if earliest < 0 {
		return nil, false
	}

	timer := c.pending[earliest]
	if timer.interval > 0 {
		timer.deadline = timer.deadline.Add(timer.interval)
		return timer, true
	}
	timer.done = true
	c.pending = slices.Delete(c.pending, earliest, earliest+1)
	return timer, true
}

func (c *FakeClock) liveLocked() int {
	return len(c.pending)
}
