// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package watchdog

import (
	"log/slog"
	"sync"
	"time"

	"github.com/bureau-foundation/puppet/lib/clock"
	"github.com/bureau-foundation/puppet/lib/eventchannel"
)

// Event names.
const (
	EventReset = "reset"
	EventSleep = "sleep"
)

// Food is one liveness signal.
type Food struct {
	// Data describes what produced the signal. Carried through to the
	// reset event for diagnostics.
	Data any

	// Timeout is how long the next countdown lasts. Zero or negative
	// selects the watchdog's default.
	Timeout time.Duration
}

// Watchdog is the monitor. Create with New.
type Watchdog struct {
	name           string
	defaultTimeout time.Duration
	clock          clock.Clock
	logger         *slog.Logger
	events         eventchannel.Channel

	mu       sync.Mutex
	timer    *clock.Timer
	deadline time.Time
	lastFood Food
	// generation identifies the live countdown. A callback from a
	// countdown that was stopped after it began firing sees a stale
	// generation and does nothing.
	generation uint64
}

// Option configures a Watchdog.
type Option func(*Watchdog)

// WithClock replaces the real clock.
func WithClock(c clock.Clock) Option {
	return func(w *Watchdog) { w.clock = c }
}

// WithLogger replaces slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watchdog) { w.logger = logger }
}

// WithName labels log lines.
func WithName(name string) Option {
	return func(w *Watchdog) { w.name = name }
}

// New returns a sleeping watchdog. defaultTimeout must be positive.
func New(defaultTimeout time.Duration, options ...Option) *Watchdog {
	if defaultTimeout <= 0 {
		panic("watchdog: default timeout must be positive")
	}
	w := &Watchdog{
		name:           "watchdog",
		defaultTimeout: defaultTimeout,
		clock:          clock.Real(),
		logger:         slog.Default(),
	}
	for _, option := range options {
		option(w)
	}
	return w
}

// Feed restarts the countdown with food. It returns how much time was
// left on the countdown it replaced, zero if none was running.
func (w *Watchdog) Feed(food Food) time.Duration {
	if food.Timeout <= 0 {
		food.Timeout = w.defaultTimeout
	}

	w.mu.Lock()
	left := w.leftLocked()
	w.stopLocked()
	w.lastFood = food
	w.startLocked(food.Timeout)
	w.mu.Unlock()

	w.logger.Debug("watchdog fed",
		"watchdog", w.name,
		"timeout", food.Timeout,
		"previous_left", left,
	)
	return left
}

// Left returns the time remaining before the current deadline, zero
// when the watchdog is asleep.
func (w *Watchdog) Left() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.leftLocked()
}

// Sleep stops the countdown without firing. Emits "sleep" only when a
// countdown was actually running.
func (w *Watchdog) Sleep() {
	w.mu.Lock()
	if w.timer == nil {
		w.mu.Unlock()
		return
	}
	w.stopLocked()
	food := w.lastFood
	w.mu.Unlock()

	w.logger.Debug("watchdog sleeping", "watchdog", w.name)
	w.events.Emit(EventSleep, food)
}

// OnReset subscribes to countdown expiry.
func (w *Watchdog) OnReset(listener func(food Food, timeout time.Duration)) *eventchannel.Handle {
	return w.events.On(EventReset, func(args ...any) {
		listener(args[0].(Food), args[1].(time.Duration))
	})
}

// OnSleep subscribes to Sleep.
func (w *Watchdog) OnSleep(listener func(lastFood Food)) *eventchannel.Handle {
	return w.events.On(EventSleep, func(args ...any) {
		listener(args[0].(Food))
	})
}

func (w *Watchdog) startLocked(timeout time.Duration) {
	if w.timer != nil {
		panic("watchdog: countdown already running for " + w.name)
	}
	w.generation++
	generation := w.generation
	w.deadline = w.clock.Now().Add(timeout)
	w.timer = w.clock.AfterFunc(timeout, func() { w.expire(generation) })
}

func (w *Watchdog) stopLocked() {
	if w.timer == nil {
		return
	}
	w.timer.Stop()
	w.timer = nil
	w.deadline = time.Time{}
}

func (w *Watchdog) leftLocked() time.Duration {
	if w.timer == nil {
		return 0
	}
	left := w.deadline.Sub(w.clock.Now())
	if left < 0 {
		return 0
	}
	return left
}

func (w *Watchdog) expire(generation uint64) {
	w.mu.Lock()
	if generation != w.generation || w.timer == nil {
		w.mu.Unlock()
		return
	}
	w.timer = nil
	w.deadline = time.Time{}
	food := w.lastFood
	w.mu.Unlock()

	w.logger.Warn("watchdog expired",
		"watchdog", w.name,
		"timeout", food.Timeout,
		"data", food.Data,
	)
	w.events.Emit(EventReset, food, food.Timeout)
}
