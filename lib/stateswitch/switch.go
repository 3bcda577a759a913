// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stateswitch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bureau-foundation/puppet/lib/eventchannel"
)

// Status answers "is the switch at this value?".
type Status int

const (
	// False: the switch is at the other value.
	False Status = iota
	// True: the switch is at this value and settled.
	True
	// Pending: the switch is moving to this value.
	Pending
)

func (s Status) String() string {
	switch s {
	case False:
		return "false"
	case True:
		return "true"
	case Pending:
		return "pending"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Target names the value Ready waits for.
type Target bool

const (
	On  Target = true
	Off Target = false
)

func (t Target) String() string {
	if t {
		return "on"
	}
	return "off"
}

// Event names emitted on transitions.
const (
	EventOn  = "on"
	EventOff = "off"
)

// ErrWouldCross is returned by Ready with noCross set when the switch
// is at the opposite value: reaching the target would need a transition
// that nobody has started.
var ErrWouldCross = errors.New("stateswitch: target requires crossing from the opposite state")

// Switch is the gate. Create with New.
type Switch struct {
	name   string
	logger *slog.Logger
	events eventchannel.Channel

	mu      sync.Mutex
	on      bool
	pending bool
	// becameOn is closed while the switch is settled On; becameOff
	// likewise for Off. The channel for the value not currently settled
	// is open and gets closed when that value settles.
	becameOn  chan struct{}
	becameOff chan struct{}
}

// New returns a switch settled Off. A nil logger uses slog.Default.
func New(name string, logger *slog.Logger) *Switch {
	if logger == nil {
		logger = slog.Default()
	}
	becameOff := make(chan struct{})
	close(becameOff)
	return &Switch{
		name:      name,
		logger:    logger,
		becameOn:  make(chan struct{}),
		becameOff: becameOff,
	}
}

// Name returns the name given to New.
func (s *Switch) Name() string { return s.name }

// SetOn moves the switch to On. With pending set the transition is
// recorded as in flight and On waiters keep waiting.
func (s *Switch) SetOn(pending bool) {
	s.mu.Lock()
	s.on = true
	s.pending = pending
	if isClosed(s.becameOff) {
		s.becameOff = make(chan struct{})
	}
	if !pending && !isClosed(s.becameOn) {
		close(s.becameOn)
	}
	status := statusOf(pending)
	s.mu.Unlock()

	s.logger.Debug("state switch on", "switch", s.name, "status", status)
	s.events.Emit(EventOn, status)
}

// SetOff moves the switch to Off. Mirror of SetOn.
func (s *Switch) SetOff(pending bool) {
	s.mu.Lock()
	s.on = false
	s.pending = pending
	if isClosed(s.becameOn) {
		s.becameOn = make(chan struct{})
	}
	if !pending && !isClosed(s.becameOff) {
		close(s.becameOff)
	}
	status := statusOf(pending)
	s.mu.Unlock()

	s.logger.Debug("state switch off", "switch", s.name, "status", status)
	s.events.Emit(EventOff, status)
}

// IsOn reports whether the switch is On: True when settled, Pending
// when moving to On, False when Off.
func (s *Switch) IsOn() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.on {
		return False
	}
	return statusOf(s.pending)
}

// IsOff mirrors IsOn.
func (s *Switch) IsOff() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.on {
		return False
	}
	return statusOf(s.pending)
}

// Ready blocks until target is settled. With noCross set it returns
// ErrWouldCross immediately when the switch is at the opposite value,
// pending or not, instead of waiting for a transition that may never
// start. Otherwise it waits until the target settles or ctx ends.
func (s *Switch) Ready(ctx context.Context, target Target, noCross bool) error {
	s.mu.Lock()
	atTarget := s.on == bool(target)
	waiter := s.becameOff
	if target == On {
		waiter = s.becameOn
	}
	s.mu.Unlock()

	if !atTarget && noCross {
		return fmt.Errorf("%s ready(%s): %w", s.name, target, ErrWouldCross)
	}

	select {
	case <-waiter:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%s ready(%s): %w", s.name, target, ctx.Err())
	}
}

// OnTransition subscribes to both transition events. The listener
// receives the target value and its Status.
func (s *Switch) OnTransition(listener func(Target, Status)) (onHandle, offHandle *eventchannel.Handle) {
	onHandle = s.events.On(EventOn, func(args ...any) { listener(On, args[0].(Status)) })
	offHandle = s.events.On(EventOff, func(args ...any) { listener(Off, args[0].(Status)) })
	return onHandle, offHandle
}

// Events exposes the underlying channel for "on" and "off".
func (s *Switch) Events() *eventchannel.Channel { return &s.events }

func statusOf(pending bool) Status {
	if pending {
		return Pending
	}
	return True
}

func isClosed(channel chan struct{}) bool {
	select {
	case <-channel:
		return true
	default:
		return false
	}
}
