// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package puppet

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bureau-foundation/puppet/lib/netutil"
	"github.com/bureau-foundation/puppet/lib/watchdog"
	"github.com/bureau-foundation/puppet/transport"
)

// Lifecycle is the coarse session state.
type Lifecycle int32

const (
	NotStarted Lifecycle = iota
	Starting
	Running
	Stopping
	Stopped
)

func (l Lifecycle) String() string {
	switch l {
	case NotStarted:
		return "not-started"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("Lifecycle(%d)", int32(l))
	}
}

// Lifecycle returns the current state.
func (p *Puppet) Lifecycle() Lifecycle { return Lifecycle(p.lifecycle.Load()) }

func (p *Puppet) setLifecycle(state Lifecycle) {
	previous := Lifecycle(p.lifecycle.Swap(int32(state)))
	p.logger.Debug("lifecycle", "from", previous, "to", state)
}

// Start loads session memory, dials the provider and starts reading
// frames. It returns once the session is running; frames are read on
// background goroutines. Returns ErrAlreadyStarted unless the puppet
// is NotStarted or Stopped.
func (p *Puppet) Start(ctx context.Context) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()
	return p.startLocked(ctx)
}

func (p *Puppet) startLocked(ctx context.Context) error {
	if state := p.Lifecycle(); state != NotStarted && state != Stopped {
		return fmt.Errorf("%w (%s)", ErrAlreadyStarted, state)
	}
	p.setLifecycle(Starting)
	p.state.SetOn(true)

	stream, err := p.open(ctx)
	if err != nil {
		p.setLifecycle(Stopped)
		p.state.SetOff(false)
		return err
	}

	p.session = newSession(stream)
	p.setLive(p.session)

	p.resetHandle = p.OnReset(func(event EventResetPayload) {
		p.resets.Push(event.Data)
	})
	if !p.manualWatchdog {
		p.feedHandle = p.OnHeartbeat(func(event EventHeartbeatPayload) {
			p.watchdog.Feed(watchdog.Food{Data: event.Data})
		})
		p.watchdog.Feed(watchdog.Food{Data: "start"})
	}

	p.session.run(p.readLoop)
	p.session.run(p.dispatch)

	p.setLifecycle(Running)
	p.state.SetOn(false)
	p.logger.Info("puppet started")
	return nil
}

func (p *Puppet) open(ctx context.Context) (transport.Stream, error) {
	if err := p.memory.Load(ctx); err != nil {
		return nil, fmt.Errorf("puppet: start: %w", err)
	}
	stream, err := p.dialer.Dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("puppet: dial provider: %w", err)
	}
	return stream, nil
}

// Stop ends the session: the reset handler is removed, the watchdog
// sleeps, the stream closes, and every session goroutine has exited
// before Stop returns. A logged-in identity is cleared with a logout
// event. Session memory is saved. Stopping a puppet that is not
// running does nothing.
func (p *Puppet) Stop(ctx context.Context) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()
	return p.stopLocked(ctx)
}

func (p *Puppet) stopLocked(ctx context.Context) error {
	if p.Lifecycle() != Running {
		return nil
	}
	p.setLifecycle(Stopping)
	p.state.SetOff(true)

	p.resetHandle.Cancel()
	p.feedHandle.Cancel()
	p.resetHandle, p.feedHandle = nil, nil
	p.watchdog.Sleep()

	p.setLive(nil)
	closeErr := p.session.stop()
	p.session = nil
	if netutil.IsExpectedCloseError(closeErr) || errors.Is(closeErr, transport.ErrClosed) {
		closeErr = nil
	}

	if payload, err := p.logout("puppet stopped"); err == nil {
		p.emit(EventLogout, payload)
	}

	var saveErr error
	if err := p.memory.Save(ctx); err != nil {
		saveErr = fmt.Errorf("puppet: stop: %w", err)
	}

	p.setLifecycle(Stopped)
	p.state.SetOff(false)
	p.logger.Info("puppet stopped")
	return errors.Join(closeErr, saveErr)
}

// Reset restarts the session. Failures are emitted as error events,
// never returned. The stop and the start happen under one hold of the
// lifecycle lock, and a puppet that is not running is left alone, so a
// reset that races a deliberate Stop either restarts a session that
// Stop then ends, or does nothing.
func (p *Puppet) Reset(ctx context.Context, reason string) {
	if p.closed.Load() {
		return
	}
	for _, err := range p.restart(ctx, reason) {
		p.emitError(fmt.Errorf("puppet: reset: %w", err))
	}
}

// restart reports failures for Reset to emit once the lifecycle lock
// is released.
func (p *Puppet) restart(ctx context.Context, reason string) []error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if state := p.Lifecycle(); state != Running {
		p.logger.Info("ignoring reset, puppet not running", "reason", reason, "lifecycle", state)
		return nil
	}

	p.logger.Warn("resetting puppet", "reason", reason)
	var failures []error
	if err := p.stopLocked(ctx); err != nil {
		failures = append(failures, err)
	}
	if err := p.startLocked(ctx); err != nil {
		failures = append(failures, err)
	}
	return failures
}

// Close stops the puppet for good: pending and future reset signals
// are ignored, any reset in progress is waited for, then the session
// is stopped.
func (p *Puppet) Close(ctx context.Context) error {
	p.resetMu.Lock()
	p.closed.Store(true)
	p.resetMu.Unlock()
	p.resetWorkers.Wait()
	return p.Stop(ctx)
}

// scheduleReset receives throttled reset signals. At most one reset
// runs at a time; a signal arriving while one runs is dropped.
func (p *Puppet) scheduleReset(reason string) {
	p.resetMu.Lock()
	defer p.resetMu.Unlock()
	if p.closed.Load() {
		return
	}
	if !p.resetting.CompareAndSwap(false, true) {
		p.logger.Debug("reset already in progress, dropping signal", "reason", reason)
		return
	}
	p.resetWorkers.Add(1)
	go func() {
		defer p.resetWorkers.Done()
		defer p.resetting.Store(false)
		p.Reset(context.Background(), reason)
	}()
}

// session is the per-connection state torn down by Stop.
type session struct {
	stream  transport.Stream
	ctx     context.Context
	cancel  context.CancelFunc
	mailbox mailbox
	group   sync.WaitGroup
}

func newSession(stream transport.Stream) *session {
	ctx, cancel := context.WithCancel(context.Background())
	return &session{
		stream:  stream,
		ctx:     ctx,
		cancel:  cancel,
		mailbox: mailbox{ready: make(chan struct{}, 1)},
	}
}

func (s *session) run(loop func(*session)) {
	s.group.Add(1)
	go func() {
		defer s.group.Done()
		loop(s)
	}()
}

// post queues an event for the dispatcher.
func (s *session) post(name string, payload any) {
	s.mailbox.post(queuedEvent{name: name, payload: payload})
}

func (s *session) stop() error {
	s.cancel()
	err := s.stream.Close()
	s.group.Wait()
	return err
}

type queuedEvent struct {
	name    string
	payload any
}

// mailbox is an unbounded FIFO between the read loop and the
// dispatcher, so a slow listener never holds up the next read.
type mailbox struct {
	mu    sync.Mutex
	queue []queuedEvent
	ready chan struct{}
}

func (m *mailbox) post(event queuedEvent) {
	m.mu.Lock()
	m.queue = append(m.queue, event)
	m.mu.Unlock()
	select {
	case m.ready <- struct{}{}:
	default:
	}
}

func (m *mailbox) drain() []queuedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	queue := m.queue
	m.queue = nil
	return queue
}

// dispatch emits queued events in order until the session ends.
func (p *Puppet) dispatch(s *session) {
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.mailbox.ready:
		}
		for _, event := range s.mailbox.drain() {
			if s.ctx.Err() != nil {
				return
			}
			p.emit(event.name, event.payload)
		}
	}
}
