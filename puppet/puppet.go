// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package puppet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/puppet/lib/clock"
	"github.com/bureau-foundation/puppet/lib/eventchannel"
	"github.com/bureau-foundation/puppet/lib/lru"
	"github.com/bureau-foundation/puppet/lib/stateswitch"
	"github.com/bureau-foundation/puppet/lib/throttle"
	"github.com/bureau-foundation/puppet/lib/watchdog"
	"github.com/bureau-foundation/puppet/memory"
	"github.com/bureau-foundation/puppet/transport"
)

// Defaults applied by New to zero Options fields.
const (
	DefaultWatchdogTimeout = time.Minute
	DefaultResetThrottle   = 5 * time.Second
)

// Options configures a Puppet. Dialer is required.
type Options struct {
	// Name labels log lines and the state switch. Defaults to "puppet".
	Name string

	// Dialer opens the provider stream on every Start.
	Dialer transport.Dialer

	// Provider hydrates payloads. Nil fetches them over the stream
	// with NewRemoteProvider.
	Provider Provider

	// Memory is loaded at Start and saved at Stop. Nil keeps nothing.
	Memory *memory.Memory

	Clock  clock.Clock
	Logger *slog.Logger

	// WatchdogTimeout is the liveness deadline: a session with no
	// heartbeat for this long is reset.
	WatchdogTimeout time.Duration

	// ManualWatchdog stops heartbeat events from feeding the watchdog.
	// Callers then feed it through Watchdog().
	ManualWatchdog bool

	// ResetThrottle is the quiet window that collapses a burst of
	// reset signals into one restart.
	ResetThrottle time.Duration

	// RequestTimeout bounds each outbound call. Zero leaves only the
	// caller's context.
	RequestTimeout time.Duration

	// CacheCapacity bounds each payload cache.
	CacheCapacity int

	// SearchBatch is how many payloads a search hydrates at once.
	SearchBatch int

	// Plugins are installed in order by New.
	Plugins []Plugin
}

// Puppet is one supervised provider session. Create with New.
type Puppet struct {
	name           string
	dialer         transport.Dialer
	provider       Provider
	memory         *memory.Memory
	clock          clock.Clock
	logger         *slog.Logger
	manualWatchdog bool
	requestTimeout time.Duration
	searchBatch    int

	events   eventchannel.Channel
	state    *stateswitch.Switch
	watchdog *watchdog.Watchdog
	resets   *throttle.Queue[string]
	caches   payloadCaches

	// lifecycleMu serializes Start, Stop and Reset, which holds it
	// across both halves. lifecycle is readable without it.
	lifecycleMu sync.Mutex
	lifecycle   atomic.Int32
	session     *session
	resetHandle *eventchannel.Handle
	feedHandle  *eventchannel.Handle

	// liveMu guards live, the session Call and Go use. Stop clears it
	// before waiting for the session's goroutines.
	liveMu sync.RWMutex
	live   *session

	identityMu sync.Mutex
	selfID     string

	// resetMu orders resetWorkers.Add against Close.
	resetMu      sync.Mutex
	resetting    atomic.Bool
	closed       atomic.Bool
	resetWorkers sync.WaitGroup
}

// New builds a stopped Puppet and installs its plugins.
func New(options Options) (*Puppet, error) {
	if options.Dialer == nil {
		return nil, errors.New("puppet: Options.Dialer is required")
	}
	if options.Name == "" {
		options.Name = "puppet"
	}
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	if options.WatchdogTimeout <= 0 {
		options.WatchdogTimeout = DefaultWatchdogTimeout
	}
	if options.ResetThrottle <= 0 {
		options.ResetThrottle = DefaultResetThrottle
	}
	if options.CacheCapacity <= 0 {
		options.CacheCapacity = lru.DefaultCapacity
	}
	if options.SearchBatch <= 0 {
		options.SearchBatch = DefaultSearchBatch
	}
	logger := options.Logger.With("puppet", options.Name)
	if options.Memory == nil {
		options.Memory = memory.New(nil, memory.CompressionNone, logger)
	}

	p := &Puppet{
		name:           options.Name,
		dialer:         options.Dialer,
		provider:       options.Provider,
		memory:         options.Memory,
		clock:          options.Clock,
		logger:         logger,
		manualWatchdog: options.ManualWatchdog,
		requestTimeout: options.RequestTimeout,
		searchBatch:    options.SearchBatch,
		state:          stateswitch.New(options.Name, logger),
		watchdog: watchdog.New(options.WatchdogTimeout,
			watchdog.WithClock(options.Clock),
			watchdog.WithLogger(logger),
			watchdog.WithName(options.Name),
		),
		resets: throttle.New[string](options.ResetThrottle, options.Clock),
		caches: newPayloadCaches(options.CacheCapacity),
	}
	if p.provider == nil {
		p.provider = NewRemoteProvider(p)
	}
	p.events.PanicHandler = p.listenerPanicked

	p.watchdog.OnReset(func(food watchdog.Food, timeout time.Duration) {
		p.logger.Warn("watchdog expired", "timeout", timeout, "last_food", food.Data)
		p.emit(EventReset, EventResetPayload{Data: fmt.Sprintf("watchdog expired after %s without a heartbeat", timeout)})
	})
	p.resets.Subscribe(p.scheduleReset)

	for index, plugin := range options.Plugins {
		if err := plugin(p); err != nil {
			return nil, fmt.Errorf("puppet: installing plugin %d: %w", index, err)
		}
	}
	return p, nil
}

// Name returns Options.Name.
func (p *Puppet) Name() string { return p.name }

// Logger returns the puppet's logger, for plugins.
func (p *Puppet) Logger() *slog.Logger { return p.logger }

// State is On while the session is running and Pending during Start
// and Stop.
func (p *Puppet) State() *stateswitch.Switch { return p.state }

// Watchdog returns the liveness watchdog, for callers that feed it
// themselves.
func (p *Puppet) Watchdog() *watchdog.Watchdog { return p.watchdog }

// Memory returns the session memory.
func (p *Puppet) Memory() *memory.Memory { return p.memory }

// ContactValidate asks the provider whether contactID is still live.
// Providers that cannot tell report every id valid.
func (p *Puppet) ContactValidate(ctx context.Context, contactID string) (bool, error) {
	if validator, ok := p.provider.(Validator); ok {
		return validator.ContactValidate(ctx, contactID)
	}
	return true, nil
}

// RoomValidate asks the provider whether roomID is still live.
func (p *Puppet) RoomValidate(ctx context.Context, roomID string) (bool, error) {
	if validator, ok := p.provider.(Validator); ok {
		return validator.RoomValidate(ctx, roomID)
	}
	return true, nil
}

func (p *Puppet) currentStream() transport.Stream {
	p.liveMu.RLock()
	defer p.liveMu.RUnlock()
	if p.live == nil {
		return nil
	}
	return p.live.stream
}

func (p *Puppet) setLive(s *session) {
	p.liveMu.Lock()
	p.live = s
	p.liveMu.Unlock()
}

// Go runs task on a goroutine owned by the running session. The
// task's context ends when the session stops, and Stop waits for the
// task to return. Go reports false, without running task, when no
// session is running.
func (p *Puppet) Go(task func(ctx context.Context)) bool {
	p.liveMu.RLock()
	defer p.liveMu.RUnlock()
	if p.live == nil {
		return false
	}
	p.live.run(func(s *session) { task(s.ctx) })
	return true
}
