// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package eventchannel

import (
	"reflect"
	"slices"
	"sort"
	"sync"
)

// Listener receives the arguments passed to Emit.
type Listener func(args ...any)

// Channel is a table of named subscriptions. The zero value is ready
// to use. A Channel must not be copied after first use.
type Channel struct {
	// PanicHandler, when set before first use, receives the event name
	// and the recovered value of a panicking listener, and the
	// remaining listeners still run. Nil lets the panic leave Emit.
	PanicHandler func(name string, recovered any)

	mu        sync.Mutex
	listeners map[string][]*registration
	nextID    uint64
}

type registration struct {
	id       uint64
	listener Listener
	identity uintptr
	once     bool
}

// Handle identifies one registration.
type Handle struct {
	channel *Channel
	name    string
	id      uint64
}

// Cancel removes the registration the handle was returned for. It
// reports whether the registration was still present. Cancelling a nil
// handle is a no-op.
func (h *Handle) Cancel() bool {
	if h == nil || h.channel == nil {
		return false
	}
	return h.channel.remove(h.name, func(r *registration) bool { return r.id == h.id })
}

// Name returns the event name the handle is registered under.
func (h *Handle) Name() string { return h.name }

// Subscribe registers listener for name. A once registration is
// removed the first time it is selected for invocation.
func (c *Channel) Subscribe(name string, listener Listener, once bool) *Handle {
	if listener == nil {
		panic("eventchannel: nil listener for " + name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.listeners == nil {
		c.listeners = make(map[string][]*registration)
	}
	c.nextID++
	c.listeners[name] = append(c.listeners[name], &registration{
		id:       c.nextID,
		listener: listener,
		identity: identityOf(listener),
		once:     once,
	})
	return &Handle{channel: c, name: name, id: c.nextID}
}

// On registers a persistent listener.
func (c *Channel) On(name string, listener Listener) *Handle {
	return c.Subscribe(name, listener, false)
}

// Once registers a one-shot listener.
func (c *Channel) Once(name string, listener Listener) *Handle {
	return c.Subscribe(name, listener, true)
}

// Unsubscribe removes the most recent registration of listener under
// name. It reports whether a registration was removed.
func (c *Channel) Unsubscribe(name string, listener Listener) bool {
	if listener == nil {
		return false
	}
	identity := identityOf(listener)

	c.mu.Lock()
	defer c.mu.Unlock()

	registrations := c.listeners[name]
	for index := len(registrations) - 1; index >= 0; index-- {
		if registrations[index].identity == identity {
			c.setLocked(name, slices.Delete(slices.Clone(registrations), index, index+1))
			return true
		}
	}
	return false
}

// Emit invokes every listener registered for name, in subscription
// order, with args. It returns false when no listener was registered.
func (c *Channel) Emit(name string, args ...any) bool {
	c.mu.Lock()
	registrations := c.listeners[name]
	if len(registrations) == 0 {
		c.mu.Unlock()
		return false
	}

	snapshot := slices.Clone(registrations)
	if slices.ContainsFunc(snapshot, func(r *registration) bool { return r.once }) {
		c.setLocked(name, slices.DeleteFunc(slices.Clone(registrations), func(r *registration) bool {
			return r.once
		}))
	}
	c.mu.Unlock()

	for _, r := range snapshot {
		c.invoke(name, r.listener, args)
	}
	return true
}

func (c *Channel) invoke(name string, listener Listener, args []any) {
	if c.PanicHandler != nil {
		defer func() {
			if recovered := recover(); recovered != nil {
				c.PanicHandler(name, recovered)
			}
		}()
	}
	listener(args...)
}

// ListenerCount returns the number of registrations for name,
// persistent and one-shot.
func (c *Channel) ListenerCount(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.listeners[name])
}

// Listeners returns the persistent listeners for name in subscription
// order.
func (c *Channel) Listeners(name string) []Listener {
	c.mu.Lock()
	defer c.mu.Unlock()

	var result []Listener
	for _, r := range c.listeners[name] {
		if !r.once {
			result = append(result, r.listener)
		}
	}
	return result
}

// RemoveAll drops every registration for the given names, or for all
// names when none are given.
func (c *Channel) RemoveAll(names ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(names) == 0 {
		c.listeners = nil
		return
	}
	for _, name := range names {
		delete(c.listeners, name)
	}
}

// EventNames returns the names with at least one registration, sorted.
func (c *Channel) EventNames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, 0, len(c.listeners))
	for name := range c.listeners {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *Channel) remove(name string, match func(*registration) bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	registrations := c.listeners[name]
	index := slices.IndexFunc(registrations, match)
	if index < 0 {
		return false
	}
	c.setLocked(name, slices.Delete(slices.Clone(registrations), index, index+1))
	return true
}

// setLocked stores a registration list, dropping the key when empty.
// Lists are never mutated in place: an Emit in progress may still be
// iterating the old one.
func (c *Channel) setLocked(name string, registrations []*registration) {
	if len(registrations) == 0 {
		delete(c.listeners, name)
		return
	}
	c.listeners[name] = registrations
}

func identityOf(listener Listener) uintptr {
	return reflect.ValueOf(listener).Pointer()
}
