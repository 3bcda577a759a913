// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package puppet_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bureau-foundation/puppet/lib/clock"
	"github.com/bureau-foundation/puppet/lib/stateswitch"
	"github.com/bureau-foundation/puppet/lib/testutil"
	"github.com/bureau-foundation/puppet/memory"
	"github.com/bureau-foundation/puppet/puppet"
	"github.com/bureau-foundation/puppet/puppet/puppettest"
	"github.com/bureau-foundation/puppet/transport"
)

const wait = 5 * time.Second

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func fixtures() puppettest.Fixtures {
	return puppettest.Fixtures{
		Contacts: map[string]puppet.ContactPayload{
			"c1": {ID: "c1", Name: "Alice", Alias: "boss", Handle: "alice"},
			"c2": {ID: "c2", Name: "Bob"},
		},
		Messages: map[string]puppet.MessagePayload{
			"m1":    {ID: "m1", Type: puppet.MessageTypeText, TalkerID: "c1", Text: "hello", Timestamp: epoch},
			"m-img": {ID: "m-img", Type: puppet.MessageTypeImage, TalkerID: "c1", Filename: "cat.png", Timestamp: epoch},
			"m-hist": {ID: "m-hist", Type: puppet.MessageTypeChatHistory, TalkerID: "c1", Timestamp: epoch},
			"m-card": {ID: "m-card", Type: puppet.MessageTypeContact, TalkerID: "c1", Timestamp: epoch},
			"m-url":  {ID: "m-url", Type: puppet.MessageTypeURL, TalkerID: "c1", Timestamp: epoch},
			"m-ding": {ID: "m-ding", Type: puppet.MessageTypeText, TalkerID: "c2", RoomID: "r1", Text: "ding", Timestamp: epoch},
		},
		Rooms: map[string]puppet.RoomPayload{
			"r1": {ID: "r1", Topic: "garden", MemberIDs: []string{"c1", "c2"}},
		},
		RoomMembers: map[puppet.RoomMemberKey]puppet.RoomMemberPayload{
			{RoomID: "r1", ContactID: "c1"}: {ID: "c1", Name: "Alice", RoomAlias: "al"},
			{RoomID: "r1", ContactID: "c2"}: {ID: "c2", Name: "Bob"},
		},
		Files:          map[string]puppet.FileBox{"m-img": {Name: "cat.png", Data: []byte{1, 2, 3}}},
		Links:          map[string]puppet.URLLinkPayload{"m-url": {Title: "Bureau", URL: "https://example.com"}},
		SharedContacts: map[string]string{"m-card": "c2"},
	}
}

type harness struct {
	puppet   *puppet.Puppet
	provider *puppettest.Provider
	dialer   *transport.PipeDialer
	clock    *clock.FakeClock
	stream   *transport.ServerStream
}

func newHarness(t *testing.T, configure func(*puppet.Options)) *harness {
	t.Helper()
	provider := puppettest.New(fixtures(), nil)
	dialer := provider.Pipe()
	fake := clock.Fake(epoch)

	options := puppet.Options{
		Name:            t.Name(),
		Dialer:          dialer,
		Clock:           fake,
		WatchdogTimeout: time.Minute,
		ResetThrottle:   time.Second,
	}
	if configure != nil {
		configure(&options)
	}
	p, err := puppet.New(options)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &harness{puppet: p, provider: provider, dialer: dialer, clock: fake}
}

// start starts the puppet and waits for the provider to see it.
func (h *harness) start(t *testing.T) {
	t.Helper()
	if err := h.puppet.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.stream = testutil.RequireReceive(t, h.provider.Connected(), wait, "waiting for provider connection")
	t.Cleanup(func() {
		h.puppet.Close(context.Background())
		h.dialer.Wait()
	})
}

func (h *harness) push(t *testing.T, kind string, payload any) {
	t.Helper()
	if err := puppettest.PushTo(context.Background(), h.stream, kind, payload); err != nil {
		t.Fatalf("push %s: %v", kind, err)
	}
}

// events returns a buffered channel fed by a typed subscription.
func events[T any](subscribe func(func(T)) any) <-chan T {
	channel := make(chan T, 64)
	subscribe(func(event T) { channel <- event })
	return channel
}

func onMessage(p *puppet.Puppet) <-chan puppet.EventMessagePayload {
	return events(func(listener func(puppet.EventMessagePayload)) any { return p.OnMessage(listener) })
}

func onHeartbeat(p *puppet.Puppet) <-chan puppet.EventHeartbeatPayload {
	return events(func(listener func(puppet.EventHeartbeatPayload)) any { return p.OnHeartbeat(listener) })
}

func onReset(p *puppet.Puppet) <-chan puppet.EventResetPayload {
	return events(func(listener func(puppet.EventResetPayload)) any { return p.OnReset(listener) })
}

func onError(p *puppet.Puppet) <-chan puppet.EventErrorPayload {
	return events(func(listener func(puppet.EventErrorPayload)) any { return p.OnError(listener) })
}

func onLogin(p *puppet.Puppet) <-chan puppet.EventLoginPayload {
	return events(func(listener func(puppet.EventLoginPayload)) any { return p.OnLogin(listener) })
}

func onLogout(p *puppet.Puppet) <-chan puppet.EventLogoutPayload {
	return events(func(listener func(puppet.EventLogoutPayload)) any { return p.OnLogout(listener) })
}

// awaitRestart waits for the provider to see a new connection and for
// the puppet to settle running again.
func (h *harness) awaitRestart(t *testing.T) {
	t.Helper()
	h.stream = testutil.RequireReceive(t, h.provider.Connected(), wait, "waiting for reconnection")
	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()
	if err := h.puppet.State().Ready(ctx, stateswitch.On, false); err != nil {
		t.Fatalf("Ready(On): %v", err)
	}
}

func TestHeartbeatFrameEmitsHeartbeat(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)
	heartbeats := onHeartbeat(h.puppet)

	h.push(t, puppet.EventHeartbeat, puppet.EventHeartbeatPayload{Data: "tick"})

	got := testutil.RequireReceive(t, heartbeats, wait, "waiting for heartbeat")
	if got.Data != "tick" {
		t.Fatalf("heartbeat data = %q, want tick", got.Data)
	}
}

func TestMessageFrameThenReadThrough(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)
	heartbeats := onHeartbeat(h.puppet)
	messages := onMessage(h.puppet)

	h.push(t, puppet.EventMessage, puppet.EventMessagePayload{MessageID: "m1"})

	beat := testutil.RequireReceive(t, heartbeats, wait, "waiting for synthesized heartbeat")
	if beat.Data != puppet.EventMessage {
		t.Fatalf("synthesized heartbeat data = %q, want message", beat.Data)
	}
	event := testutil.RequireReceive(t, messages, wait, "waiting for message event")
	if event.MessageID != "m1" {
		t.Fatalf("message id = %q, want m1", event.MessageID)
	}

	ctx := context.Background()
	first, err := h.puppet.MessagePayload(ctx, "m1")
	if err != nil {
		t.Fatalf("MessagePayload: %v", err)
	}
	second, err := h.puppet.MessagePayload(ctx, "m1")
	if err != nil {
		t.Fatalf("MessagePayload: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("second read = %+v, want %+v", second, first)
	}
	if first.Text != "hello" || !first.Timestamp.Equal(epoch) {
		t.Fatalf("payload = %+v", first)
	}
	if got := h.provider.CallCount(puppet.MethodMessagePayload); got != 1 {
		t.Fatalf("message.payload calls = %d, want 1", got)
	}

	h.puppet.MessagePayloadDirty("m1")
	if _, err := h.puppet.MessagePayload(ctx, "m1"); err != nil {
		t.Fatalf("MessagePayload: %v", err)
	}
	if got := h.provider.CallCount(puppet.MethodMessagePayload); got != 2 {
		t.Fatalf("message.payload calls after dirty = %d, want 2", got)
	}
}

func TestReadLoopFailureResetsOnce(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)
	resets := onReset(h.puppet)

	h.stream.Close()
	first := testutil.RequireReceive(t, resets, wait, "waiting for reset after stream failure")
	if first.Data == "" {
		t.Fatal("reset carries no error detail")
	}

	// A second report inside the throttle window must not restart
	// again.
	h.puppet.Events().Emit(puppet.EventReset, puppet.EventResetPayload{Data: "reported twice"})
	testutil.RequireReceive(t, resets, wait, "waiting for the injected reset")

	h.awaitRestart(t)
	if attempts := h.dialer.Attempts(); attempts != 2 {
		t.Fatalf("dial attempts = %d, want 2", attempts)
	}
	if state := h.puppet.Lifecycle(); state != puppet.Running {
		t.Fatalf("Lifecycle() = %s, want running", state)
	}
	testutil.RequireNoReceive(t, resets, "unexpected extra reset")
	testutil.RequireNoReceive(t, h.provider.Connected(), "unexpected third connection")
}

func TestResetFrameRestartsSession(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)

	h.push(t, puppet.EventReset, puppet.EventResetPayload{Data: "provider asked"})
	h.awaitRestart(t)

	// Outbound calls go over the new stream.
	if err := h.puppet.Ding(context.Background(), "after reset"); err != nil {
		t.Fatalf("Ding after reset: %v", err)
	}
}

// hookHandler runs hook whenever a record with message is logged.
type hookHandler struct {
	slog.Handler
	message string
	hook    func()
}

func (h hookHandler) Handle(ctx context.Context, record slog.Record) error {
	if record.Message == h.message {
		h.hook()
	}
	return h.Handler.Handle(ctx, record)
}

func (h hookHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return hookHandler{Handler: h.Handler.WithAttrs(attrs), message: h.message, hook: h.hook}
}

func (h hookHandler) WithGroup(name string) slog.Handler {
	return hookHandler{Handler: h.Handler.WithGroup(name), message: h.message, hook: h.hook}
}

func TestStopDuringResetLeavesPuppetStopped(t *testing.T) {
	var (
		target  *puppet.Puppet
		once    sync.Once
		stopped = make(chan error, 1)
	)
	// Once the reset is committed, an application Stop races it from
	// another goroutine.
	handler := hookHandler{
		Handler: slog.NewTextHandler(io.Discard, nil),
		message: "resetting puppet",
		hook: func() {
			once.Do(func() {
				go func() { stopped <- target.Stop(context.Background()) }()
			})
		},
	}
	h := newHarness(t, func(options *puppet.Options) {
		options.Logger = slog.New(handler)
	})
	target = h.puppet
	h.start(t)

	h.puppet.Reset(context.Background(), "racing an application stop")
	if err := testutil.RequireReceive(t, stopped, wait, "waiting for the application Stop"); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if state := h.puppet.Lifecycle(); state != puppet.Stopped {
		t.Fatalf("Lifecycle() after Stop = %s, want stopped", state)
	}
	if got := h.dialer.Attempts(); got != 2 {
		t.Fatalf("dial attempts = %d, want 2", got)
	}
}

func TestResetAfterStopDoesNothing(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)
	if err := h.puppet.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	h.puppet.Reset(context.Background(), "late signal")
	if state := h.puppet.Lifecycle(); state != puppet.Stopped {
		t.Fatalf("Lifecycle() = %s, want stopped", state)
	}
	if got := h.dialer.Attempts(); got != 1 {
		t.Fatalf("dial attempts = %d, want 1", got)
	}
}

func TestSessionTaskEndsWithStop(t *testing.T) {
	h := newHarness(t, nil)
	if h.puppet.Go(func(context.Context) {}) {
		t.Fatal("Go before Start = true, want false")
	}
	h.start(t)

	started := make(chan struct{})
	var finished atomic.Bool
	ok := h.puppet.Go(func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		finished.Store(true)
	})
	if !ok {
		t.Fatal("Go while running = false, want true")
	}
	testutil.RequireClosed(t, started, wait, "waiting for the session task")

	if err := h.puppet.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if !finished.Load() {
		t.Fatal("Stop returned before the session task did")
	}
	if h.puppet.Go(func(context.Context) {}) {
		t.Fatal("Go after Stop = true, want false")
	}
}

func TestResetFailureBecomesErrorEvent(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)
	errorEvents := onError(h.puppet)

	h.dialer.BeforeDial = func(attempt int) error {
		if attempt > 1 {
			return errors.New("provider unreachable")
		}
		return nil
	}
	h.stream.Close()

	event := testutil.RequireReceive(t, errorEvents, wait, "waiting for error event from failed restart")
	if event.Data == "" {
		t.Fatal("error event has no detail")
	}
	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()
	if err := h.puppet.State().Ready(ctx, stateswitch.Off, false); err != nil {
		t.Fatalf("Ready(Off): %v", err)
	}
	if state := h.puppet.Lifecycle(); state != puppet.Stopped {
		t.Fatalf("Lifecycle() = %s, want stopped", state)
	}
}

func TestWatchdogAutoFeed(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)
	heartbeats := onHeartbeat(h.puppet)
	resets := onReset(h.puppet)

	h.clock.Advance(30 * time.Second)
	h.push(t, puppet.EventHeartbeat, nil)
	testutil.RequireReceive(t, heartbeats, wait, "waiting for heartbeat")

	h.clock.Advance(45 * time.Second)
	testutil.RequireNoReceive(t, resets, "watchdog fired although a heartbeat fed it")

	h.clock.Advance(15 * time.Second)
	event := testutil.RequireReceive(t, resets, wait, "waiting for watchdog reset")
	if event.Data == "" {
		t.Fatal("watchdog reset has no detail")
	}
	h.awaitRestart(t)
}

func TestWatchdogManual(t *testing.T) {
	h := newHarness(t, func(options *puppet.Options) { options.ManualWatchdog = true })
	h.start(t)
	heartbeats := onHeartbeat(h.puppet)
	resets := onReset(h.puppet)

	h.push(t, puppet.EventHeartbeat, nil)
	testutil.RequireReceive(t, heartbeats, wait, "waiting for heartbeat")
	if left := h.puppet.Watchdog().Left(); left != 0 {
		t.Fatalf("watchdog armed by heartbeat with manual feeding: %v left", left)
	}

	h.clock.Advance(10 * time.Minute)
	testutil.RequireNoReceive(t, resets, "manual watchdog fired on its own")
	if attempts := h.dialer.Attempts(); attempts != 1 {
		t.Fatalf("dial attempts = %d, want 1", attempts)
	}
}

func TestLifecycleMisuse(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	if err := h.puppet.Stop(ctx); err != nil {
		t.Fatalf("Stop before Start = %v, want nil", err)
	}
	if err := h.puppet.Ding(ctx, "x"); !errors.Is(err, puppet.ErrNotRunning) {
		t.Fatalf("Ding before Start = %v, want ErrNotRunning", err)
	}

	h.start(t)
	if err := h.puppet.Start(ctx); !errors.Is(err, puppet.ErrAlreadyStarted) {
		t.Fatalf("second Start = %v, want ErrAlreadyStarted", err)
	}
	if err := h.puppet.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := h.puppet.Stop(ctx); err != nil {
		t.Fatalf("second Stop = %v, want nil", err)
	}
	if state := h.puppet.Lifecycle(); state != puppet.Stopped {
		t.Fatalf("Lifecycle() = %s, want stopped", state)
	}

	// A reset signal after a deliberate Stop does not revive it.
	h.puppet.Reset(ctx, "late")
	if state := h.puppet.Lifecycle(); state != puppet.Stopped {
		t.Fatalf("Lifecycle() after late reset = %s, want stopped", state)
	}

	if err := h.puppet.Start(ctx); err != nil {
		t.Fatalf("restart after Stop: %v", err)
	}
	testutil.RequireReceive(t, h.provider.Connected(), wait, "waiting for second connection")
}

func TestStartFailureLeavesStopped(t *testing.T) {
	h := newHarness(t, nil)
	h.dialer.BeforeDial = func(attempt int) error {
		if attempt == 1 {
			return errors.New("refused")
		}
		return nil
	}

	if err := h.puppet.Start(context.Background()); err == nil {
		t.Fatal("Start with failing dial = nil error")
	}
	if state := h.puppet.Lifecycle(); state != puppet.Stopped {
		t.Fatalf("Lifecycle() = %s, want stopped", state)
	}
	h.start(t)
}

func TestLoginLogoutFrames(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)
	logins := onLogin(h.puppet)
	logouts := onLogout(h.puppet)
	errorEvents := onError(h.puppet)

	h.push(t, puppet.EventLogin, puppet.EventLoginPayload{ContactID: "c1"})
	if got := testutil.RequireReceive(t, logins, wait, "waiting for login"); got.ContactID != "c1" {
		t.Fatalf("login contact = %q, want c1", got.ContactID)
	}
	if h.puppet.SelfID() != "c1" {
		t.Fatalf("SelfID() = %q, want c1", h.puppet.SelfID())
	}

	h.push(t, puppet.EventLogin, puppet.EventLoginPayload{ContactID: "c2"})
	testutil.RequireReceive(t, errorEvents, wait, "waiting for error on double login")
	if h.puppet.SelfID() != "c1" {
		t.Fatalf("SelfID() after double login = %q, want c1", h.puppet.SelfID())
	}

	h.push(t, puppet.EventLogout, puppet.EventLogoutPayload{ContactID: "c1", Data: "kicked"})
	got := testutil.RequireReceive(t, logouts, wait, "waiting for logout")
	if got.ContactID != "c1" || got.Data != "kicked" {
		t.Fatalf("logout = %+v", got)
	}
	if h.puppet.LoggedIn() {
		t.Fatal("LoggedIn() after logout frame")
	}
}

func TestStopLogsOut(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)
	logouts := onLogout(h.puppet)
	if err := h.puppet.SetSelfID("c1"); err != nil {
		t.Fatalf("SetSelfID: %v", err)
	}

	if err := h.puppet.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	got := testutil.RequireReceive(t, logouts, wait, "waiting for logout on stop")
	if got.ContactID != "c1" {
		t.Fatalf("logout contact = %q, want c1", got.ContactID)
	}
}

func TestLogoutPurgesCaches(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)
	logins := onLogin(h.puppet)
	logouts := onLogout(h.puppet)
	ctx := context.Background()

	h.push(t, puppet.EventLogin, puppet.EventLoginPayload{ContactID: "c1"})
	testutil.RequireReceive(t, logins, wait, "waiting for login")
	if _, err := h.puppet.ContactPayload(ctx, "c2"); err != nil {
		t.Fatalf("ContactPayload: %v", err)
	}

	h.push(t, puppet.EventLogout, puppet.EventLogoutPayload{ContactID: "c1"})
	testutil.RequireReceive(t, logouts, wait, "waiting for logout")
	if _, err := h.puppet.ContactPayload(ctx, "c2"); err != nil {
		t.Fatalf("ContactPayload: %v", err)
	}
	if got := h.provider.CallCount(puppet.MethodContactPayload); got != 2 {
		t.Fatalf("contact.payload calls = %d, want 2 after logout", got)
	}
}

func TestSessionMemoryPersistsSelfID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.card")
	backend, err := memory.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer backend.Close()

	h := newHarness(t, func(options *puppet.Options) {
		options.Memory = memory.New(backend, memory.CompressionZstd, nil)
	})
	h.start(t)
	logins := onLogin(h.puppet)
	h.push(t, puppet.EventLogin, puppet.EventLoginPayload{ContactID: "c1"})
	testutil.RequireReceive(t, logins, wait, "waiting for login")
	if err := h.puppet.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	reloaded := memory.New(backend, memory.CompressionZstd, nil)
	if err := reloaded.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := reloaded.Card().GetString("puppet.self-id"); got != "c1" {
		t.Fatalf("saved self id = %q, want c1", got)
	}
}

func TestMalformedAndUnknownFramesDropped(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)
	heartbeats := onHeartbeat(h.puppet)
	messages := onMessage(h.puppet)

	h.push(t, "telepathy", []byte{0x01})
	h.push(t, puppet.EventMessage, []byte{0xff, 0x00})
	h.push(t, puppet.EventMessage, puppet.EventMessagePayload{MessageID: "m1"})

	if got := testutil.RequireReceive(t, heartbeats, wait, "heartbeat for unknown kind"); got.Data != "telepathy" {
		t.Fatalf("first heartbeat data = %q, want telepathy", got.Data)
	}
	event := testutil.RequireReceive(t, messages, wait, "waiting for the valid message")
	if event.MessageID != "m1" {
		t.Fatalf("message id = %q, want m1", event.MessageID)
	}
	testutil.RequireNoReceive(t, messages, "malformed message frame was emitted")
}

func TestDirtyFrameInvalidates(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)
	dirties := events(func(listener func(puppet.EventDirtyPayload)) any { return h.puppet.OnDirty(listener) })
	ctx := context.Background()

	if _, err := h.puppet.ContactPayload(ctx, "c1"); err != nil {
		t.Fatalf("ContactPayload: %v", err)
	}
	h.provider.Update(func(world *puppettest.Fixtures) {
		contact := world.Contacts["c1"]
		contact.Name = "Alice Renamed"
		world.Contacts["c1"] = contact
	})

	h.push(t, puppet.EventDirty, puppet.EventDirtyPayload{PayloadKind: puppet.PayloadKindContact, PayloadID: "c1"})
	testutil.RequireReceive(t, dirties, wait, "waiting for dirty event")

	contact, err := h.puppet.ContactPayload(ctx, "c1")
	if err != nil {
		t.Fatalf("ContactPayload: %v", err)
	}
	if contact.Name != "Alice Renamed" {
		t.Fatalf("name after dirty = %q, want Alice Renamed", contact.Name)
	}
	if got := h.provider.CallCount(puppet.MethodContactPayload); got != 2 {
		t.Fatalf("contact.payload calls = %d, want 2", got)
	}
}

func TestRoomLeaveInvalidatesRoomAndMembers(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)
	leaves := events(func(listener func(puppet.EventRoomLeavePayload)) any { return h.puppet.OnRoomLeave(listener) })
	ctx := context.Background()

	h.puppet.RoomPayload(ctx, "r1")
	h.puppet.RoomMemberPayload(ctx, "r1", "c2")
	h.push(t, puppet.EventRoomLeave, puppet.EventRoomLeavePayload{RoomID: "r1", RemoveeIDs: []string{"c2"}, Timestamp: epoch})
	testutil.RequireReceive(t, leaves, wait, "waiting for room-leave")

	h.puppet.RoomPayload(ctx, "r1")
	h.puppet.RoomMemberPayload(ctx, "r1", "c2")
	if got := h.provider.CallCount(puppet.MethodRoomPayload); got != 2 {
		t.Errorf("room.payload calls = %d, want 2", got)
	}
	if got := h.provider.CallCount(puppet.MethodRoomMemberPayload); got != 2 {
		t.Errorf("room.member.payload calls = %d, want 2", got)
	}
}

func TestDingDong(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)
	dongs := events(func(listener func(puppet.EventDongPayload)) any { return h.puppet.OnDong(listener) })

	if err := h.puppet.Ding(context.Background(), "ping-1"); err != nil {
		t.Fatalf("Ding: %v", err)
	}
	if got := testutil.RequireReceive(t, dongs, wait, "waiting for dong"); got.Data != "ping-1" {
		t.Fatalf("dong data = %q, want ping-1", got.Data)
	}
}

func TestRemoteErrorSurfaces(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)
	h.provider.Fail(puppet.MethodRoomAdd, "room is full")

	err := h.puppet.RoomAdd(context.Background(), "r1", "c9")
	var remote *puppet.RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("RoomAdd error = %v, want *RemoteError", err)
	}
	if remote.Method != puppet.MethodRoomAdd || remote.Message != "room is full" {
		t.Fatalf("remote error = %+v", remote)
	}
}
