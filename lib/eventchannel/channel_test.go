// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package eventchannel

import (
	"slices"
	"sync"
	"sync/atomic"
	"testing"
)

func TestEmitWithoutListeners(t *testing.T) {
	var channel Channel
	if channel.Emit("nothing", 1, 2) {
		t.Fatal("Emit with no listeners returned true")
	}
}

func TestEmitOrderAndArguments(t *testing.T) {
	var channel Channel
	var calls []string

	channel.On("message", func(args ...any) { calls = append(calls, "first:"+args[0].(string)) })
	channel.On("message", func(args ...any) { calls = append(calls, "second:"+args[0].(string)) })
	channel.On("other", func(args ...any) { calls = append(calls, "other") })

	if !channel.Emit("message", "m1") {
		t.Fatal("Emit returned false with listeners registered")
	}

	want := []string{"first:m1", "second:m1"}
	if !slices.Equal(calls, want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
}

func TestOnceFiresOnce(t *testing.T) {
	var channel Channel
	count := 0
	channel.Once("ready", func(...any) { count++ })

	if got := channel.ListenerCount("ready"); got != 1 {
		t.Fatalf("ListenerCount before emit = %d, want 1", got)
	}
	channel.Emit("ready")
	channel.Emit("ready")

	if count != 1 {
		t.Fatalf("once listener invoked %d times, want 1", count)
	}
	if got := channel.ListenerCount("ready"); got != 0 {
		t.Fatalf("ListenerCount after emit = %d, want 0", got)
	}
}

func TestOnceUnderConcurrentEmit(t *testing.T) {
	var channel Channel
	var count atomic.Int32
	channel.Once("login", func(...any) { count.Add(1) })

	var waitGroup sync.WaitGroup
	for range 64 {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			channel.Emit("login")
		}()
	}
	waitGroup.Wait()

	if got := count.Load(); got != 1 {
		t.Fatalf("once listener invoked %d times under concurrent emit, want 1", got)
	}
}

func heartbeatListener(...any) {}

func TestUnsubscribeRemovesOneRegistration(t *testing.T) {
	var channel Channel
	channel.On("heartbeat", heartbeatListener)
	channel.On("heartbeat", heartbeatListener)

	if !channel.Unsubscribe("heartbeat", heartbeatListener) {
		t.Fatal("Unsubscribe returned false for a registered listener")
	}
	if got := channel.ListenerCount("heartbeat"); got != 1 {
		t.Fatalf("ListenerCount = %d, want 1", got)
	}
	if !channel.Unsubscribe("heartbeat", heartbeatListener) {
		t.Fatal("second Unsubscribe returned false")
	}
	if channel.Unsubscribe("heartbeat", heartbeatListener) {
		t.Fatal("Unsubscribe with nothing registered returned true")
	}
}

func TestHandleCancel(t *testing.T) {
	var channel Channel
	var calls []int
	first := channel.On("scan", func(...any) { calls = append(calls, 1) })
	channel.On("scan", func(...any) { calls = append(calls, 2) })

	if !first.Cancel() {
		t.Fatal("Cancel returned false for a live registration")
	}
	if first.Cancel() {
		t.Fatal("second Cancel returned true")
	}
	channel.Emit("scan")

	if !slices.Equal(calls, []int{2}) {
		t.Fatalf("calls = %v, want [2]", calls)
	}

	var nilHandle *Handle
	if nilHandle.Cancel() {
		t.Fatal("nil handle Cancel returned true")
	}
}

func TestListenersExcludesOnce(t *testing.T) {
	var channel Channel
	channel.On("dong", func(...any) {})
	channel.Once("dong", func(...any) {})

	if got := len(channel.Listeners("dong")); got != 1 {
		t.Fatalf("len(Listeners) = %d, want 1", got)
	}
	if got := channel.ListenerCount("dong"); got != 2 {
		t.Fatalf("ListenerCount = %d, want 2", got)
	}
}

func TestRemoveAll(t *testing.T) {
	var channel Channel
	channel.On("a", func(...any) {})
	channel.On("b", func(...any) {})
	channel.On("c", func(...any) {})

	channel.RemoveAll("a")
	if names := channel.EventNames(); !slices.Equal(names, []string{"b", "c"}) {
		t.Fatalf("EventNames = %v, want [b c]", names)
	}

	channel.RemoveAll()
	if names := channel.EventNames(); len(names) != 0 {
		t.Fatalf("EventNames after RemoveAll() = %v, want none", names)
	}
}

func TestSubscribeDuringEmit(t *testing.T) {
	var channel Channel
	lateCalls := 0
	channel.On("room-join", func(...any) {
		channel.On("room-join", func(...any) { lateCalls++ })
	})

	channel.Emit("room-join")
	if lateCalls != 0 {
		t.Fatalf("listener added during emit ran in the same emit")
	}
	channel.Emit("room-join")
	if lateCalls != 1 {
		t.Fatalf("lateCalls = %d, want 1", lateCalls)
	}
}

func TestSelfUnsubscribeDuringEmit(t *testing.T) {
	var channel Channel
	var handle *Handle
	calls := 0
	handle = channel.On("logout", func(...any) {
		calls++
		handle.Cancel()
	})

	channel.Emit("logout")
	channel.Emit("logout")
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestConcurrentRegistrationAndEmit(t *testing.T) {
	var channel Channel
	var waitGroup sync.WaitGroup
	for range 16 {
		waitGroup.Add(2)
		go func() {
			defer waitGroup.Done()
			for range 100 {
				handle := channel.On("message", func(...any) {})
				handle.Cancel()
			}
		}()
		go func() {
			defer waitGroup.Done()
			for range 100 {
				channel.Emit("message", "payload")
			}
		}()
	}
	waitGroup.Wait()

	if got := channel.ListenerCount("message"); got != 0 {
		t.Fatalf("ListenerCount = %d, want 0", got)
	}
}

func TestPanicHandlerKeepsLaterListeners(t *testing.T) {
	var recovered []any
	channel := Channel{PanicHandler: func(name string, value any) {
		if name != "message" {
			t.Errorf("panic handler name = %q, want message", name)
		}
		recovered = append(recovered, value)
	}}
	var calls []string
	channel.On("message", func(...any) { calls = append(calls, "first") })
	channel.On("message", func(...any) { panic("boom") })
	channel.On("message", func(...any) { calls = append(calls, "third") })

	channel.Emit("message")

	if want := []string{"first", "third"}; !slices.Equal(calls, want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
	if len(recovered) != 1 || recovered[0] != "boom" {
		t.Fatalf("recovered = %v, want [boom]", recovered)
	}
}

func TestPanicWithoutHandlerLeavesEmit(t *testing.T) {
	var channel Channel
	channel.On("message", func(...any) { panic("boom") })

	defer func() {
		if recover() == nil {
			t.Fatal("Emit swallowed a listener panic without a PanicHandler")
		}
	}()
	channel.Emit("message")
}
