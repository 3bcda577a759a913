// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package puppet_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/bureau-foundation/puppet/puppet"
)

func TestCallBeforeStart(t *testing.T) {
	h := newHarness(t, nil)

	if err := h.puppet.Ding(context.Background(), "early"); !errors.Is(err, puppet.ErrNotRunning) {
		t.Fatalf("Ding before Start = %v, want ErrNotRunning", err)
	}
}

func TestListOperations(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)
	ctx := context.Background()

	contacts, err := h.puppet.ContactList(ctx)
	if err != nil {
		t.Fatalf("ContactList: %v", err)
	}
	if want := []string{"c1", "c2"}; !reflect.DeepEqual(contacts, want) {
		t.Fatalf("ContactList = %v, want %v", contacts, want)
	}

	members, err := h.puppet.RoomMemberList(ctx, "r1")
	if err != nil {
		t.Fatalf("RoomMemberList: %v", err)
	}
	if want := []string{"c1", "c2"}; !reflect.DeepEqual(members, want) {
		t.Fatalf("RoomMemberList = %v, want %v", members, want)
	}
}

func TestRoomTopicDirtiesRoom(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)
	ctx := context.Background()

	if _, err := h.puppet.RoomPayload(ctx, "r1"); err != nil {
		t.Fatalf("RoomPayload: %v", err)
	}
	if err := h.puppet.RoomTopic(ctx, "r1", "orchard"); err != nil {
		t.Fatalf("RoomTopic: %v", err)
	}
	room, err := h.puppet.RoomPayload(ctx, "r1")
	if err != nil {
		t.Fatalf("RoomPayload: %v", err)
	}
	if room.Topic != "orchard" {
		t.Fatalf("topic = %q, want orchard", room.Topic)
	}
	if got := h.provider.CallCount(puppet.MethodRoomPayload); got != 2 {
		t.Fatalf("room.payload calls = %d, want 2", got)
	}
}

func TestContactAliasDirtiesContact(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)
	ctx := context.Background()

	h.puppet.ContactPayload(ctx, "c2")
	if err := h.puppet.ContactAlias(ctx, "c2", "bobby"); err != nil {
		t.Fatalf("ContactAlias: %v", err)
	}
	contact, err := h.puppet.ContactPayload(ctx, "c2")
	if err != nil {
		t.Fatalf("ContactPayload: %v", err)
	}
	if contact.Alias != "bobby" {
		t.Fatalf("alias = %q, want bobby", contact.Alias)
	}
}

func TestRoomCreateAndDel(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)
	ctx := context.Background()

	id, err := h.puppet.RoomCreate(ctx, []string{"c1", "c2"}, "new room")
	if err != nil {
		t.Fatalf("RoomCreate: %v", err)
	}
	if err := h.puppet.RoomDel(ctx, id, "c2"); err != nil {
		t.Fatalf("RoomDel: %v", err)
	}
	room, err := h.puppet.RoomPayload(ctx, id)
	if err != nil {
		t.Fatalf("RoomPayload: %v", err)
	}
	if want := []string{"c1"}; !reflect.DeepEqual(room.MemberIDs, want) {
		t.Fatalf("members = %v, want %v", room.MemberIDs, want)
	}
}

func TestFriendshipSearchCaches(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)
	ctx := context.Background()

	friendship, err := h.puppet.FriendshipSearch(ctx, puppet.FriendshipSearchRequest{Handle: "alice"})
	if err != nil {
		t.Fatalf("FriendshipSearch: %v", err)
	}
	if friendship == nil || friendship.ContactID != "c1" {
		t.Fatalf("FriendshipSearch = %+v, want contact c1", friendship)
	}
	if _, err := h.puppet.FriendshipPayload(ctx, friendship.ID); err != nil {
		t.Fatalf("FriendshipPayload: %v", err)
	}
	if got := h.provider.CallCount(puppet.MethodFriendshipPayload); got != 0 {
		t.Fatalf("friendship.payload calls = %d, want 0", got)
	}

	none, err := h.puppet.FriendshipSearch(ctx, puppet.FriendshipSearchRequest{Phone: "000"})
	if err != nil {
		t.Fatalf("FriendshipSearch: %v", err)
	}
	if none != nil {
		t.Fatalf("FriendshipSearch for a stranger = %+v, want nil", none)
	}
}

func TestMessageRecallDirtiesMessage(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)
	ctx := context.Background()

	h.puppet.MessagePayload(ctx, "m1")
	if got := h.puppet.MessageList(); !reflect.DeepEqual(got, []string{"m1"}) {
		t.Fatalf("MessageList = %v, want [m1]", got)
	}
	recalled, err := h.puppet.MessageRecall(ctx, "m1")
	if err != nil {
		t.Fatalf("MessageRecall: %v", err)
	}
	if !recalled {
		t.Fatal("MessageRecall = false, want true")
	}
	if got := h.puppet.MessageList(); len(got) != 0 {
		t.Fatalf("MessageList after recall = %v, want empty", got)
	}
}
