// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/puppet/lib/clock"
	"github.com/bureau-foundation/puppet/lib/codec"
	"github.com/bureau-foundation/puppet/puppet"
	"github.com/bureau-foundation/puppet/puppet/puppettest"
	"github.com/bureau-foundation/puppet/transport"
)

func TestLoadWorld(t *testing.T) {
	path := filepath.Join(t.TempDir(), "world.yaml")
	content := `
self: c-self
contacts:
  - {id: c-self, name: Puppet}
  - {id: c-alice, name: Alice, alias: boss, phone: ["+1555"]}
rooms:
  - {id: r-garden, topic: Garden, member_ids: [c-self, c-alice]}
room_members:
  - {room_id: r-garden, member: {id: c-alice, name: Alice, room_alias: al}}
messages:
  - {id: m-1, type: 7, talker_id: c-alice, room_id: r-garden, text: ding, timestamp: 2026-01-01T00:00:00Z}
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing fixtures: %v", err)
	}

	loaded, err := loadWorld(path)
	if err != nil {
		t.Fatalf("loadWorld: %v", err)
	}
	if loaded.Self != "c-self" {
		t.Errorf("Self = %q, want c-self", loaded.Self)
	}
	alice := loaded.Fixtures.Contacts["c-alice"]
	if alice.Alias != "boss" || len(alice.Phone) != 1 {
		t.Errorf("alice = %+v", alice)
	}
	member := loaded.Fixtures.RoomMembers[puppet.RoomMemberKey{RoomID: "r-garden", ContactID: "c-alice"}]
	if member.RoomAlias != "al" {
		t.Errorf("room member = %+v", member)
	}
	message := loaded.Fixtures.Messages["m-1"]
	if message.Type != puppet.MessageTypeText || message.Text != "ding" {
		t.Errorf("message = %+v", message)
	}
	if !message.Timestamp.Equal(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("message timestamp = %v", message.Timestamp)
	}
	if ids := loaded.messageIDs(); len(ids) != 1 || ids[0] != "m-1" {
		t.Errorf("messageIDs() = %v", ids)
	}
}

func TestLoadWorldRejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"no self", "contacts: [{id: a, name: A}]", "self is required"},
		{"unknown self", "self: ghost\ncontacts: [{id: a, name: A}]", "not a listed contact"},
		{"duplicate", "self: a\ncontacts: [{id: a, name: A}, {id: a, name: B}]", "repeats id"},
		{"missing id", "self: a\ncontacts: [{id: a, name: A}, {name: B}]", "has no id"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "world.yaml")
			if err := os.WriteFile(path, []byte(test.content), 0o644); err != nil {
				t.Fatalf("writing fixtures: %v", err)
			}
			_, err := loadWorld(path)
			if err == nil || !strings.Contains(err.Error(), test.wantErr) {
				t.Fatalf("loadWorld() = %v, want error containing %q", err, test.wantErr)
			}
		})
	}
}

func receive(t *testing.T, stream transport.Stream, kind string, payload any) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	envelope, err := stream.Receive(ctx)
	if err != nil {
		t.Fatalf("waiting for %s: %v", kind, err)
	}
	if envelope.Kind != kind {
		t.Fatalf("event kind = %q, want %q", envelope.Kind, kind)
	}
	if payload != nil {
		if err := codec.Unmarshal(envelope.Payload, payload); err != nil {
			t.Fatalf("decoding %s: %v", kind, err)
		}
	}
}

func TestScriptedLogin(t *testing.T) {
	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	defaults := defaultWorld()
	provider := puppettest.New(defaults.Fixtures, nil)
	dialer := provider.Pipe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	options := scriptOptions{
		Self:      defaults.Self,
		Heartbeat: 15 * time.Second,
		ScanDelay: 2 * time.Second,
		Replay:    time.Minute,
		Messages:  defaults.messageIDs(),
	}
	go runScripts(ctx, provider, fake, options, slog.Default())

	stream, err := dialer.Dial(ctx)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer func() {
		stream.Close()
		dialer.Wait()
	}()

	var scan puppet.EventScanPayload
	receive(t, stream, puppet.EventScan, &scan)
	if scan.Status != puppet.ScanStatusWaiting || !strings.HasPrefix(scan.QRCode, "puppet-mock://login/") {
		t.Fatalf("first scan = %+v", scan)
	}

	fake.WaitForTimers(1)
	fake.Advance(2 * time.Second)
	receive(t, stream, puppet.EventScan, &scan)
	if scan.Status != puppet.ScanStatusConfirmed {
		t.Fatalf("second scan status = %s, want confirmed", scan.Status)
	}
	var login puppet.EventLoginPayload
	receive(t, stream, puppet.EventLogin, &login)
	if login.ContactID != "c-self" {
		t.Fatalf("login contact = %q, want c-self", login.ContactID)
	}
	receive(t, stream, puppet.EventReady, nil)

	fake.WaitForTimers(2)
	fake.Advance(15 * time.Second)
	var beat puppet.EventHeartbeatPayload
	receive(t, stream, puppet.EventHeartbeat, &beat)
	if beat.Data != "beat-1" {
		t.Fatalf("heartbeat data = %q, want beat-1", beat.Data)
	}

	fake.Advance(45 * time.Second)
	// Heartbeats that came due meanwhile may arrive ahead of the replay.
	for range 5 {
		envelope, err := stream.Receive(ctx)
		if err != nil {
			t.Fatalf("Receive: %v", err)
		}
		if envelope.Kind != puppet.EventMessage {
			continue
		}
		var message puppet.EventMessagePayload
		if err := codec.Unmarshal(envelope.Payload, &message); err != nil {
			t.Fatalf("decoding message: %v", err)
		}
		if message.MessageID != options.Messages[0] {
			t.Fatalf("replayed message = %q, want %q", message.MessageID, options.Messages[0])
		}
		return
	}
	t.Fatal("no message replayed once the replay interval passed")
}
