// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/puppet/lib/codec"
	"github.com/bureau-foundation/puppet/puppet"
	"github.com/bureau-foundation/puppet/puppet/puppettest"
)

// world is the mock's fixtures plus the contact every client logs in
// as.
type world struct {
	Self     string
	Fixtures puppettest.Fixtures
}

func (w world) messageIDs() []string {
	ids := make([]string, 0, len(w.Fixtures.Messages))
	for id := range w.Fixtures.Messages {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// worldFile is the fixture file layout. Records use the wire field
// names, so a payload in the file reads like one on the wire:
//
//	self: c-self
//	contacts:
//	  - {id: c-self, name: Puppet}
//	  - {id: c-alice, name: Alice, alias: boss}
//	rooms:
//	  - {id: r-garden, topic: Garden, member_ids: [c-self, c-alice]}
//	room_members:
//	  - {room_id: r-garden, member: {id: c-alice, name: Alice, room_alias: al}}
//	messages:
//	  - {id: m-1, type: 7, talker_id: c-alice, room_id: r-garden, text: ding, timestamp: 2026-01-01T00:00:00Z}
type worldFile struct {
	Self            string `yaml:"self"`
	Contacts        []any  `yaml:"contacts"`
	Messages        []any  `yaml:"messages"`
	Rooms           []any  `yaml:"rooms"`
	RoomMembers     []any  `yaml:"room_members"`
	Friendships     []any  `yaml:"friendships"`
	RoomInvitations []any  `yaml:"room_invitations"`
}

type roomMemberRecord struct {
	RoomID string                   `cbor:"room_id"`
	Member puppet.RoomMemberPayload `cbor:"member"`
}

func loadWorld(path string) (world, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return world{}, fmt.Errorf("reading fixtures: %w", err)
	}
	var file worldFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return world{}, fmt.Errorf("parsing fixtures %s: %w", path, err)
	}
	return file.world()
}

func (f worldFile) world() (world, error) {
	var fixtures puppettest.Fixtures
	var err error

	if fixtures.Contacts, err = index(f.Contacts, "contacts", func(c puppet.ContactPayload) string { return c.ID }); err != nil {
		return world{}, err
	}
	if fixtures.Messages, err = index(f.Messages, "messages", func(m puppet.MessagePayload) string { return m.ID }); err != nil {
		return world{}, err
	}
	if fixtures.Rooms, err = index(f.Rooms, "rooms", func(r puppet.RoomPayload) string { return r.ID }); err != nil {
		return world{}, err
	}
	if fixtures.Friendships, err = index(f.Friendships, "friendships", func(r puppet.FriendshipPayload) string { return r.ID }); err != nil {
		return world{}, err
	}
	if fixtures.RoomInvitations, err = index(f.RoomInvitations, "room_invitations", func(r puppet.RoomInvitationPayload) string { return r.ID }); err != nil {
		return world{}, err
	}

	members, err := convert[roomMemberRecord](f.RoomMembers, "room_members")
	if err != nil {
		return world{}, err
	}
	fixtures.RoomMembers = make(map[puppet.RoomMemberKey]puppet.RoomMemberPayload, len(members))
	for _, record := range members {
		fixtures.RoomMembers[puppet.RoomMemberKey{RoomID: record.RoomID, ContactID: record.Member.ID}] = record.Member
	}

	if f.Self == "" {
		return world{}, fmt.Errorf("fixtures: self is required")
	}
	if _, ok := fixtures.Contacts[f.Self]; !ok {
		return world{}, fmt.Errorf("fixtures: self %q is not a listed contact", f.Self)
	}
	return world{Self: f.Self, Fixtures: fixtures}, nil
}

// convert re-encodes generic YAML records as CBOR and decodes them
// into T through its wire tags.
func convert[T any](records []any, section string) ([]T, error) {
	result := make([]T, 0, len(records))
	for position, record := range records {
		encoded, err := codec.Marshal(record)
		if err != nil {
			return nil, fmt.Errorf("fixtures: %s[%d]: %w", section, position, err)
		}
		var value T
		if err := codec.Unmarshal(encoded, &value); err != nil {
			return nil, fmt.Errorf("fixtures: %s[%d]: %w", section, position, err)
		}
		result = append(result, value)
	}
	return result, nil
}

func index[T any](records []any, section string, key func(T) string) (map[string]T, error) {
	values, err := convert[T](records, section)
	if err != nil {
		return nil, err
	}
	table := make(map[string]T, len(values))
	for position, value := range values {
		id := key(value)
		if id == "" {
			return nil, fmt.Errorf("fixtures: %s[%d] has no id", section, position)
		}
		if _, duplicate := table[id]; duplicate {
			return nil, fmt.Errorf("fixtures: %s[%d] repeats id %q", section, position, id)
		}
		table[id] = value
	}
	return table, nil
}

// defaultWorld is a small world with one room, enough for ding-dong
// and forwarding.
func defaultWorld() world {
	start := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	return world{
		Self: "c-self",
		Fixtures: puppettest.Fixtures{
			Contacts: map[string]puppet.ContactPayload{
				"c-self":  {ID: "c-self", Name: "Puppet", Type: puppet.ContactTypeIndividual},
				"c-alice": {ID: "c-alice", Name: "Alice", Alias: "boss", Handle: "alice", Friend: true, Type: puppet.ContactTypeIndividual},
				"c-bob":   {ID: "c-bob", Name: "Bob", Handle: "bob", Phone: []string{"+15550100"}, Type: puppet.ContactTypeIndividual},
			},
			Rooms: map[string]puppet.RoomPayload{
				"r-garden": {ID: "r-garden", Topic: "Garden", OwnerID: "c-alice", MemberIDs: []string{"c-self", "c-alice", "c-bob"}},
			},
			RoomMembers: map[puppet.RoomMemberKey]puppet.RoomMemberPayload{
				{RoomID: "r-garden", ContactID: "c-self"}:  {ID: "c-self", Name: "Puppet"},
				{RoomID: "r-garden", ContactID: "c-alice"}: {ID: "c-alice", Name: "Alice", RoomAlias: "al"},
				{RoomID: "r-garden", ContactID: "c-bob"}:   {ID: "c-bob", Name: "Bob", InviterID: "c-alice"},
			},
			Messages: map[string]puppet.MessagePayload{
				"m-hello": {ID: "m-hello", Type: puppet.MessageTypeText, TalkerID: "c-alice", ListenerID: "c-self", Text: "hello", Timestamp: start},
				"m-ding":  {ID: "m-ding", Type: puppet.MessageTypeText, TalkerID: "c-bob", RoomID: "r-garden", Text: "ding", Timestamp: start.Add(time.Minute)},
				"m-link":  {ID: "m-link", Type: puppet.MessageTypeURL, TalkerID: "c-alice", RoomID: "r-garden", Timestamp: start.Add(2 * time.Minute)},
			},
			Links: map[string]puppet.URLLinkPayload{
				"m-link": {Title: "Puppet", URL: "https://example.com/puppet"},
			},
		},
	}
}
