// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package puppet

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/bureau-foundation/puppet/lib/lru"
)

// payloadCache is the read-through layer for one entity kind. Values
// go in and come out as clones so a caller can never mutate what the
// cache holds.
type payloadCache[K comparable, V any] struct {
	kind   PayloadKind
	cache  *lru.Cache[K, V]
	flight singleflight.Group
	name   func(K) string
	clone  func(V) V

	// mu orders invalidations against fetch results. A fetch that
	// started before the latest invalidation does not store what it
	// got.
	mu         sync.Mutex
	generation uint64
	fetching   map[K]struct{}
}

func newPayloadCache[K comparable, V any](kind PayloadKind, capacity int, name func(K) string, clone func(V) V) *payloadCache[K, V] {
	return &payloadCache[K, V]{
		kind:     kind,
		cache:    lru.New[K, V](capacity),
		name:     name,
		clone:    clone,
		fetching: make(map[K]struct{}),
	}
}

// get returns the cached value for key, fetching it on a miss.
// Concurrent misses for one key share a single fetch, which runs
// under the context of the caller that started it.
func (c *payloadCache[K, V]) get(ctx context.Context, key K, fetch func(context.Context, K) (V, error)) (V, error) {
	if value, ok := c.cache.Get(key); ok {
		return c.clone(value), nil
	}

	result, err, _ := c.flight.Do(c.name(key), func() (any, error) {
		if value, ok := c.cache.Get(key); ok {
			return value, nil
		}
		generation := c.begin(key)
		value, err := fetch(ctx, key)
		c.finish(key, generation, value, err)
		if err != nil {
			return nil, err
		}
		return value, nil
	})
	if err != nil {
		var zero V
		return zero, fmt.Errorf("puppet: %s %s: %w", c.kind, c.name(key), err)
	}
	return c.clone(result.(V)), nil
}

func (c *payloadCache[K, V]) begin(key K) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetching[key] = struct{}{}
	return c.generation
}

func (c *payloadCache[K, V]) finish(key K, generation uint64, value V, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.fetching, key)
	if err != nil {
		return
	}
	if generation != c.generation {
		return
	}
	c.cache.Set(key, value)
}

func (c *payloadCache[K, V]) set(key K, value V) bool {
	return c.cache.Set(key, c.clone(value))
}

// dirty drops key. A fetch of key already running still answers its
// callers, but neither stores its result nor is joined by later ones.
func (c *payloadCache[K, V]) dirty(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.flight.Forget(c.name(key))
	return c.cache.Delete(key)
}

// dirtyWhere drops every key match accepts, cached or being fetched,
// and returns how many cached entries went.
func (c *payloadCache[K, V]) dirtyWhere(match func(K) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	for key := range c.fetching {
		if match(key) {
			c.flight.Forget(c.name(key))
		}
	}
	dropped := 0
	for _, key := range c.cache.Keys() {
		if match(key) && c.cache.Delete(key) {
			dropped++
		}
	}
	return dropped
}

func (c *payloadCache[K, V]) keys() []K { return c.cache.Keys() }

func (c *payloadCache[K, V]) purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	for key := range c.fetching {
		c.flight.Forget(c.name(key))
	}
	c.cache.Purge()
}

// payloadCaches holds one cache per entity kind.
type payloadCaches struct {
	contact        *payloadCache[string, ContactPayload]
	message        *payloadCache[string, MessagePayload]
	room           *payloadCache[string, RoomPayload]
	roomMember     *payloadCache[RoomMemberKey, RoomMemberPayload]
	friendship     *payloadCache[string, FriendshipPayload]
	roomInvitation *payloadCache[string, RoomInvitationPayload]
}

func plainID(id string) string { return id }

func newPayloadCaches(capacity int) payloadCaches {
	return payloadCaches{
		contact:        newPayloadCache(PayloadKindContact, capacity, plainID, ContactPayload.clone),
		message:        newPayloadCache(PayloadKindMessage, capacity, plainID, MessagePayload.clone),
		room:           newPayloadCache(PayloadKindRoom, capacity, plainID, RoomPayload.clone),
		roomMember:     newPayloadCache(PayloadKindRoomMember, capacity, RoomMemberKey.String, RoomMemberPayload.clone),
		friendship:     newPayloadCache(PayloadKindFriendship, capacity, plainID, FriendshipPayload.clone),
		roomInvitation: newPayloadCache(PayloadKindRoomInvitation, capacity, plainID, RoomInvitationPayload.clone),
	}
}

func (c payloadCaches) purge() {
	c.contact.purge()
	c.message.purge()
	c.room.purge()
	c.roomMember.purge()
	c.friendship.purge()
	c.roomInvitation.purge()
}

// ContactPayload returns the contact's snapshot, fetching it from the
// provider on a cache miss.
func (p *Puppet) ContactPayload(ctx context.Context, contactID string) (ContactPayload, error) {
	return p.caches.contact.get(ctx, contactID, func(ctx context.Context, id string) (ContactPayload, error) {
		raw, err := p.provider.ContactRawPayload(ctx, id)
		if err != nil {
			return ContactPayload{}, err
		}
		return p.provider.ContactRawPayloadParser(raw)
	})
}

// ContactPayloadDirty forgets the cached contact. It does not refetch.
func (p *Puppet) ContactPayloadDirty(contactID string) bool {
	return p.caches.contact.dirty(contactID)
}

// MessagePayload returns the message's snapshot, fetching it on a
// cache miss.
func (p *Puppet) MessagePayload(ctx context.Context, messageID string) (MessagePayload, error) {
	return p.caches.message.get(ctx, messageID, func(ctx context.Context, id string) (MessagePayload, error) {
		raw, err := p.provider.MessageRawPayload(ctx, id)
		if err != nil {
			return MessagePayload{}, err
		}
		return p.provider.MessageRawPayloadParser(raw)
	})
}

// MessagePayloadDirty forgets the cached message.
func (p *Puppet) MessagePayloadDirty(messageID string) bool {
	return p.caches.message.dirty(messageID)
}

// RoomPayload returns the room's snapshot, fetching it on a cache
// miss.
func (p *Puppet) RoomPayload(ctx context.Context, roomID string) (RoomPayload, error) {
	return p.caches.room.get(ctx, roomID, func(ctx context.Context, id string) (RoomPayload, error) {
		raw, err := p.provider.RoomRawPayload(ctx, id)
		if err != nil {
			return RoomPayload{}, err
		}
		return p.provider.RoomRawPayloadParser(raw)
	})
}

// RoomPayloadDirty forgets the cached room.
func (p *Puppet) RoomPayloadDirty(roomID string) bool {
	return p.caches.room.dirty(roomID)
}

// RoomMemberPayload returns how contactID appears in roomID, fetching
// it on a cache miss.
func (p *Puppet) RoomMemberPayload(ctx context.Context, roomID, contactID string) (RoomMemberPayload, error) {
	key := RoomMemberKey{RoomID: roomID, ContactID: contactID}
	return p.caches.roomMember.get(ctx, key, func(ctx context.Context, key RoomMemberKey) (RoomMemberPayload, error) {
		raw, err := p.provider.RoomMemberRawPayload(ctx, key.RoomID, key.ContactID)
		if err != nil {
			return RoomMemberPayload{}, err
		}
		return p.provider.RoomMemberRawPayloadParser(raw)
	})
}

// RoomMemberPayloadDirty forgets one cached room member.
func (p *Puppet) RoomMemberPayloadDirty(roomID, contactID string) bool {
	return p.caches.roomMember.dirty(RoomMemberKey{RoomID: roomID, ContactID: contactID})
}

// RoomMembersDirty forgets every cached member of roomID and returns
// how many were dropped.
func (p *Puppet) RoomMembersDirty(roomID string) int {
	return p.caches.roomMember.dirtyWhere(func(key RoomMemberKey) bool {
		return key.RoomID == roomID
	})
}

// FriendshipPayload returns the friendship's snapshot, fetching it on
// a cache miss.
func (p *Puppet) FriendshipPayload(ctx context.Context, friendshipID string) (FriendshipPayload, error) {
	return p.caches.friendship.get(ctx, friendshipID, func(ctx context.Context, id string) (FriendshipPayload, error) {
		raw, err := p.provider.FriendshipRawPayload(ctx, id)
		if err != nil {
			return FriendshipPayload{}, err
		}
		return p.provider.FriendshipRawPayloadParser(raw)
	})
}

// FriendshipPayloadDirty forgets the cached friendship.
func (p *Puppet) FriendshipPayloadDirty(friendshipID string) bool {
	return p.caches.friendship.dirty(friendshipID)
}

// SetFriendshipPayload stores a friendship snapshot the caller already
// holds, such as one returned by FriendshipSearch.
func (p *Puppet) SetFriendshipPayload(payload FriendshipPayload) {
	p.caches.friendship.set(payload.ID, payload)
}

// RoomInvitationPayload returns the invitation's snapshot, fetching it
// on a cache miss.
func (p *Puppet) RoomInvitationPayload(ctx context.Context, invitationID string) (RoomInvitationPayload, error) {
	return p.caches.roomInvitation.get(ctx, invitationID, func(ctx context.Context, id string) (RoomInvitationPayload, error) {
		raw, err := p.provider.RoomInvitationRawPayload(ctx, id)
		if err != nil {
			return RoomInvitationPayload{}, err
		}
		return p.provider.RoomInvitationRawPayloadParser(raw)
	})
}

// RoomInvitationPayloadDirty forgets the cached invitation.
func (p *Puppet) RoomInvitationPayloadDirty(invitationID string) bool {
	return p.caches.roomInvitation.dirty(invitationID)
}

// dirty applies a provider dirty event.
func (p *Puppet) dirty(event EventDirtyPayload) {
	switch event.PayloadKind {
	case PayloadKindContact:
		p.ContactPayloadDirty(event.PayloadID)
	case PayloadKindMessage:
		p.MessagePayloadDirty(event.PayloadID)
	case PayloadKindRoom:
		p.RoomPayloadDirty(event.PayloadID)
	case PayloadKindRoomMember:
		p.RoomMembersDirty(event.PayloadID)
	case PayloadKindFriendship:
		p.FriendshipPayloadDirty(event.PayloadID)
	case PayloadKindRoomInvitation:
		p.RoomInvitationPayloadDirty(event.PayloadID)
	default:
		p.logger.Warn("dirty event for unknown payload kind",
			"payload_kind", event.PayloadKind,
			"payload_id", event.PayloadID,
		)
		return
	}
	p.logger.Debug("payload dirtied", "payload_kind", event.PayloadKind, "payload_id", event.PayloadID)
}
