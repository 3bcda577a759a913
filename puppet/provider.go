// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package puppet

import (
	"context"
	"fmt"

	"github.com/bureau-foundation/puppet/lib/codec"
)

// Provider is the provider-specific half of payload hydration: for
// each entity kind, fetch the raw snapshot and parse it. The puppet
// owns caching; a Provider never sees a cache hit.
type Provider interface {
	ContactRawPayload(ctx context.Context, contactID string) (RawPayload, error)
	ContactRawPayloadParser(raw RawPayload) (ContactPayload, error)

	MessageRawPayload(ctx context.Context, messageID string) (RawPayload, error)
	MessageRawPayloadParser(raw RawPayload) (MessagePayload, error)

	RoomRawPayload(ctx context.Context, roomID string) (RawPayload, error)
	RoomRawPayloadParser(raw RawPayload) (RoomPayload, error)

	RoomMemberRawPayload(ctx context.Context, roomID, contactID string) (RawPayload, error)
	RoomMemberRawPayloadParser(raw RawPayload) (RoomMemberPayload, error)

	FriendshipRawPayload(ctx context.Context, friendshipID string) (RawPayload, error)
	FriendshipRawPayloadParser(raw RawPayload) (FriendshipPayload, error)

	RoomInvitationRawPayload(ctx context.Context, invitationID string) (RawPayload, error)
	RoomInvitationRawPayloadParser(raw RawPayload) (RoomInvitationPayload, error)
}

// Validator is implemented by providers that can check server-side
// whether a cached id still refers to a live entity.
type Validator interface {
	ContactValidate(ctx context.Context, contactID string) (bool, error)
	RoomValidate(ctx context.Context, roomID string) (bool, error)
}

// Caller issues one request to the provider and decodes its answer
// into response. A nil response discards the answer. *Puppet is a
// Caller over its live stream.
type Caller interface {
	Call(ctx context.Context, method string, request, response any) error
}

// Payload request methods served by the provider.
const (
	MethodContactPayload        = "contact.payload"
	MethodMessagePayload        = "message.payload"
	MethodRoomPayload           = "room.payload"
	MethodRoomMemberPayload     = "room.member.payload"
	MethodFriendshipPayload     = "friendship.payload"
	MethodRoomInvitationPayload = "room.invitation.payload"
)

// PayloadRequest asks for one entity snapshot. ContactID is only set
// for room members, where ID is the room.
type PayloadRequest struct {
	ID        string `cbor:"id"`
	ContactID string `cbor:"contact_id,omitempty"`
}

// RemoteProvider fetches payloads over a Caller with the payload
// methods above. Raw payloads are the provider's CBOR encoding of the
// payload structs.
type RemoteProvider struct {
	caller Caller
}

var _ Provider = (*RemoteProvider)(nil)

// NewRemoteProvider returns a provider that fetches through caller.
func NewRemoteProvider(caller Caller) *RemoteProvider {
	return &RemoteProvider{caller: caller}
}

func (r *RemoteProvider) fetch(ctx context.Context, method string, request PayloadRequest) (RawPayload, error) {
	var raw codec.RawMessage
	if err := r.caller.Call(ctx, method, request, &raw); err != nil {
		return nil, err
	}
	return RawPayload(raw), nil
}

func parseRaw[T any](kind string, raw RawPayload) (T, error) {
	var payload T
	if len(raw) == 0 {
		return payload, fmt.Errorf("puppet: empty %s payload", kind)
	}
	if err := codec.Unmarshal(raw, &payload); err != nil {
		return payload, fmt.Errorf("puppet: parsing %s payload: %w", kind, err)
	}
	return payload, nil
}

func (r *RemoteProvider) ContactRawPayload(ctx context.Context, contactID string) (RawPayload, error) {
	return r.fetch(ctx, MethodContactPayload, PayloadRequest{ID: contactID})
}

func (r *RemoteProvider) ContactRawPayloadParser(raw RawPayload) (ContactPayload, error) {
	return parseRaw[ContactPayload]("contact", raw)
}

func (r *RemoteProvider) MessageRawPayload(ctx context.Context, messageID string) (RawPayload, error) {
	return r.fetch(ctx, MethodMessagePayload, PayloadRequest{ID: messageID})
}

func (r *RemoteProvider) MessageRawPayloadParser(raw RawPayload) (MessagePayload, error) {
	return parseRaw[MessagePayload]("message", raw)
}

func (r *RemoteProvider) RoomRawPayload(ctx context.Context, roomID string) (RawPayload, error) {
	return r.fetch(ctx, MethodRoomPayload, PayloadRequest{ID: roomID})
}

func (r *RemoteProvider) RoomRawPayloadParser(raw RawPayload) (RoomPayload, error) {
	return parseRaw[RoomPayload]("room", raw)
}

func (r *RemoteProvider) RoomMemberRawPayload(ctx context.Context, roomID, contactID string) (RawPayload, error) {
	return r.fetch(ctx, MethodRoomMemberPayload, PayloadRequest{ID: roomID, ContactID: contactID})
}

func (r *RemoteProvider) RoomMemberRawPayloadParser(raw RawPayload) (RoomMemberPayload, error) {
	return parseRaw[RoomMemberPayload]("room member", raw)
}

func (r *RemoteProvider) FriendshipRawPayload(ctx context.Context, friendshipID string) (RawPayload, error) {
	return r.fetch(ctx, MethodFriendshipPayload, PayloadRequest{ID: friendshipID})
}

func (r *RemoteProvider) FriendshipRawPayloadParser(raw RawPayload) (FriendshipPayload, error) {
	return parseRaw[FriendshipPayload]("friendship", raw)
}

func (r *RemoteProvider) RoomInvitationRawPayload(ctx context.Context, invitationID string) (RawPayload, error) {
	return r.fetch(ctx, MethodRoomInvitationPayload, PayloadRequest{ID: invitationID})
}

func (r *RemoteProvider) RoomInvitationRawPayloadParser(raw RawPayload) (RoomInvitationPayload, error) {
	return parseRaw[RoomInvitationPayload]("room invitation", raw)
}
