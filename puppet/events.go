// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package puppet

import (
	"fmt"
	"time"

	"github.com/bureau-foundation/puppet/lib/codec"
	"github.com/bureau-foundation/puppet/lib/eventchannel"
)

// Event names. Provider frames use the same strings as their kind.
const (
	EventDirty      = "dirty"
	EventDong       = "dong"
	EventError      = "error"
	EventFriendship = "friendship"
	EventHeartbeat  = "heartbeat"
	EventLogin      = "login"
	EventLogout     = "logout"
	EventMessage    = "message"
	EventReady      = "ready"
	EventReset      = "reset"
	EventRoomInvite = "room-invite"
	EventRoomJoin   = "room-join"
	EventRoomLeave  = "room-leave"
	EventRoomTopic  = "room-topic"
	EventScan       = "scan"
)

// EventNames lists every event the puppet emits, sorted.
var EventNames = []string{
	EventDirty, EventDong, EventError, EventFriendship, EventHeartbeat,
	EventLogin, EventLogout, EventMessage, EventReady, EventReset,
	EventRoomInvite, EventRoomJoin, EventRoomLeave, EventRoomTopic, EventScan,
}

// PayloadKind names a cache for dirty events.
type PayloadKind int

const (
	PayloadKindUnknown PayloadKind = iota
	PayloadKindMessage
	PayloadKindContact
	PayloadKindRoom
	PayloadKindRoomMember
	PayloadKindFriendship
	PayloadKindRoomInvitation
)

func (k PayloadKind) String() string {
	switch k {
	case PayloadKindMessage:
		return "message"
	case PayloadKindContact:
		return "contact"
	case PayloadKindRoom:
		return "room"
	case PayloadKindRoomMember:
		return "room-member"
	case PayloadKindFriendship:
		return "friendship"
	case PayloadKindRoomInvitation:
		return "room-invitation"
	default:
		return fmt.Sprintf("PayloadKind(%d)", int(k))
	}
}

// EventDirtyPayload asks the puppet to forget a cached payload. For
// PayloadKindRoomMember, PayloadID is the room id and every cached
// member of that room is forgotten.
type EventDirtyPayload struct {
	PayloadKind PayloadKind `cbor:"payload_kind"`
	PayloadID   string      `cbor:"payload_id"`
}

// EventDongPayload answers a Ding.
type EventDongPayload struct {
	Data string `cbor:"data,omitempty"`
}

// EventErrorPayload reports a failure that was not returned to a
// caller: a provider-side error frame, a failed reset, a panicking
// listener.
type EventErrorPayload struct {
	Data string `cbor:"data"`
}

// EventFriendshipPayload announces a friendship request or change.
type EventFriendshipPayload struct {
	FriendshipID string `cbor:"friendship_id"`
}

// EventHeartbeatPayload is a liveness signal. Data names the source.
type EventHeartbeatPayload struct {
	Data string `cbor:"data,omitempty"`
}

// EventLoginPayload carries the contact id that logged in.
type EventLoginPayload struct {
	ContactID string `cbor:"contact_id"`
}

// EventLogoutPayload carries the contact id that logged out.
type EventLogoutPayload struct {
	ContactID string `cbor:"contact_id"`
	Data      string `cbor:"data,omitempty"`
}

// EventMessagePayload announces a new message.
type EventMessagePayload struct {
	MessageID string `cbor:"message_id"`
}

// EventReadyPayload means the provider has finished its initial sync.
type EventReadyPayload struct {
	Data string `cbor:"data,omitempty"`
}

// EventResetPayload asks for the session to be torn down and
// restarted.
type EventResetPayload struct {
	Data string `cbor:"data"`
}

// EventRoomInvitePayload announces an invitation to a room.
type EventRoomInvitePayload struct {
	RoomInvitationID string `cbor:"room_invitation_id"`
}

// EventRoomJoinPayload announces contacts joining a room.
type EventRoomJoinPayload struct {
	RoomID     string    `cbor:"room_id"`
	InviteeIDs []string  `cbor:"invitee_ids"`
	InviterID  string    `cbor:"inviter_id,omitempty"`
	Timestamp  time.Time `cbor:"timestamp"`
}

// EventRoomLeavePayload announces contacts leaving a room.
type EventRoomLeavePayload struct {
	RoomID     string    `cbor:"room_id"`
	RemoveeIDs []string  `cbor:"removee_ids"`
	RemoverID  string    `cbor:"remover_id,omitempty"`
	Timestamp  time.Time `cbor:"timestamp"`
}

// EventRoomTopicPayload announces a topic change.
type EventRoomTopicPayload struct {
	RoomID    string    `cbor:"room_id"`
	ChangerID string    `cbor:"changer_id,omitempty"`
	NewTopic  string    `cbor:"new_topic"`
	OldTopic  string    `cbor:"old_topic,omitempty"`
	Timestamp time.Time `cbor:"timestamp"`
}

// ScanStatus is the state of a login QR code.
type ScanStatus int

const (
	ScanStatusUnknown ScanStatus = iota
	ScanStatusCancel
	ScanStatusWaiting
	ScanStatusScanned
	ScanStatusConfirmed
	ScanStatusTimeout
)

func (s ScanStatus) String() string {
	switch s {
	case ScanStatusCancel:
		return "cancel"
	case ScanStatusWaiting:
		return "waiting"
	case ScanStatusScanned:
		return "scanned"
	case ScanStatusConfirmed:
		return "confirmed"
	case ScanStatusTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// EventScanPayload carries a login QR code and its status.
type EventScanPayload struct {
	Status ScanStatus `cbor:"status"`
	QRCode string     `cbor:"qrcode,omitempty"`
	Data   string     `cbor:"data,omitempty"`
}

// frameDecoders parse envelope payloads by kind.
var frameDecoders = map[string]func([]byte) (any, error){
	EventDirty:      decodeAs[EventDirtyPayload],
	EventDong:       decodeAs[EventDongPayload],
	EventError:      decodeAs[EventErrorPayload],
	EventFriendship: decodeAs[EventFriendshipPayload],
	EventHeartbeat:  decodeAs[EventHeartbeatPayload],
	EventLogin:      decodeAs[EventLoginPayload],
	EventLogout:     decodeAs[EventLogoutPayload],
	EventMessage:    decodeAs[EventMessagePayload],
	EventReady:      decodeAs[EventReadyPayload],
	EventReset:      decodeAs[EventResetPayload],
	EventRoomInvite: decodeAs[EventRoomInvitePayload],
	EventRoomJoin:   decodeAs[EventRoomJoinPayload],
	EventRoomLeave:  decodeAs[EventRoomLeavePayload],
	EventRoomTopic:  decodeAs[EventRoomTopicPayload],
	EventScan:       decodeAs[EventScanPayload],
}

// decodeAs treats an empty payload as the zero value: several kinds
// carry nothing worth sending.
func decodeAs[T any](data []byte) (any, error) {
	var payload T
	if len(data) == 0 {
		return payload, nil
	}
	if err := codec.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// EncodeEvent builds the envelope payload for an event. Providers and
// test servers use it to produce frames the puppet decodes.
func EncodeEvent(payload any) ([]byte, error) {
	return codec.Marshal(payload)
}

// On subscribes a raw listener. Listeners receive exactly one
// argument, the event's typed payload.
func (p *Puppet) On(name string, listener eventchannel.Listener) *eventchannel.Handle {
	return p.events.On(name, listener)
}

// Once subscribes a raw one-shot listener.
func (p *Puppet) Once(name string, listener eventchannel.Listener) *eventchannel.Handle {
	return p.events.Once(name, listener)
}

// Events exposes the event table for listener inspection and removal.
func (p *Puppet) Events() *eventchannel.Channel { return &p.events }

func subscribe[T any](p *Puppet, name string, listener func(T)) *eventchannel.Handle {
	return p.events.On(name, func(args ...any) {
		if len(args) == 0 {
			return
		}
		if payload, ok := args[0].(T); ok {
			listener(payload)
		}
	})
}

func (p *Puppet) OnDirty(listener func(EventDirtyPayload)) *eventchannel.Handle {
	return subscribe(p, EventDirty, listener)
}

func (p *Puppet) OnDong(listener func(EventDongPayload)) *eventchannel.Handle {
	return subscribe(p, EventDong, listener)
}

func (p *Puppet) OnError(listener func(EventErrorPayload)) *eventchannel.Handle {
	return subscribe(p, EventError, listener)
}

func (p *Puppet) OnFriendship(listener func(EventFriendshipPayload)) *eventchannel.Handle {
	return subscribe(p, EventFriendship, listener)
}

func (p *Puppet) OnHeartbeat(listener func(EventHeartbeatPayload)) *eventchannel.Handle {
	return subscribe(p, EventHeartbeat, listener)
}

func (p *Puppet) OnLogin(listener func(EventLoginPayload)) *eventchannel.Handle {
	return subscribe(p, EventLogin, listener)
}

func (p *Puppet) OnLogout(listener func(EventLogoutPayload)) *eventchannel.Handle {
	return subscribe(p, EventLogout, listener)
}

func (p *Puppet) OnMessage(listener func(EventMessagePayload)) *eventchannel.Handle {
	return subscribe(p, EventMessage, listener)
}

func (p *Puppet) OnReady(listener func(EventReadyPayload)) *eventchannel.Handle {
	return subscribe(p, EventReady, listener)
}

func (p *Puppet) OnReset(listener func(EventResetPayload)) *eventchannel.Handle {
	return subscribe(p, EventReset, listener)
}

func (p *Puppet) OnRoomInvite(listener func(EventRoomInvitePayload)) *eventchannel.Handle {
	return subscribe(p, EventRoomInvite, listener)
}

func (p *Puppet) OnRoomJoin(listener func(EventRoomJoinPayload)) *eventchannel.Handle {
	return subscribe(p, EventRoomJoin, listener)
}

func (p *Puppet) OnRoomLeave(listener func(EventRoomLeavePayload)) *eventchannel.Handle {
	return subscribe(p, EventRoomLeave, listener)
}

func (p *Puppet) OnRoomTopic(listener func(EventRoomTopicPayload)) *eventchannel.Handle {
	return subscribe(p, EventRoomTopic, listener)
}

func (p *Puppet) OnScan(listener func(EventScanPayload)) *eventchannel.Handle {
	return subscribe(p, EventScan, listener)
}

// emit delivers an event synchronously on the calling goroutine.
func (p *Puppet) emit(name string, payload any) {
	p.events.Emit(name, payload)
}

// listenerPanicked reports a panicking listener as an error event; the
// listeners after it still receive the event. A panic inside an error
// listener is only logged.
func (p *Puppet) listenerPanicked(name string, recovered any) {
	p.logger.Error("event listener panicked", "event", name, "panic", recovered)
	if name != EventError {
		p.emit(EventError, EventErrorPayload{Data: fmt.Sprintf("listener for %s panicked: %v", name, recovered)})
	}
}

func (p *Puppet) emitError(err error) {
	p.logger.Warn("puppet error", "error", err)
	p.emit(EventError, EventErrorPayload{Data: err.Error()})
}
