// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package puppet

import (
	"fmt"

	"github.com/bureau-foundation/puppet/transport"
)

// readLoop is the only reader of the stream and the only writer of
// state derived from inbound frames. It ends when the session is
// stopped or the stream fails; a failure becomes a reset event.
func (p *Puppet) readLoop(s *session) {
	for {
		envelope, err := s.stream.Receive(s.ctx)
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			p.logger.Warn("provider stream failed", "error", err)
			s.post(EventReset, EventResetPayload{Data: fmt.Sprintf("read loop: %v", err)})
			return
		}
		p.handleEnvelope(s, envelope)
	}
}

// handleEnvelope demultiplexes one frame. Any frame is proof of life,
// so everything but a heartbeat also queues a heartbeat, ahead of the
// frame's own event.
func (p *Puppet) handleEnvelope(s *session, envelope transport.Envelope) {
	if envelope.Kind != EventHeartbeat {
		s.post(EventHeartbeat, EventHeartbeatPayload{Data: envelope.Kind})
	}

	decode, ok := frameDecoders[envelope.Kind]
	if !ok {
		p.logger.Warn("dropping frame of unknown kind", "kind", envelope.Kind, "bytes", len(envelope.Payload))
		return
	}
	payload, err := decode(envelope.Payload)
	if err != nil {
		p.logger.Warn("dropping undecodable frame", "kind", envelope.Kind, "error", err)
		return
	}

	switch event := payload.(type) {
	case EventLoginPayload:
		login, err := p.login(event.ContactID)
		if err != nil {
			s.post(EventError, EventErrorPayload{Data: err.Error()})
			return
		}
		payload = login

	case EventLogoutPayload:
		logout, err := p.logout(event.Data)
		if err != nil {
			p.logger.Warn("provider logout without a login", "contact_id", event.ContactID)
			return
		}
		payload = logout

	case EventDirtyPayload:
		p.dirty(event)

	case EventRoomJoinPayload:
		p.RoomPayloadDirty(event.RoomID)
		for _, contactID := range event.InviteeIDs {
			p.RoomMemberPayloadDirty(event.RoomID, contactID)
		}

	case EventRoomLeavePayload:
		p.RoomPayloadDirty(event.RoomID)
		for _, contactID := range event.RemoveeIDs {
			p.RoomMemberPayloadDirty(event.RoomID, contactID)
		}

	case EventRoomTopicPayload:
		p.RoomPayloadDirty(event.RoomID)
	}

	s.post(envelope.Kind, payload)
}
