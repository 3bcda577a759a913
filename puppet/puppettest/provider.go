// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package puppettest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/bureau-foundation/puppet/lib/codec"
	"github.com/bureau-foundation/puppet/puppet"
	"github.com/bureau-foundation/puppet/transport"
)

// Fixtures is the provider's world. Maps may be nil.
type Fixtures struct {
	Contacts        map[string]puppet.ContactPayload
	Messages        map[string]puppet.MessagePayload
	Rooms           map[string]puppet.RoomPayload
	RoomMembers     map[puppet.RoomMemberKey]puppet.RoomMemberPayload
	Friendships     map[string]puppet.FriendshipPayload
	RoomInvitations map[string]puppet.RoomInvitationPayload

	// Attachments of file-like messages, by message id.
	Files map[string]puppet.FileBox
	// Link cards of url messages, by message id.
	Links map[string]puppet.URLLinkPayload
	// Cards of mini-program messages, by message id.
	MiniPrograms map[string]puppet.MiniProgramPayload
	// Contact ids shared by contact-card messages, by message id.
	SharedContacts map[string]string
}

// Call is one request the provider answered.
type Call struct {
	Method  string
	Payload []byte
}

// Decode unmarshals the request body.
func (c Call) Decode(destination any) error {
	return codec.Unmarshal(c.Payload, destination)
}

// Provider is the fake. Create with New.
type Provider struct {
	server *transport.Server
	logger *slog.Logger

	mu        sync.Mutex
	fixtures  Fixtures
	calls     []Call
	failures  map[string]string
	stream    *transport.ServerStream
	connected chan *transport.ServerStream
	requests  chan Call
	nextID    int
}

// New returns a provider serving fixtures. A nil logger uses
// slog.Default.
func New(fixtures Fixtures, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Provider{
		logger:    logger,
		fixtures:  fixtures,
		failures:  make(map[string]string),
		connected: make(chan *transport.ServerStream, 16),
		requests:  make(chan Call, 256),
	}
	p.server = &transport.Server{
		Handler:   transport.HandlerFunc(p.serveRequest),
		OnConnect: p.onConnect,
		Logger:    logger,
	}
	return p
}

// Server returns the transport server, for listeners and HTTP.
func (p *Provider) Server() *transport.Server { return p.server }

// Pipe returns an in-process dialer connected to this provider.
func (p *Provider) Pipe() *transport.PipeDialer {
	return transport.Pipe(p.server, p.logger)
}

// Connected delivers each new client stream.
func (p *Provider) Connected() <-chan *transport.ServerStream { return p.connected }

// Requests delivers each request as it arrives. Requests beyond the
// channel's buffer are not delivered but are still recorded in Calls.
func (p *Provider) Requests() <-chan Call { return p.requests }

// Stream returns the most recently connected stream, or nil.
func (p *Provider) Stream() *transport.ServerStream {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stream
}

func (p *Provider) onConnect(ctx context.Context, stream *transport.ServerStream) {
	p.mu.Lock()
	p.stream = stream
	p.mu.Unlock()
	select {
	case p.connected <- stream:
	default:
		p.logger.Warn("connected channel full, dropping notification")
	}
}

// Push sends an event to the current stream. payload is encoded with
// puppet.EncodeEvent; a []byte is sent as is.
func (p *Provider) Push(ctx context.Context, kind string, payload any) error {
	stream := p.Stream()
	if stream == nil {
		return errors.New("puppettest: no client connected")
	}
	return PushTo(ctx, stream, kind, payload)
}

// PushTo sends an event to stream.
func PushTo(ctx context.Context, stream *transport.ServerStream, kind string, payload any) error {
	envelope := transport.Envelope{Kind: kind}
	switch value := payload.(type) {
	case nil:
	case []byte:
		envelope.Payload = value
	default:
		encoded, err := puppet.EncodeEvent(value)
		if err != nil {
			return fmt.Errorf("puppettest: encoding %s: %w", kind, err)
		}
		envelope.Payload = encoded
	}
	return stream.Push(ctx, envelope)
}

// Fail makes every request for method fail with message. An empty
// message clears the failure.
func (p *Provider) Fail(method, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if message == "" {
		delete(p.failures, method)
		return
	}
	p.failures[method] = message
}

// Calls returns the requests answered so far, or only those for
// method when one is given.
func (p *Provider) Calls(method string) []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	if method == "" {
		return slices.Clone(p.calls)
	}
	var result []Call
	for _, call := range p.calls {
		if call.Method == method {
			result = append(result, call)
		}
	}
	return result
}

// CallCount returns how many requests for method were answered.
func (p *Provider) CallCount(method string) int { return len(p.Calls(method)) }

// Update changes the fixtures under the provider's lock.
func (p *Provider) Update(change func(*Fixtures)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	change(&p.fixtures)
}

func (p *Provider) serveRequest(ctx context.Context, stream *transport.ServerStream, request transport.Request) ([]byte, error) {
	call := Call{Method: request.Method, Payload: request.Payload}
	p.mu.Lock()
	p.calls = append(p.calls, call)
	failure, failing := p.failures[request.Method]
	p.mu.Unlock()
	select {
	case p.requests <- call:
	default:
	}
	if failing {
		return nil, errors.New(failure)
	}

	response, err := p.answer(ctx, stream, request)
	if err != nil {
		return nil, err
	}
	if response == nil {
		return nil, nil
	}
	return codec.Marshal(response)
}

func (p *Provider) answer(ctx context.Context, stream *transport.ServerStream, request transport.Request) (any, error) {
	decode := func(destination any) error {
		if err := codec.Unmarshal(request.Payload, destination); err != nil {
			return fmt.Errorf("bad %s request: %w", request.Method, err)
		}
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	world := &p.fixtures

	switch request.Method {
	case puppet.MethodContactPayload:
		return lookup(decode, world.Contacts, "contact")
	case puppet.MethodMessagePayload:
		return lookup(decode, world.Messages, "message")
	case puppet.MethodRoomPayload:
		return lookup(decode, world.Rooms, "room")
	case puppet.MethodFriendshipPayload:
		return lookup(decode, world.Friendships, "friendship")
	case puppet.MethodRoomInvitationPayload:
		return lookup(decode, world.RoomInvitations, "room invitation")
	case puppet.MethodRoomMemberPayload:
		var body puppet.PayloadRequest
		if err := decode(&body); err != nil {
			return nil, err
		}
		member, ok := world.RoomMembers[puppet.RoomMemberKey{RoomID: body.ID, ContactID: body.ContactID}]
		if !ok {
			return nil, fmt.Errorf("room member %s/%s not found", body.ID, body.ContactID)
		}
		return member, nil

	case puppet.MethodContactList:
		return puppet.IDListResponse{IDs: slices.Sorted(maps.Keys(world.Contacts))}, nil
	case puppet.MethodRoomList:
		return puppet.IDListResponse{IDs: slices.Sorted(maps.Keys(world.Rooms))}, nil
	case puppet.MethodRoomMemberList:
		var body puppet.IDRequest
		if err := decode(&body); err != nil {
			return nil, err
		}
		room, ok := world.Rooms[body.ID]
		if !ok {
			return nil, fmt.Errorf("room %s not found", body.ID)
		}
		return puppet.IDListResponse{IDs: room.MemberIDs}, nil

	case puppet.MethodContactAlias:
		var body puppet.ContactAliasRequest
		if err := decode(&body); err != nil {
			return nil, err
		}
		contact, ok := world.Contacts[body.ContactID]
		if !ok {
			return nil, fmt.Errorf("contact %s not found", body.ContactID)
		}
		contact.Alias = body.Alias
		world.Contacts[body.ContactID] = contact
		return nil, nil

	case puppet.MethodRoomTopic:
		var body puppet.RoomTopicRequest
		if err := decode(&body); err != nil {
			return nil, err
		}
		room, ok := world.Rooms[body.RoomID]
		if !ok {
			return nil, fmt.Errorf("room %s not found", body.RoomID)
		}
		room.Topic = body.Topic
		world.Rooms[body.RoomID] = room
		return nil, nil

	case puppet.MethodRoomCreate:
		var body puppet.RoomCreateRequest
		if err := decode(&body); err != nil {
			return nil, err
		}
		id := p.newIDLocked("room")
		if world.Rooms == nil {
			world.Rooms = make(map[string]puppet.RoomPayload)
		}
		world.Rooms[id] = puppet.RoomPayload{ID: id, Topic: body.Topic, MemberIDs: slices.Clone(body.ContactIDs)}
		return puppet.IDResponse{ID: id}, nil

	case puppet.MethodRoomAdd, puppet.MethodRoomDel:
		var body puppet.RoomMembershipRequest
		if err := decode(&body); err != nil {
			return nil, err
		}
		room, ok := world.Rooms[body.RoomID]
		if !ok {
			return nil, fmt.Errorf("room %s not found", body.RoomID)
		}
		room.MemberIDs = slices.DeleteFunc(slices.Clone(room.MemberIDs), func(id string) bool { return id == body.ContactID })
		if request.Method == puppet.MethodRoomAdd {
			room.MemberIDs = append(room.MemberIDs, body.ContactID)
		}
		world.Rooms[body.RoomID] = room
		return nil, nil

	case puppet.MethodDing:
		var body puppet.DingRequest
		if err := decode(&body); err != nil {
			return nil, err
		}
		go func() {
			if err := PushTo(context.Background(), stream, puppet.EventDong, puppet.EventDongPayload{Data: body.Data}); err != nil {
				p.logger.Debug("pushing dong failed", "error", err)
			}
		}()
		return nil, nil

	case puppet.MethodMessageSendText, puppet.MethodMessageSendFile, puppet.MethodMessageSendContact,
		puppet.MethodMessageSendURL, puppet.MethodMessageSendMiniProgram:
		return puppet.IDResponse{ID: p.newIDLocked("sent")}, nil

	case puppet.MethodMessageFile:
		return lookup(decode, world.Files, "file")
	case puppet.MethodMessageURL:
		return lookup(decode, world.Links, "link")
	case puppet.MethodMessageMiniProgram:
		return lookup(decode, world.MiniPrograms, "mini program")
	case puppet.MethodMessageContact:
		contactID, err := lookup(decode, world.SharedContacts, "shared contact")
		if err != nil {
			return nil, err
		}
		return puppet.IDResponse{ID: contactID}, nil

	case puppet.MethodMessageRecall:
		return puppet.RecallResponse{Recalled: true}, nil

	case puppet.MethodLogout, puppet.MethodRoomQuit, puppet.MethodRoomInvitationAccept,
		puppet.MethodFriendshipAdd, puppet.MethodFriendshipAccept:
		return nil, nil

	case puppet.MethodFriendshipSearch:
		var body puppet.FriendshipSearchRequest
		if err := decode(&body); err != nil {
			return nil, err
		}
		for _, contact := range world.Contacts {
			if (body.Handle != "" && contact.Handle == body.Handle) ||
				(body.Phone != "" && slices.Contains(contact.Phone, body.Phone)) {
				return puppet.FriendshipSearchResponse{Friendship: &puppet.FriendshipPayload{
					ID:        p.newIDLocked("friendship"),
					Type:      puppet.FriendshipTypeVerify,
					ContactID: contact.ID,
					Timestamp: time.Unix(0, 0).UTC(),
				}}, nil
			}
		}
		return puppet.FriendshipSearchResponse{}, nil

	default:
		return nil, fmt.Errorf("unknown method %s", request.Method)
	}
}

func (p *Provider) newIDLocked(prefix string) string {
	p.nextID++
	return fmt.Sprintf("%s-%d", prefix, p.nextID)
}

func lookup[V any](decode func(any) error, table map[string]V, kind string) (V, error) {
	var body puppet.IDRequest
	var zero V
	if err := decode(&body); err != nil {
		return zero, err
	}
	value, ok := table[body.ID]
	if !ok {
		return zero, fmt.Errorf("%s %s not found", kind, body.ID)
	}
	return value, nil
}
