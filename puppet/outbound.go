// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package puppet

import (
	"context"
	"fmt"

	"github.com/bureau-foundation/puppet/lib/codec"
	"github.com/bureau-foundation/puppet/transport"
)

// Outbound request methods.
const (
	MethodDing                   = "ding"
	MethodLogout                 = "logout"
	MethodContactList            = "contact.list"
	MethodContactAlias           = "contact.alias"
	MethodRoomList               = "room.list"
	MethodRoomMemberList         = "room.member.list"
	MethodRoomTopic              = "room.topic"
	MethodRoomCreate             = "room.create"
	MethodRoomAdd                = "room.add"
	MethodRoomDel                = "room.del"
	MethodRoomQuit               = "room.quit"
	MethodRoomInvitationAccept   = "room.invitation.accept"
	MethodFriendshipAdd          = "friendship.add"
	MethodFriendshipAccept       = "friendship.accept"
	MethodFriendshipSearch       = "friendship.search"
	MethodMessageSendText        = "message.send.text"
	MethodMessageSendFile        = "message.send.file"
	MethodMessageSendContact     = "message.send.contact"
	MethodMessageSendURL         = "message.send.url"
	MethodMessageSendMiniProgram = "message.send.mini-program"
	MethodMessageFile            = "message.file"
	MethodMessageContact         = "message.contact"
	MethodMessageURL             = "message.url"
	MethodMessageMiniProgram     = "message.mini-program"
	MethodMessageRecall          = "message.recall"
)

// Call implements Caller over the live stream. It fails with
// ErrNotRunning outside Running. A provider-side failure is a
// *RemoteError.
func (p *Puppet) Call(ctx context.Context, method string, request, response any) error {
	stream := p.currentStream()
	if stream == nil {
		return fmt.Errorf("puppet: %s: %w", method, ErrNotRunning)
	}

	var payload []byte
	if request != nil {
		encoded, err := codec.Marshal(request)
		if err != nil {
			return fmt.Errorf("puppet: encoding %s request: %w", method, err)
		}
		payload = encoded
	}

	if p.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.requestTimeout)
		defer cancel()
	}

	reply, err := stream.Send(ctx, transport.Request{Method: method, Payload: payload})
	if err != nil {
		return fmt.Errorf("puppet: %s: %w", method, err)
	}
	if reply.Error != "" {
		return &RemoteError{Method: method, Message: reply.Error}
	}
	if response == nil {
		return nil
	}
	if len(reply.Payload) == 0 {
		return fmt.Errorf("puppet: %s: empty response", method)
	}
	if err := codec.Unmarshal(reply.Payload, response); err != nil {
		return fmt.Errorf("puppet: decoding %s response: %w", method, err)
	}
	return nil
}

// Request and response bodies of the outbound methods. Providers
// decode these; they are exported so a provider written in Go can
// share them.
type (
	DingRequest struct {
		Data string `cbor:"data,omitempty"`
	}

	IDRequest struct {
		ID string `cbor:"id"`
	}

	IDListResponse struct {
		IDs []string `cbor:"ids"`
	}

	IDResponse struct {
		ID string `cbor:"id"`
	}

	ContactAliasRequest struct {
		ContactID string `cbor:"contact_id"`
		Alias     string `cbor:"alias"`
	}

	RoomTopicRequest struct {
		RoomID string `cbor:"room_id"`
		Topic  string `cbor:"topic"`
	}

	RoomCreateRequest struct {
		ContactIDs []string `cbor:"contact_ids"`
		Topic      string   `cbor:"topic,omitempty"`
	}

	RoomMembershipRequest struct {
		RoomID    string `cbor:"room_id"`
		ContactID string `cbor:"contact_id"`
	}

	FriendshipAddRequest struct {
		ContactID string `cbor:"contact_id"`
		Hello     string `cbor:"hello,omitempty"`
	}

	FriendshipSearchRequest struct {
		Phone  string `cbor:"phone,omitempty"`
		Handle string `cbor:"handle,omitempty"`
	}

	FriendshipSearchResponse struct {
		Friendship *FriendshipPayload `cbor:"friendship,omitempty"`
	}

	SendTextRequest struct {
		ConversationID string   `cbor:"conversation_id"`
		Text           string   `cbor:"text"`
		MentionIDs     []string `cbor:"mention_ids,omitempty"`
	}

	SendFileRequest struct {
		ConversationID string  `cbor:"conversation_id"`
		File           FileBox `cbor:"file"`
	}

	SendContactRequest struct {
		ConversationID string `cbor:"conversation_id"`
		ContactID      string `cbor:"contact_id"`
	}

	SendURLRequest struct {
		ConversationID string         `cbor:"conversation_id"`
		Link           URLLinkPayload `cbor:"link"`
	}

	SendMiniProgramRequest struct {
		ConversationID string             `cbor:"conversation_id"`
		MiniProgram    MiniProgramPayload `cbor:"mini_program"`
	}

	RecallResponse struct {
		Recalled bool `cbor:"recalled"`
	}
)

// Ding asks the provider to answer with a dong event carrying data.
func (p *Puppet) Ding(ctx context.Context, data string) error {
	return p.Call(ctx, MethodDing, DingRequest{Data: data}, nil)
}

// Logout asks the provider to end the login. The logout event follows
// from the provider.
func (p *Puppet) Logout(ctx context.Context) error {
	if !p.LoggedIn() {
		return ErrNotLoggedIn
	}
	return p.Call(ctx, MethodLogout, nil, nil)
}

func (p *Puppet) callIDList(ctx context.Context, method string, request any) ([]string, error) {
	var response IDListResponse
	if err := p.Call(ctx, method, request, &response); err != nil {
		return nil, err
	}
	if response.IDs == nil {
		return []string{}, nil
	}
	return response.IDs, nil
}

func (p *Puppet) callID(ctx context.Context, method string, request any) (string, error) {
	var response IDResponse
	if err := p.Call(ctx, method, request, &response); err != nil {
		return "", err
	}
	return response.ID, nil
}

// ContactList returns every contact id the provider knows.
func (p *Puppet) ContactList(ctx context.Context) ([]string, error) {
	return p.callIDList(ctx, MethodContactList, nil)
}

// ContactAlias sets the alias of a contact and dirties its payload.
func (p *Puppet) ContactAlias(ctx context.Context, contactID, alias string) error {
	if err := p.Call(ctx, MethodContactAlias, ContactAliasRequest{ContactID: contactID, Alias: alias}, nil); err != nil {
		return err
	}
	p.ContactPayloadDirty(contactID)
	return nil
}

// RoomList returns every room id the logged-in contact is in.
func (p *Puppet) RoomList(ctx context.Context) ([]string, error) {
	return p.callIDList(ctx, MethodRoomList, nil)
}

// RoomMemberList returns the contact ids of a room's members.
func (p *Puppet) RoomMemberList(ctx context.Context, roomID string) ([]string, error) {
	return p.callIDList(ctx, MethodRoomMemberList, IDRequest{ID: roomID})
}

// RoomTopic changes a room's topic and dirties the room.
func (p *Puppet) RoomTopic(ctx context.Context, roomID, topic string) error {
	if err := p.Call(ctx, MethodRoomTopic, RoomTopicRequest{RoomID: roomID, Topic: topic}, nil); err != nil {
		return err
	}
	p.RoomPayloadDirty(roomID)
	return nil
}

// RoomCreate creates a room with the given members and returns its id.
func (p *Puppet) RoomCreate(ctx context.Context, contactIDs []string, topic string) (string, error) {
	return p.callID(ctx, MethodRoomCreate, RoomCreateRequest{ContactIDs: contactIDs, Topic: topic})
}

// RoomAdd adds a contact to a room and dirties the room.
func (p *Puppet) RoomAdd(ctx context.Context, roomID, contactID string) error {
	if err := p.Call(ctx, MethodRoomAdd, RoomMembershipRequest{RoomID: roomID, ContactID: contactID}, nil); err != nil {
		return err
	}
	p.RoomPayloadDirty(roomID)
	return nil
}

// RoomDel removes a contact from a room and dirties the room and the
// member.
func (p *Puppet) RoomDel(ctx context.Context, roomID, contactID string) error {
	if err := p.Call(ctx, MethodRoomDel, RoomMembershipRequest{RoomID: roomID, ContactID: contactID}, nil); err != nil {
		return err
	}
	p.RoomPayloadDirty(roomID)
	p.RoomMemberPayloadDirty(roomID, contactID)
	return nil
}

// RoomQuit leaves a room and forgets everything cached about it.
func (p *Puppet) RoomQuit(ctx context.Context, roomID string) error {
	if err := p.Call(ctx, MethodRoomQuit, IDRequest{ID: roomID}, nil); err != nil {
		return err
	}
	p.RoomPayloadDirty(roomID)
	p.RoomMembersDirty(roomID)
	return nil
}

// RoomInvitationAccept accepts an invitation.
func (p *Puppet) RoomInvitationAccept(ctx context.Context, invitationID string) error {
	if err := p.Call(ctx, MethodRoomInvitationAccept, IDRequest{ID: invitationID}, nil); err != nil {
		return err
	}
	p.RoomInvitationPayloadDirty(invitationID)
	return nil
}

// FriendshipAdd sends a friend request.
func (p *Puppet) FriendshipAdd(ctx context.Context, contactID, hello string) error {
	return p.Call(ctx, MethodFriendshipAdd, FriendshipAddRequest{ContactID: contactID, Hello: hello}, nil)
}

// FriendshipAccept accepts a friend request and dirties it.
func (p *Puppet) FriendshipAccept(ctx context.Context, friendshipID string) error {
	if err := p.Call(ctx, MethodFriendshipAccept, IDRequest{ID: friendshipID}, nil); err != nil {
		return err
	}
	p.FriendshipPayloadDirty(friendshipID)
	return nil
}

// FriendshipSearch looks a stranger up by phone or handle. It returns
// nil when nobody matches. A found friendship is cached.
func (p *Puppet) FriendshipSearch(ctx context.Context, query FriendshipSearchRequest) (*FriendshipPayload, error) {
	var response FriendshipSearchResponse
	if err := p.Call(ctx, MethodFriendshipSearch, query, &response); err != nil {
		return nil, err
	}
	if response.Friendship != nil {
		p.SetFriendshipPayload(*response.Friendship)
	}
	return response.Friendship, nil
}

// MessageSendText sends text and returns the new message id when the
// provider reports one.
func (p *Puppet) MessageSendText(ctx context.Context, conversationID, text string, mentionIDs ...string) (string, error) {
	return p.callID(ctx, MethodMessageSendText, SendTextRequest{
		ConversationID: conversationID,
		Text:           text,
		MentionIDs:     mentionIDs,
	})
}

// MessageSendFile sends a file.
func (p *Puppet) MessageSendFile(ctx context.Context, conversationID string, file FileBox) (string, error) {
	return p.callID(ctx, MethodMessageSendFile, SendFileRequest{ConversationID: conversationID, File: file})
}

// MessageSendContact sends a contact card.
func (p *Puppet) MessageSendContact(ctx context.Context, conversationID, contactID string) (string, error) {
	return p.callID(ctx, MethodMessageSendContact, SendContactRequest{ConversationID: conversationID, ContactID: contactID})
}

// MessageSendURL sends a link card.
func (p *Puppet) MessageSendURL(ctx context.Context, conversationID string, link URLLinkPayload) (string, error) {
	return p.callID(ctx, MethodMessageSendURL, SendURLRequest{ConversationID: conversationID, Link: link})
}

// MessageSendMiniProgram sends a mini-program card.
func (p *Puppet) MessageSendMiniProgram(ctx context.Context, conversationID string, miniProgram MiniProgramPayload) (string, error) {
	return p.callID(ctx, MethodMessageSendMiniProgram, SendMiniProgramRequest{ConversationID: conversationID, MiniProgram: miniProgram})
}

// MessageFile downloads the file of an attachment, audio, image or
// video message.
func (p *Puppet) MessageFile(ctx context.Context, messageID string) (FileBox, error) {
	var file FileBox
	err := p.Call(ctx, MethodMessageFile, IDRequest{ID: messageID}, &file)
	return file, err
}

// MessageContact returns the contact id a contact-card message shares.
func (p *Puppet) MessageContact(ctx context.Context, messageID string) (string, error) {
	return p.callID(ctx, MethodMessageContact, IDRequest{ID: messageID})
}

// MessageURL returns the link of a url message.
func (p *Puppet) MessageURL(ctx context.Context, messageID string) (URLLinkPayload, error) {
	var link URLLinkPayload
	err := p.Call(ctx, MethodMessageURL, IDRequest{ID: messageID}, &link)
	return link, err
}

// MessageMiniProgram returns the card of a mini-program message.
func (p *Puppet) MessageMiniProgram(ctx context.Context, messageID string) (MiniProgramPayload, error) {
	var miniProgram MiniProgramPayload
	err := p.Call(ctx, MethodMessageMiniProgram, IDRequest{ID: messageID}, &miniProgram)
	return miniProgram, err
}

// MessageRecall withdraws a sent message and dirties it.
func (p *Puppet) MessageRecall(ctx context.Context, messageID string) (bool, error) {
	var response RecallResponse
	if err := p.Call(ctx, MethodMessageRecall, IDRequest{ID: messageID}, &response); err != nil {
		return false, err
	}
	p.MessagePayloadDirty(messageID)
	return response.Recalled, nil
}

// MessageList returns the ids of the messages currently cached, least
// recently used first.
func (p *Puppet) MessageList() []string {
	return p.caches.message.keys()
}
