// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package puppet

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// RawPayload is an entity snapshot as the provider returned it, before
// parsing. Its format belongs to the Provider that produced it.
type RawPayload []byte

// ContactGender is the gender a contact reports.
type ContactGender int

const (
	ContactGenderUnknown ContactGender = iota
	ContactGenderMale
	ContactGenderFemale
)

// ContactType separates people from official and corporate accounts.
type ContactType int

const (
	ContactTypeUnknown ContactType = iota
	ContactTypeIndividual
	ContactTypeOfficial
	ContactTypeCorporation
)

// ContactPayload is a snapshot of one contact.
type ContactPayload struct {
	ID          string        `cbor:"id"`
	Gender      ContactGender `cbor:"gender,omitempty"`
	Type        ContactType   `cbor:"type,omitempty"`
	Name        string        `cbor:"name"`
	Avatar      string        `cbor:"avatar,omitempty"`
	Alias       string        `cbor:"alias,omitempty"`
	Handle      string        `cbor:"handle,omitempty"`
	City        string        `cbor:"city,omitempty"`
	Province    string        `cbor:"province,omitempty"`
	Signature   string        `cbor:"signature,omitempty"`
	Friend      bool          `cbor:"friend,omitempty"`
	Star        bool          `cbor:"star,omitempty"`
	Phone       []string      `cbor:"phone,omitempty"`
	Corporation string        `cbor:"corporation,omitempty"`
	Title       string        `cbor:"title,omitempty"`
	Description string        `cbor:"description,omitempty"`
}

func (p ContactPayload) clone() ContactPayload {
	p.Phone = slices.Clone(p.Phone)
	return p
}

// MessageType is the content type of a message. Forwarding dispatches
// on it.
type MessageType int

const (
	MessageTypeUnknown MessageType = iota
	MessageTypeAttachment
	MessageTypeAudio
	MessageTypeContact
	MessageTypeChatHistory
	MessageTypeEmoticon
	MessageTypeImage
	MessageTypeText
	MessageTypeLocation
	MessageTypeMiniProgram
	MessageTypeGroupNote
	MessageTypeTransfer
	MessageTypeRedEnvelope
	MessageTypeRecalled
	MessageTypeURL
	MessageTypeVideo
)

var messageTypeNames = [...]string{
	MessageTypeUnknown:     "unknown",
	MessageTypeAttachment:  "attachment",
	MessageTypeAudio:       "audio",
	MessageTypeContact:     "contact",
	MessageTypeChatHistory: "chat-history",
	MessageTypeEmoticon:    "emoticon",
	MessageTypeImage:       "image",
	MessageTypeText:        "text",
	MessageTypeLocation:    "location",
	MessageTypeMiniProgram: "mini-program",
	MessageTypeGroupNote:   "group-note",
	MessageTypeTransfer:    "transfer",
	MessageTypeRedEnvelope: "red-envelope",
	MessageTypeRecalled:    "recalled",
	MessageTypeURL:         "url",
	MessageTypeVideo:       "video",
}

func (t MessageType) String() string {
	if t >= 0 && int(t) < len(messageTypeNames) {
		return messageTypeNames[t]
	}
	return fmt.Sprintf("MessageType(%d)", int(t))
}

// MessagePayload is a snapshot of one message. RoomID is empty for
// direct messages; ListenerID is empty for room messages.
type MessagePayload struct {
	ID         string      `cbor:"id"`
	Type       MessageType `cbor:"type"`
	TalkerID   string      `cbor:"talker_id"`
	RoomID     string      `cbor:"room_id,omitempty"`
	ListenerID string      `cbor:"listener_id,omitempty"`
	Text       string      `cbor:"text,omitempty"`
	Filename   string      `cbor:"filename,omitempty"`
	MentionIDs []string    `cbor:"mention_ids,omitempty"`
	Timestamp  time.Time   `cbor:"timestamp"`
}

func (p MessagePayload) clone() MessagePayload {
	p.MentionIDs = slices.Clone(p.MentionIDs)
	return p
}

// ConversationID returns where the message was said: the room, or the
// other party of a direct conversation.
func (p MessagePayload) ConversationID() string {
	if p.RoomID != "" {
		return p.RoomID
	}
	return p.TalkerID
}

// RoomPayload is a snapshot of one room.
type RoomPayload struct {
	ID        string   `cbor:"id"`
	Topic     string   `cbor:"topic"`
	Avatar    string   `cbor:"avatar,omitempty"`
	OwnerID   string   `cbor:"owner_id,omitempty"`
	AdminIDs  []string `cbor:"admin_ids,omitempty"`
	MemberIDs []string `cbor:"member_ids,omitempty"`
}

func (p RoomPayload) clone() RoomPayload {
	p.AdminIDs = slices.Clone(p.AdminIDs)
	p.MemberIDs = slices.Clone(p.MemberIDs)
	return p
}

// RoomMemberPayload is how one contact appears inside one room.
type RoomMemberPayload struct {
	ID        string `cbor:"id"`
	RoomAlias string `cbor:"room_alias,omitempty"`
	InviterID string `cbor:"inviter_id,omitempty"`
	Avatar    string `cbor:"avatar,omitempty"`
	Name      string `cbor:"name"`
}

func (p RoomMemberPayload) clone() RoomMemberPayload { return p }

// RoomMemberKey addresses a room member payload.
type RoomMemberKey struct {
	RoomID    string
	ContactID string
}

// String returns a length-prefixed encoding, unambiguous for any pair
// of ids.
func (k RoomMemberKey) String() string {
	return fmt.Sprintf("%d:%s%s", len(k.RoomID), k.RoomID, k.ContactID)
}

// FriendshipType is the stage of a friendship request.
type FriendshipType int

const (
	FriendshipTypeUnknown FriendshipType = iota
	FriendshipTypeConfirm
	FriendshipTypeReceive
	FriendshipTypeVerify
)

// FriendshipPayload is a snapshot of one friendship request.
type FriendshipPayload struct {
	ID        string         `cbor:"id"`
	Type      FriendshipType `cbor:"type"`
	ContactID string         `cbor:"contact_id"`
	Hello     string         `cbor:"hello,omitempty"`
	Scene     int            `cbor:"scene,omitempty"`
	Stranger  string         `cbor:"stranger,omitempty"`
	Ticket    string         `cbor:"ticket,omitempty"`
	Timestamp time.Time      `cbor:"timestamp"`
}

func (p FriendshipPayload) clone() FriendshipPayload { return p }

// RoomInvitationPayload is a snapshot of one invitation to a room.
type RoomInvitationPayload struct {
	ID          string    `cbor:"id"`
	InviterID   string    `cbor:"inviter_id"`
	ReceiverID  string    `cbor:"receiver_id,omitempty"`
	Topic       string    `cbor:"topic"`
	Avatar      string    `cbor:"avatar,omitempty"`
	Invitation  string    `cbor:"invitation,omitempty"`
	MemberCount int       `cbor:"member_count,omitempty"`
	MemberIDs   []string  `cbor:"member_ids,omitempty"`
	Timestamp   time.Time `cbor:"timestamp"`
}

func (p RoomInvitationPayload) clone() RoomInvitationPayload {
	p.MemberIDs = slices.Clone(p.MemberIDs)
	return p
}

// FileBox is file content moved between the puppet and the provider,
// either inline or by reference.
type FileBox struct {
	Name     string `cbor:"name"`
	MimeType string `cbor:"mime_type,omitempty"`
	Data     []byte `cbor:"data,omitempty"`
	URL      string `cbor:"url,omitempty"`
}

func (f FileBox) String() string {
	var builder strings.Builder
	builder.WriteString("FileBox<")
	builder.WriteString(f.Name)
	if f.URL != "" {
		builder.WriteString(" ")
		builder.WriteString(f.URL)
	} else {
		fmt.Fprintf(&builder, " %d bytes", len(f.Data))
	}
	builder.WriteString(">")
	return builder.String()
}

// URLLinkPayload is a link card.
type URLLinkPayload struct {
	Title        string `cbor:"title"`
	URL          string `cbor:"url"`
	Description  string `cbor:"description,omitempty"`
	ThumbnailURL string `cbor:"thumbnail_url,omitempty"`
}

// MiniProgramPayload is an embedded mini-program card.
type MiniProgramPayload struct {
	AppID       string `cbor:"app_id"`
	Title       string `cbor:"title,omitempty"`
	Description string `cbor:"description,omitempty"`
	PagePath    string `cbor:"page_path,omitempty"`
	IconURL     string `cbor:"icon_url,omitempty"`
	ThumbURL    string `cbor:"thumb_url,omitempty"`
	Username    string `cbor:"username,omitempty"`
}
