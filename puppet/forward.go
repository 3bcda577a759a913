// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package puppet

import (
	"context"
	"fmt"
)

// MessageForward re-sends a message into conversationID and returns
// the new message id. File-like messages are re-sent as files, text as
// text, and contact, url and mini-program cards through their typed
// sends. Every other type fails with an *UnsupportedError before
// anything is sent.
func (p *Puppet) MessageForward(ctx context.Context, conversationID, messageID string) (string, error) {
	message, err := p.MessagePayload(ctx, messageID)
	if err != nil {
		return "", fmt.Errorf("puppet: forward %s: %w", messageID, err)
	}

	p.logger.Debug("forwarding message",
		"message_id", messageID,
		"message_type", message.Type,
		"conversation_id", conversationID,
	)

	switch message.Type {
	case MessageTypeAttachment, MessageTypeAudio, MessageTypeImage, MessageTypeVideo:
		file, err := p.MessageFile(ctx, messageID)
		if err != nil {
			return "", err
		}
		return p.MessageSendFile(ctx, conversationID, file)

	case MessageTypeText:
		return p.MessageSendText(ctx, conversationID, message.Text)

	case MessageTypeMiniProgram:
		miniProgram, err := p.MessageMiniProgram(ctx, messageID)
		if err != nil {
			return "", err
		}
		return p.MessageSendMiniProgram(ctx, conversationID, miniProgram)

	case MessageTypeURL:
		link, err := p.MessageURL(ctx, messageID)
		if err != nil {
			return "", err
		}
		return p.MessageSendURL(ctx, conversationID, link)

	case MessageTypeContact:
		contactID, err := p.MessageContact(ctx, messageID)
		if err != nil {
			return "", err
		}
		return p.MessageSendContact(ctx, conversationID, contactID)

	default:
		// Chat history, location, emoticon, transfer, red envelope,
		// recalled, group note and unknown.
		return "", &UnsupportedError{Operation: "forward", MessageType: message.Type}
	}
}
