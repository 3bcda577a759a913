// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package puppet

import (
	"context"
	"strings"
	"time"
)

// Plugin installs behavior on a new Puppet, typically by subscribing
// to its events. Plugins are passed in Options and installed in order.
type Plugin func(*Puppet) error

// DingDong answers every text message that is exactly "ding" with
// "dong", in the conversation it came from. Messages sent by the
// logged-in contact are ignored.
func DingDong() Plugin {
	return func(p *Puppet) error {
		p.OnMessage(func(event EventMessagePayload) {
			// Listeners run on the dispatcher: do the round trips
			// elsewhere.
			started := p.Go(func(ctx context.Context) {
				p.answerDing(ctx, event.MessageID)
			})
			if !started {
				p.logger.Debug("ding-dong: session gone", "message_id", event.MessageID)
			}
		})
		return nil
	}
}

func (p *Puppet) answerDing(ctx context.Context, messageID string) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	message, err := p.MessagePayload(ctx, messageID)
	if err != nil {
		p.logger.Debug("ding-dong: message unavailable", "message_id", messageID, "error", err)
		return
	}
	if message.Type != MessageTypeText || !strings.EqualFold(strings.TrimSpace(message.Text), "ding") {
		return
	}
	if self := p.SelfID(); self != "" && message.TalkerID == self {
		return
	}
	if _, err := p.MessageSendText(ctx, message.ConversationID(), "dong"); err != nil {
		p.logger.Warn("ding-dong: reply failed", "message_id", messageID, "error", err)
	}
}

// LogEvents logs every event at debug level.
func LogEvents() Plugin {
	return func(p *Puppet) error {
		for _, name := range EventNames {
			p.On(name, func(args ...any) {
				p.logger.Debug("event", "event", name, "payload", args[0])
			})
		}
		return nil
	}
}
