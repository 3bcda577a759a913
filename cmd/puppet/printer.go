// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/skip2/go-qrcode"

	"github.com/bureau-foundation/puppet/puppet"
)

var (
	eventStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	warningStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	detailStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// printer writes one line per event to an output stream.
type printer struct {
	mu  sync.Mutex
	out io.Writer
}

func (p *printer) line(style lipgloss.Style, event, format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "%s %s\n", style.Render(fmt.Sprintf("%-11s", event)), fmt.Sprintf(format, args...))
}

func (p *printer) block(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprint(p.out, text)
}

// watchEvents is a plugin that prints the session's user-facing events
// to out.
func watchEvents(out io.Writer) puppet.Plugin {
	return func(p *puppet.Puppet) error {
		printer := &printer{out: out}

		p.OnScan(func(event puppet.EventScanPayload) {
			printer.line(eventStyle, puppet.EventScan, "%s %s", event.Status, detailStyle.Render(event.Data))
			if event.QRCode != "" && event.Status == puppet.ScanStatusWaiting {
				if code, err := renderQRCode(event.QRCode); err == nil {
					printer.block(code)
				} else {
					p.Logger().Warn("rendering scan code failed", "error", err)
				}
			}
		})
		p.OnLogin(func(event puppet.EventLoginPayload) {
			printer.line(eventStyle, puppet.EventLogin, "%s", event.ContactID)
		})
		p.OnLogout(func(event puppet.EventLogoutPayload) {
			printer.line(warningStyle, puppet.EventLogout, "%s %s", event.ContactID, detailStyle.Render(event.Data))
		})
		p.OnReady(func(puppet.EventReadyPayload) {
			printer.line(eventStyle, puppet.EventReady, "")
		})
		p.OnReset(func(event puppet.EventResetPayload) {
			printer.line(warningStyle, puppet.EventReset, "%s", event.Data)
		})
		p.OnError(func(event puppet.EventErrorPayload) {
			printer.line(warningStyle, puppet.EventError, "%s", event.Data)
		})
		p.OnMessage(func(event puppet.EventMessagePayload) {
			printer.line(eventStyle, puppet.EventMessage, "%s", event.MessageID)
		})
		p.OnFriendship(func(event puppet.EventFriendshipPayload) {
			printer.line(eventStyle, puppet.EventFriendship, "%s", event.FriendshipID)
		})
		p.OnRoomInvite(func(event puppet.EventRoomInvitePayload) {
			printer.line(eventStyle, puppet.EventRoomInvite, "%s", event.RoomInvitationID)
		})
		p.OnRoomJoin(func(event puppet.EventRoomJoinPayload) {
			printer.line(eventStyle, puppet.EventRoomJoin, "%s +%s", event.RoomID, strings.Join(event.InviteeIDs, ","))
		})
		p.OnRoomLeave(func(event puppet.EventRoomLeavePayload) {
			printer.line(eventStyle, puppet.EventRoomLeave, "%s -%s", event.RoomID, strings.Join(event.RemoveeIDs, ","))
		})
		p.OnRoomTopic(func(event puppet.EventRoomTopicPayload) {
			printer.line(eventStyle, puppet.EventRoomTopic, "%s %q -> %q", event.RoomID, event.OldTopic, event.NewTopic)
		})
		return nil
	}
}

// renderQRCode draws data with half-height block characters.
func renderQRCode(data string) (string, error) {
	code, err := qrcode.New(data, qrcode.Medium)
	if err != nil {
		return "", err
	}
	return code.ToSmallString(false), nil
}
