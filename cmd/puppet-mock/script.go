// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bureau-foundation/puppet/lib/clock"
	"github.com/bureau-foundation/puppet/puppet"
	"github.com/bureau-foundation/puppet/puppet/puppettest"
	"github.com/bureau-foundation/puppet/transport"
)

type scriptOptions struct {
	Self      string
	Heartbeat time.Duration
	ScanDelay time.Duration
	Replay    time.Duration
	Messages  []string
}

// runScripts starts a login script for every client the provider
// accepts, until ctx ends.
func runScripts(ctx context.Context, provider *puppettest.Provider, c clock.Clock, options scriptOptions, logger *slog.Logger) {
	connection := 0
	for {
		select {
		case <-ctx.Done():
			return
		case stream := <-provider.Connected():
			connection++
			go func(number int) {
				if err := script(ctx, stream, c, options); err != nil {
					logger.Info("client script ended", "connection", number, "error", err)
				}
			}(connection)
		}
	}
}

// script drives one client: scan, confirm, login, ready, then
// heartbeats and replayed messages until the stream ends.
func script(ctx context.Context, stream *transport.ServerStream, c clock.Clock, options scriptOptions) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-stream.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	push := func(kind string, payload any) error {
		return puppettest.PushTo(ctx, stream, kind, payload)
	}
	wait := func(d time.Duration) error {
		select {
		case <-c.After(d):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	code := fmt.Sprintf("puppet-mock://login/%d", c.Now().UnixNano())
	if err := push(puppet.EventScan, puppet.EventScanPayload{Status: puppet.ScanStatusWaiting, QRCode: code}); err != nil {
		return err
	}
	if err := wait(options.ScanDelay); err != nil {
		return err
	}
	if err := push(puppet.EventScan, puppet.EventScanPayload{Status: puppet.ScanStatusConfirmed}); err != nil {
		return err
	}
	if err := push(puppet.EventLogin, puppet.EventLoginPayload{ContactID: options.Self}); err != nil {
		return err
	}
	if err := push(puppet.EventReady, nil); err != nil {
		return err
	}

	heartbeat := c.NewTicker(options.Heartbeat)
	defer heartbeat.Stop()
	var replay <-chan time.Time
	if options.Replay > 0 && len(options.Messages) > 0 {
		ticker := c.NewTicker(options.Replay)
		defer ticker.Stop()
		replay = ticker.C
	}

	beats, next := 0, 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-heartbeat.C:
			beats++
			if err := push(puppet.EventHeartbeat, puppet.EventHeartbeatPayload{Data: fmt.Sprintf("beat-%d", beats)}); err != nil {
				return err
			}
		case <-replay:
			id := options.Messages[next%len(options.Messages)]
			next++
			if err := push(puppet.EventMessage, puppet.EventMessagePayload{MessageID: id}); err != nil {
				return err
			}
		}
	}
}
