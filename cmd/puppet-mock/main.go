// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Puppet-mock is a stand-in provider for local development and
// end-to-end runs of the puppet binary. It serves the frame protocol
// over WebSocket or raw TCP from an in-memory world: built-in defaults
// or a YAML fixture file.
//
// Every connecting client is walked through a scripted login: a scan
// event carrying a QR code, a confirmed scan, login as the fixture's
// self contact, and ready. After that the mock sends heartbeats until
// the client disconnects, and optionally replays the fixture messages
// so that message handling can be exercised.
//
// PUPPET_TOKEN, when set, is required as a bearer token on WebSocket
// upgrades.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/puppet/lib/clock"
	"github.com/bureau-foundation/puppet/lib/config"
	"github.com/bureau-foundation/puppet/lib/process"
	"github.com/bureau-foundation/puppet/lib/version"
	"github.com/bureau-foundation/puppet/puppet/puppettest"
	"github.com/bureau-foundation/puppet/transport"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var (
		listen      string
		fixturePath string
		options     scriptOptions
		showVersion bool
	)
	flagSet := pflag.NewFlagSet("puppet-mock", pflag.ContinueOnError)
	flagSet.StringVar(&listen, "listen", "ws://127.0.0.1:8788/puppet", "ws://host:port/path or tcp://host:port to serve on")
	flagSet.StringVar(&fixturePath, "fixtures", "", "YAML fixture file (default: built-in world)")
	flagSet.DurationVar(&options.Heartbeat, "heartbeat", 15*time.Second, "heartbeat interval")
	flagSet.DurationVar(&options.ScanDelay, "scan-delay", 2*time.Second, "delay between the scan code and its confirmation")
	flagSet.DurationVar(&options.Replay, "replay", 0, "replay fixture messages at this interval (0 disables)")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return process.Exit(2, err)
	}
	if showVersion {
		version.Print("puppet-mock")
		return nil
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	world := defaultWorld()
	if fixturePath != "" {
		loaded, err := loadWorld(fixturePath)
		if err != nil {
			return err
		}
		world = loaded
	}
	options.Self = world.Self

	secrets, err := config.LoadSecrets()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider := puppettest.New(world.Fixtures, logger)
	provider.Server().Token = secrets.Token
	options.Messages = world.messageIDs()

	go runScripts(ctx, provider, clock.Real(), options, logger)

	logger.Info("puppet mock starting",
		"version", version.Info(),
		"listen", listen,
		"contacts", len(world.Fixtures.Contacts),
		"rooms", len(world.Fixtures.Rooms),
		"messages", len(world.Fixtures.Messages),
	)
	return serve(ctx, listen, provider.Server(), logger)
}

func serve(ctx context.Context, listen string, server *transport.Server, logger *slog.Logger) error {
	parsed, err := url.Parse(listen)
	if err != nil {
		return process.Exit(2, fmt.Errorf("--listen: %w", err))
	}
	switch parsed.Scheme {
	case "tcp":
		listener, err := transport.NewTCPListener(parsed.Host)
		if err != nil {
			return err
		}
		return listener.Serve(ctx, server)

	case "ws":
		path := parsed.Path
		if path == "" {
			path = "/"
		}
		mux := http.NewServeMux()
		mux.Handle(path, server)
		httpServer := &http.Server{
			Addr:              parsed.Host,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}

		served := make(chan error, 1)
		go func() { served <- httpServer.ListenAndServe() }()
		logger.Info("provider listening", "address", parsed.Host, "path", path)

		select {
		case err := <-served:
			return err
		case <-ctx.Done():
		}
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdown); err != nil {
			return err
		}
		if err := <-served; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil

	default:
		return process.Exit(2, fmt.Errorf("--listen scheme must be ws or tcp, got %q", parsed.Scheme))
	}
}
