// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Puppet runs one chat-automation session against a provider and
// prints its events. It loads configuration from --config or
// PUPPET_CONFIG, reads the provider token and the memory identity from
// the environment, and keeps the session alive until interrupted:
// resets caused by a silent or failed provider are handled by the
// puppet itself.
//
// Scan events are rendered as terminal QR codes so that a login can be
// completed from the console.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/puppet/lib/config"
	"github.com/bureau-foundation/puppet/lib/process"
	"github.com/bureau-foundation/puppet/lib/secret"
	"github.com/bureau-foundation/puppet/lib/version"
	"github.com/bureau-foundation/puppet/memory"
	"github.com/bureau-foundation/puppet/puppet"
	"github.com/bureau-foundation/puppet/transport"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var (
		configPath string
		endpoint   string
		verbose    bool
		dingDong   bool
		showVer    bool
	)
	flagSet := pflag.NewFlagSet("puppet", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", "", "path to puppet.yaml (default: $PUPPET_CONFIG, then built-in defaults)")
	flagSet.StringVar(&endpoint, "endpoint", "", "provider endpoint, overriding the config file")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "log at debug level and log every event")
	flagSet.BoolVar(&dingDong, "ding-dong", false, `answer "ding" with "dong"`)
	flagSet.BoolVar(&showVer, "version", false, "print version information and exit")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return process.Exit(2, err)
	}
	if showVer {
		version.Print("puppet")
		return nil
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if endpoint != "" {
		cfg.Provider.Endpoint = endpoint
		if err := cfg.Validate(); err != nil {
			return process.Exit(2, err)
		}
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	secrets, err := config.LoadSecrets()
	if err != nil {
		return err
	}
	if err := secrets.Check(cfg); err != nil {
		return process.Exit(2, err)
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dialer, err := transport.NewDialer(cfg.Provider.Endpoint, transport.DialerOptions{
		Token:   secrets.Token,
		Timeout: cfg.Provider.DialTimeout,
	})
	if err != nil {
		return err
	}

	backend, err := openMemory(cfg, secrets)
	if err != nil {
		return err
	}
	defer backend.Close()
	compression, err := memory.ParseCompression(cfg.Memory.Compression)
	if err != nil {
		return err
	}

	plugins := []puppet.Plugin{watchEvents(os.Stdout)}
	if verbose {
		plugins = append(plugins, puppet.LogEvents())
	}
	if dingDong {
		plugins = append(plugins, puppet.DingDong())
	}

	p, err := puppet.New(puppet.Options{
		Name:            "puppet",
		Dialer:          dialer,
		Memory:          memory.New(backend, compression, logger),
		Logger:          logger,
		WatchdogTimeout: cfg.Session.WatchdogTimeout,
		ManualWatchdog:  !cfg.Session.AutoFeed(),
		ResetThrottle:   cfg.Session.ResetThrottle,
		RequestTimeout:  cfg.Provider.RequestTimeout,
		CacheCapacity:   cfg.Session.CacheCapacity,
		SearchBatch:     cfg.Session.SearchBatch,
		Plugins:         plugins,
	})
	if err != nil {
		return err
	}

	logger.Info("starting puppet",
		"version", version.Info(),
		"endpoint", cfg.Provider.Endpoint,
		"memory", cfg.Memory.Backend,
	)
	if err := p.Start(ctx); err != nil {
		return err
	}
	if remembered := p.RememberedSelfID(); remembered != "" {
		logger.Info("session memory remembers a previous login", "contact_id", remembered)
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return p.Close(shutdown)
}

func loadConfig(path string) (*config.Config, error) {
	switch {
	case path != "":
		cfg, err := config.LoadFile(path)
		if err != nil {
			return nil, process.Exit(2, err)
		}
		return cfg, nil
	case os.Getenv(config.EnvConfigPath) != "":
		cfg, err := config.Load()
		if err != nil {
			return nil, process.Exit(2, err)
		}
		return cfg, nil
	default:
		cfg := config.Default()
		cfg.Memory.Backend = "none"
		return cfg, nil
	}
}

// closingBackend is a backend that may hold a lock or a key.
type closingBackend interface {
	memory.Backend
	Close() error
}

type nopCloser struct{ memory.Backend }

func (nopCloser) Close() error { return nil }

// openMemory builds the configured memory backend, sealed when a
// recipient is configured.
func openMemory(cfg *config.Config, secrets config.Secrets) (closingBackend, error) {
	var (
		base closingBackend
		err  error
	)
	switch cfg.Memory.Backend {
	case "none":
		return nopCloser{memory.NopBackend{}}, nil
	case "file":
		if err := cfg.EnsurePaths(); err != nil {
			return nil, err
		}
		base, err = memory.OpenFile(cfg.Memory.Path)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown memory backend %q", cfg.Memory.Backend)
	}

	if cfg.Memory.Recipient == "" {
		return base, nil
	}
	identity, err := memoryIdentity(cfg, secrets)
	if err != nil {
		base.Close()
		return nil, err
	}
	sealed, err := memory.NewSealedBackend(base, cfg.Memory.Recipient, identity)
	if err != nil {
		identity.Close()
		base.Close()
		return nil, err
	}
	return sealedCloser{SealedBackend: sealed, base: base, identity: identity}, nil
}

func memoryIdentity(cfg *config.Config, secrets config.Secrets) (*secret.Buffer, error) {
	if secrets.MemoryIdentity != "" {
		return secret.FromString(secrets.MemoryIdentity)
	}
	identity, err := secret.ReadKeyFile(cfg.Memory.IdentityFile)
	if err != nil {
		return nil, fmt.Errorf("reading memory identity: %w", err)
	}
	return identity, nil
}

type sealedCloser struct {
	*memory.SealedBackend
	base     closingBackend
	identity *secret.Buffer
}

func (s sealedCloser) Close() error {
	return errors.Join(s.base.Close(), s.identity.Close())
}
