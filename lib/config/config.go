// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local runs against a mock provider.
	Development Environment = "development"
	// Production is for long-lived sessions against a real provider.
	Production Environment = "production"
)

// EnvConfigPath names the variable Load reads.
const EnvConfigPath = "PUPPET_CONFIG"

// Config is the master configuration.
type Config struct {
	// Environment identifies the deployment type.
	Environment Environment `yaml:"environment"`

	// Provider configures the connection to the automation backend.
	Provider ProviderConfig `yaml:"provider"`

	// Session configures the puppet's supervision of that connection.
	Session SessionConfig `yaml:"session"`

	// Memory configures persisted session memory.
	Memory MemoryConfig `yaml:"memory"`

	// Log configures the process logger.
	Log LogConfig `yaml:"log"`

	// Production overrides base values when Environment is production.
	Production *Overrides `yaml:"production,omitempty"`
}

// Overrides contains the fields a production section may replace.
// Nil and zero values leave the base value alone.
type Overrides struct {
	Provider *ProviderConfig `yaml:"provider,omitempty"`
	Session  *SessionConfig  `yaml:"session,omitempty"`
	Log      *LogConfig      `yaml:"log,omitempty"`
}

// ProviderConfig configures the provider connection.
type ProviderConfig struct {
	// Endpoint is where the provider listens. ws:// and wss:// URLs
	// select the WebSocket transport, tcp://host:port the raw TCP
	// transport.
	// Default: ws://127.0.0.1:8788/puppet
	Endpoint string `yaml:"endpoint"`

	// DialTimeout bounds connection establishment.
	// Default: 10s
	DialTimeout time.Duration `yaml:"dial_timeout"`

	// RequestTimeout bounds each request/response round trip.
	// Default: 30s
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// SessionConfig configures supervision.
type SessionConfig struct {
	// WatchdogTimeout is how long the provider may stay silent before
	// the session is reset.
	// Default: 60s
	WatchdogTimeout time.Duration `yaml:"watchdog_timeout"`

	// WatchdogAutoFeed feeds the watchdog from heartbeat events. When
	// false the application feeds it.
	// Default: true
	WatchdogAutoFeed *bool `yaml:"watchdog_auto_feed"`

	// ResetThrottle is the quiet window that collapses reset signals.
	// Default: 5s
	ResetThrottle time.Duration `yaml:"reset_throttle"`

	// CacheCapacity bounds each payload cache.
	// Default: 3000
	CacheCapacity int `yaml:"cache_capacity"`

	// SearchBatch is the number of payloads hydrated concurrently
	// during a filtered search.
	// Default: 16
	SearchBatch int `yaml:"search_batch"`
}

// AutoFeed resolves WatchdogAutoFeed, true when unset.
func (s SessionConfig) AutoFeed() bool {
	return s.WatchdogAutoFeed == nil || *s.WatchdogAutoFeed
}

// MemoryConfig configures persisted session memory.
type MemoryConfig struct {
	// Backend is "file" or "none".
	// Default: file
	Backend string `yaml:"backend"`

	// Path is the memory card file for the file backend.
	// Default: ${PUPPET_STATE:-$HOME/.local/state/puppet}/memory.card
	Path string `yaml:"path"`

	// Compression is "zstd", "lz4", or "none".
	// Default: zstd
	Compression string `yaml:"compression"`

	// Recipient is an age X25519 public key. When set, the card is
	// encrypted to it and PUPPET_MEMORY_IDENTITY must hold the
	// matching private key, or IdentityFile must name a file holding
	// it.
	Recipient string `yaml:"recipient"`

	// IdentityFile is read when PUPPET_MEMORY_IDENTITY is empty. "-"
	// reads the identity from stdin.
	IdentityFile string `yaml:"identity_file"`
}

// LogConfig configures the logger.
type LogConfig struct {
	// Level is debug, info, warn, or error.
	// Default: info
	Level string `yaml:"level"`

	// Format is "auto" (text on a terminal, JSON otherwise), "text",
	// or "json".
	// Default: auto
	Format string `yaml:"format"`
}

// Default returns the configuration every file is merged onto.
func Default() *Config {
	return &Config{
		Environment: Development,
		Provider: ProviderConfig{
			Endpoint:       "ws://127.0.0.1:8788/puppet",
			DialTimeout:    10 * time.Second,
			RequestTimeout: 30 * time.Second,
		},
		Session: SessionConfig{
			WatchdogTimeout: 60 * time.Second,
			ResetThrottle:   5 * time.Second,
			CacheCapacity:   3000,
			SearchBatch:     16,
		},
		Memory: MemoryConfig{
			Backend:     "file",
			Path:        "${PUPPET_STATE:-${HOME}/.local/state/puppet}/memory.card",
			Compression: "zstd",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Load loads configuration from the file named by PUPPET_CONFIG.
// There is no fallback: an unset variable is an error.
func Load() (*Config, error) {
	path := os.Getenv(EnvConfigPath)
	if path == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your puppet.yaml config file, or use --config flag", EnvConfigPath)
	}
	return LoadFile(path)
}

// LoadFile loads configuration from path, applies the production
// section when it applies, expands path variables, and validates.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := cfg.decode(path, data); err != nil {
		return nil, err
	}

	cfg.applyOverrides()
	cfg.expandVariables()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) decode(path string, data []byte) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		// JSON is a subset of YAML, so the same decoder serves both
		// once comments and trailing commas are gone.
		data = jsonc.ToJSON(data)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyOverrides() {
	if c.Environment != Production || c.Production == nil {
		return
	}
	overrides := c.Production

	if provider := overrides.Provider; provider != nil {
		if provider.Endpoint != "" {
			c.Provider.Endpoint = provider.Endpoint
		}
		if provider.DialTimeout > 0 {
			c.Provider.DialTimeout = provider.DialTimeout
		}
		if provider.RequestTimeout > 0 {
			c.Provider.RequestTimeout = provider.RequestTimeout
		}
	}

	if session := overrides.Session; session != nil {
		if session.WatchdogTimeout > 0 {
			c.Session.WatchdogTimeout = session.WatchdogTimeout
		}
		if session.WatchdogAutoFeed != nil {
			c.Session.WatchdogAutoFeed = session.WatchdogAutoFeed
		}
		if session.ResetThrottle > 0 {
			c.Session.ResetThrottle = session.ResetThrottle
		}
		if session.CacheCapacity > 0 {
			c.Session.CacheCapacity = session.CacheCapacity
		}
		if session.SearchBatch > 0 {
			c.Session.SearchBatch = session.SearchBatch
		}
	}

	if log := overrides.Log; log != nil {
		if log.Level != "" {
			c.Log.Level = log.Level
		}
		if log.Format != "" {
			c.Log.Format = log.Format
		}
	}
}

func (c *Config) expandVariables() {
	c.Memory.Path = expandVars(c.Memory.Path)
	c.Memory.IdentityFile = expandVars(c.Memory.IdentityFile)
}

// expandVars expands ${VAR} and ${VAR:-default}. Defaults may contain
// further ${VAR} references, which are expanded after substitution.
func expandVars(s string) string {
	for range 4 {
		expanded := expandOnce(s)
		if expanded == s {
			return s
		}
		s = expanded
	}
	return s
}

func expandOnce(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		if len(parts) >= 3 {
			return parts[2]
		}
		return ""
	})
}

// varPattern only matches references with no nested braces, so each
// pass expands the innermost level.
var varPattern = regexp.MustCompile(`\$\{([^{}:]+)(?::-([^{}]*))?\}`)

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	endpoint := c.Provider.Endpoint
	if endpoint == "" {
		errs = append(errs, errors.New("provider.endpoint is required"))
	} else if !hasAnyPrefix(endpoint, "ws://", "wss://", "tcp://") {
		errs = append(errs, fmt.Errorf("provider.endpoint %q must start with ws://, wss://, or tcp://", endpoint))
	}
	if c.Provider.DialTimeout <= 0 {
		errs = append(errs, errors.New("provider.dial_timeout must be positive"))
	}
	if c.Provider.RequestTimeout <= 0 {
		errs = append(errs, errors.New("provider.request_timeout must be positive"))
	}

	if c.Session.WatchdogTimeout <= 0 {
		errs = append(errs, errors.New("session.watchdog_timeout must be positive"))
	}
	if c.Session.ResetThrottle <= 0 {
		errs = append(errs, errors.New("session.reset_throttle must be positive"))
	}
	if c.Session.CacheCapacity <= 0 {
		errs = append(errs, errors.New("session.cache_capacity must be positive"))
	}
	if c.Session.SearchBatch <= 0 {
		errs = append(errs, errors.New("session.search_batch must be positive"))
	}

	backends := []string{"file", "none"}
	if !slices.Contains(backends, c.Memory.Backend) {
		errs = append(errs, fmt.Errorf("memory.backend must be one of: %v", backends))
	}
	if c.Memory.Backend == "file" && c.Memory.Path == "" {
		errs = append(errs, errors.New("memory.path is required for the file backend"))
	}
	compressions := []string{"zstd", "lz4", "none"}
	if !slices.Contains(compressions, c.Memory.Compression) {
		errs = append(errs, fmt.Errorf("memory.compression must be one of: %v", compressions))
	}
	if c.Memory.Recipient != "" && !strings.HasPrefix(c.Memory.Recipient, "age1") {
		errs = append(errs, errors.New("memory.recipient must be an age X25519 public key (age1...)"))
	}

	levels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(levels, c.Log.Level) {
		errs = append(errs, fmt.Errorf("log.level must be one of: %v", levels))
	}
	formats := []string{"auto", "text", "json"}
	if !slices.Contains(formats, c.Log.Format) {
		errs = append(errs, fmt.Errorf("log.format must be one of: %v", formats))
	}

	return errors.Join(errs...)
}

// EnsurePaths creates the directory holding the memory card.
func (c *Config) EnsurePaths() error {
	if c.Memory.Backend != "file" {
		return nil
	}
	dir := filepath.Dir(c.Memory.Path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	return nil
}

func hasAnyPrefix(s string, prefixes ...string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}
