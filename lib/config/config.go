// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Backend names a queue provider implementation.
type Backend string

const (
	// BackendSQLite is a queue in a local SQLite file, shared by every
	// process on the host.
	BackendSQLite Backend = "sqlite"
	// BackendRedis is a queue on a Redis server, for parties on
	// different hosts.
	BackendRedis Backend = "redis"
	// BackendMemory is an in-process queue, for tests and local
	// execution.
	BackendMemory Backend = "memory"
)

// Config is the complete sera configuration.
type Config struct {
	// Namespace prefixes every endpoint name on the backend, so that
	// several deployments can share one queue server.
	Namespace string `yaml:"namespace"`

	Backend Backend      `yaml:"backend"`
	SQLite  SQLiteConfig `yaml:"sqlite"`
	Redis   RedisConfig  `yaml:"redis"`

	Timeouts TimeoutsConfig `yaml:"timeouts"`

	// Retention is how long an unconsumed message stays on the
	// backend before it may be discarded.
	Retention time.Duration `yaml:"retention"`

	// Visibility is how long a received but undeleted message stays
	// hidden before the backend redelivers it.
	Visibility time.Duration `yaml:"visibility"`

	// EndpointTTL bounds how long a resolved endpoint URL is cached.
	EndpointTTL time.Duration `yaml:"endpoint_ttl"`

	// MaxChainDepth limits how many chained commands a watcher runs
	// for one request.
	MaxChainDepth int `yaml:"max_chain_depth"`

	Compression CompressionConfig `yaml:"compression"`

	Paths PathsConfig `yaml:"paths"`
}

// SQLiteConfig configures the SQLite backend.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	// URL is a redis:// or rediss:// URL as accepted by
	// redis.ParseURL.
	URL string `yaml:"url"`
}

// TimeoutsConfig holds the protocol's wait bounds.
type TimeoutsConfig struct {
	// Command bounds how long a master waits for a response.
	Command time.Duration `yaml:"command"`
	// Handshake bounds how long a master waits for a peer's key.
	Handshake time.Duration `yaml:"handshake"`
	// Watch is the watcher session length. Negative runs forever.
	Watch time.Duration `yaml:"watch"`
	// MaxPoll is the longest single receive call.
	MaxPoll time.Duration `yaml:"max_poll"`
	// MaxBackoff caps the linear backoff between retries.
	MaxBackoff time.Duration `yaml:"max_backoff"`
}

// CompressionConfig controls compression of stored message bodies.
type CompressionConfig struct {
	// Algorithm is "zstd", "lz4" or "none".
	Algorithm string `yaml:"algorithm"`
	// Threshold is the body size in bytes below which nothing is
	// compressed.
	Threshold int `yaml:"threshold"`
}

// PathsConfig locates local state.
type PathsConfig struct {
	// State is the directory holding everything below by default.
	State string `yaml:"state"`
	// KeyFile holds SERA_PUBLIC_KEY and SERA_PRIVATE_KEY.
	KeyFile string `yaml:"key_file"`
	// KnownClients is the watcher's allow-list, one key per line.
	KnownClients string `yaml:"known_clients"`
	// KnownWatchers caches watcher name to public key for masters.
	KnownWatchers string `yaml:"known_watchers"`
	// EnvFile is where the export command writes variables.
	EnvFile string `yaml:"env_file"`
}

// DefaultNamespace is the endpoint name prefix when none is configured.
const DefaultNamespace = "Sera"

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Namespace: DefaultNamespace,
		Backend:   BackendSQLite,
		SQLite:    SQLiteConfig{Path: "${SERA_STATE}/queue.db"},
		Timeouts: TimeoutsConfig{
			Command:    20 * time.Second,
			Handshake:  20 * time.Second,
			Watch:      -1,
			MaxPoll:    20 * time.Second,
			MaxBackoff: 20 * time.Second,
		},
		Retention:     60 * time.Second,
		Visibility:    120 * time.Second,
		EndpointTTL:   time.Hour,
		MaxChainDepth: 16,
		Compression: CompressionConfig{
			Algorithm: "zstd",
			Threshold: 1024,
		},
		Paths: PathsConfig{
			State:         "${HOME}/.sera",
			KeyFile:       "${SERA_STATE}/keys.env",
			KnownClients:  "${SERA_STATE}/known_clients",
			KnownWatchers: "${SERA_STATE}/known_watchers",
			EnvFile:       "${SERA_STATE}/env",
		},
	}
}

// DedupWindow is how long a received message id is remembered: one
// visibility period plus a minute of margin, so a redelivery after the
// visibility timeout is still recognized.
func (c *Config) DedupWindow() time.Duration {
	return c.Visibility + time.Minute
}

// Load reads the file at path, or the file named by SERA_CONFIG when
// path is empty. With neither, it returns the expanded defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("SERA_CONFIG")
	}
	if path == "" {
		cfg := Default()
		cfg.expandVariables()
		return cfg, nil
	}
	return LoadFile(path)
}

// LoadFile reads configuration from path over the defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes configuration data. extension selects the format:
// ".json" and ".jsonc" are JSON with comments, anything else is YAML.
func Parse(data []byte, extension string) (*Config, error) {
	switch strings.ToLower(extension) {
	case ".json", ".jsonc":
		converted, err := jsoncToYAML(data)
		if err != nil {
			return nil, err
		}
		data = converted
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.expandVariables()
	return cfg, nil
}

// jsoncToYAML strips comments and trailing commas, then re-encodes the
// document as YAML so both formats share one set of struct tags and
// the YAML decoder's duration parsing.
func jsoncToYAML(data []byte) ([]byte, error) {
	var document any
	if err := json.Unmarshal(jsonc.ToJSON(data), &document); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return yaml.Marshal(document)
}

func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Paths.State = expandVars(c.Paths.State, vars)
	vars["SERA_STATE"] = c.Paths.State

	c.Paths.KeyFile = expandVars(c.Paths.KeyFile, vars)
	c.Paths.KnownClients = expandVars(c.Paths.KnownClients, vars)
	c.Paths.KnownWatchers = expandVars(c.Paths.KnownWatchers, vars)
	c.Paths.EnvFile = expandVars(c.Paths.EnvFile, vars)
	c.SQLite.Path = expandVars(c.SQLite.Path, vars)
	c.Redis.URL = expandVars(c.Redis.URL, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default}, checking vars before
// the environment.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		name := parts[1]
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return parts[2]
	})
}

var namespacePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]*$`)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if !namespacePattern.MatchString(c.Namespace) {
		errs = append(errs, fmt.Errorf("namespace %q may only contain letters, digits, '-' and '_'", c.Namespace))
	}

	switch c.Backend {
	case BackendSQLite:
		if c.SQLite.Path == "" {
			errs = append(errs, errors.New("sqlite.path is required for the sqlite backend"))
		}
	case BackendRedis:
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("redis.url is required for the redis backend"))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("backend must be one of sqlite, redis, memory; got %q", c.Backend))
	}

	positive := []struct {
		name  string
		value time.Duration
	}{
		{"timeouts.command", c.Timeouts.Command},
		{"timeouts.handshake", c.Timeouts.Handshake},
		{"timeouts.max_poll", c.Timeouts.MaxPoll},
		{"retention", c.Retention},
		{"visibility", c.Visibility},
	}
	for _, field := range positive {
		if field.value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", field.name))
		}
	}
	if c.Timeouts.MaxBackoff < 0 {
		errs = append(errs, errors.New("timeouts.max_backoff must not be negative"))
	}
	if c.EndpointTTL < 0 {
		errs = append(errs, errors.New("endpoint_ttl must not be negative"))
	}
	if c.MaxChainDepth < 0 {
		errs = append(errs, errors.New("max_chain_depth must not be negative"))
	}

	switch c.Compression.Algorithm {
	case "zstd", "lz4", "none", "":
	default:
		errs = append(errs, fmt.Errorf("compression.algorithm must be zstd, lz4 or none; got %q", c.Compression.Algorithm))
	}

	if c.Paths.State == "" {
		errs = append(errs, errors.New("paths.state is required"))
	}

	return errors.Join(errs...)
}

// EnsurePaths creates the state directory.
func (c *Config) EnsurePaths() error {
	if err := os.MkdirAll(c.Paths.State, 0700); err != nil {
		return fmt.Errorf("creating %s: %w", c.Paths.State, err)
	}
	return nil
}
