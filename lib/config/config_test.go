// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Namespace != "Sera" {
		t.Errorf("Namespace = %q, want Sera", cfg.Namespace)
	}
	if cfg.Backend != BackendSQLite {
		t.Errorf("Backend = %q, want sqlite", cfg.Backend)
	}
	if cfg.Timeouts.Watch >= 0 {
		t.Errorf("Timeouts.Watch = %v, want negative (forever)", cfg.Timeouts.Watch)
	}
	if cfg.DedupWindow() != 180*time.Second {
		t.Errorf("DedupWindow() = %v, want 3m", cfg.DedupWindow())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default().Validate() = %v", err)
	}
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	t.Setenv("SERA_CONFIG", "")
	t.Setenv("HOME", "/home/operator")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Paths.State != "/home/operator/.sera" {
		t.Errorf("Paths.State = %q", cfg.Paths.State)
	}
	if cfg.Paths.KeyFile != "/home/operator/.sera/keys.env" {
		t.Errorf("Paths.KeyFile = %q", cfg.Paths.KeyFile)
	}
	if cfg.SQLite.Path != "/home/operator/.sera/queue.db" {
		t.Errorf("SQLite.Path = %q", cfg.SQLite.Path)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	directory := t.TempDir()
	path := filepath.Join(directory, "sera.yaml")
	content := `
namespace: Lab
backend: redis
redis:
  url: redis://localhost:6379/2
timeouts:
  command: 45s
  watch: 10m
max_chain_depth: 4
paths:
  state: ` + directory + `
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SERA_CONFIG", path)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Namespace != "Lab" || cfg.Backend != BackendRedis {
		t.Errorf("Namespace, Backend = %q, %q", cfg.Namespace, cfg.Backend)
	}
	if cfg.Timeouts.Command != 45*time.Second {
		t.Errorf("Timeouts.Command = %v, want 45s", cfg.Timeouts.Command)
	}
	if cfg.Timeouts.Watch != 10*time.Minute {
		t.Errorf("Timeouts.Watch = %v, want 10m", cfg.Timeouts.Watch)
	}
	// Unset fields keep their defaults.
	if cfg.Timeouts.Handshake != 20*time.Second {
		t.Errorf("Timeouts.Handshake = %v, want default 20s", cfg.Timeouts.Handshake)
	}
	if cfg.MaxChainDepth != 4 {
		t.Errorf("MaxChainDepth = %d, want 4", cfg.MaxChainDepth)
	}
	if cfg.Paths.KnownClients != filepath.Join(directory, "known_clients") {
		t.Errorf("Paths.KnownClients = %q, want under %s", cfg.Paths.KnownClients, directory)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestExplicitPathBeatsEnvironment(t *testing.T) {
	directory := t.TempDir()
	explicit := filepath.Join(directory, "explicit.yaml")
	if err := os.WriteFile(explicit, []byte("namespace: Explicit\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SERA_CONFIG", filepath.Join(directory, "missing.yaml"))

	cfg, err := Load(explicit)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Namespace != "Explicit" {
		t.Errorf("Namespace = %q, want Explicit", cfg.Namespace)
	}
}

func TestParseJSONC(t *testing.T) {
	data := []byte(`{
		// local development queue
		"backend": "memory",
		"timeouts": {"max_poll": "2s",},
		/* trailing commas are allowed */
		"compression": {"algorithm": "lz4", "threshold": 64,},
	}`)

	cfg, err := Parse(data, ".jsonc")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Backend != BackendMemory {
		t.Errorf("Backend = %q, want memory", cfg.Backend)
	}
	if cfg.Timeouts.MaxPoll != 2*time.Second {
		t.Errorf("Timeouts.MaxPoll = %v, want 2s", cfg.Timeouts.MaxPoll)
	}
	if cfg.Compression.Algorithm != "lz4" || cfg.Compression.Threshold != 64 {
		t.Errorf("Compression = %+v", cfg.Compression)
	}
}

func TestExpandVars(t *testing.T) {
	t.Setenv("SERA_TEST_VAR", "from-env")
	vars := map[string]string{"SERA_STATE": "/state"}

	tests := []struct {
		input string
		want  string
	}{
		{"${SERA_STATE}/keys", "/state/keys"},
		{"${SERA_TEST_VAR}", "from-env"},
		{"${SERA_UNSET_VAR:-fallback}", "fallback"},
		{"${SERA_UNSET_VAR}", ""},
		{"plain", "plain"},
	}
	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			if got := expandVars(test.input, vars); got != test.want {
				t.Errorf("expandVars(%q) = %q, want %q", test.input, got, test.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{"bad namespace", func(c *Config) { c.Namespace = "has space" }, "namespace"},
		{"unknown backend", func(c *Config) { c.Backend = "sqs" }, "backend"},
		{"redis without url", func(c *Config) { c.Backend = BackendRedis }, "redis.url"},
		{"zero max poll", func(c *Config) { c.Timeouts.MaxPoll = 0 }, "timeouts.max_poll"},
		{"negative chain depth", func(c *Config) { c.MaxChainDepth = -1 }, "max_chain_depth"},
		{"bad compression", func(c *Config) { c.Compression.Algorithm = "gzip" }, "compression"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := Default()
			test.modify(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !strings.Contains(err.Error(), test.wantErr) {
				t.Errorf("Validate() = %v, want mention of %q", err, test.wantErr)
			}
		})
	}
}

func TestEnsurePaths(t *testing.T) {
	cfg := Default()
	cfg.Paths.State = filepath.Join(t.TempDir(), "nested", "state")
	if err := cfg.EnsurePaths(); err != nil {
		t.Fatalf("EnsurePaths: %v", err)
	}
	info, err := os.Stat(cfg.Paths.State)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0700 {
		t.Errorf("state directory mode = %v, want 0700", info.Mode().Perm())
	}
}
