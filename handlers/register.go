// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"github.com/bureau-foundation/sera/lib/trust"
	"github.com/bureau-foundation/sera/remote"
)

// Config supplies the state handlers act on.
type Config struct {
	// Runner runs external programs. Defaults to ExecRunner.
	Runner Runner

	// Clients is the allow-list add and revoke modify. Without one,
	// those commands are not registered.
	Clients *trust.AllowList

	// EnvFile is the file export and set write to. Without one, those
	// commands are not registered.
	EnvFile string

	// WorkFactor is the scrypt cost for encrypt. Zero keeps age's
	// default.
	WorkFactor int
}

// Register installs every handler cfg allows into registry.
func Register(registry *remote.Registry, cfg Config) {
	runner := cfg.Runner
	if runner == nil {
		runner = ExecRunner{}
	}

	registry.Register("echo", Echo{Runner: runner})
	registry.Register("allow", Allow{Runner: runner})
	registry.Register("disallow", Disallow{Runner: runner})
	registry.Register("end", End{})
	registry.Register("encrypt", Encrypt{WorkFactor: cfg.WorkFactor})
	registry.Register("decrypt", Decrypt{})

	if cfg.Clients != nil {
		registry.Register("add", AddClient{Clients: cfg.Clients})
		registry.Register("revoke", RevokeClient{Clients: cfg.Clients})
	}
	if cfg.EnvFile != "" {
		registry.Register("export", Export{Path: cfg.EnvFile, Verb: "exported"})
		registry.Register("set", Export{Path: cfg.EnvFile, Verb: "set"})
	}
}

// NewRegistry returns a registry holding every handler cfg allows.
func NewRegistry(cfg Config) *remote.Registry {
	registry := remote.NewRegistry()
	Register(registry, cfg)
	return registry
}
