// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bureau-foundation/sera/cmd/sera/cli"
	"github.com/bureau-foundation/sera/handlers"
	"github.com/bureau-foundation/sera/lib/clock"
	"github.com/bureau-foundation/sera/lib/config"
	"github.com/bureau-foundation/sera/lib/envfile"
	"github.com/bureau-foundation/sera/lib/identity"
	"github.com/bureau-foundation/sera/queue"
	"github.com/bureau-foundation/sera/lib/version"
	"github.com/bureau-foundation/sera/remote"
)

// Key file variable names.
const (
	PublicKeyVariable  = "SERA_PUBLIC_KEY"
	PrivateKeyVariable = "SERA_PRIVATE_KEY"
)

// app holds what every command shares: output streams, the clock,
// and the global flags. Tests build one with buffers and fakes.
type app struct {
	ctx    context.Context
	stdout io.Writer
	stderr io.Writer
	clock  clock.Clock

	// runner executes external programs for locally run commands and
	// the watcher's handlers.
	runner handlers.Runner

	// readPassword prompts for a passphrase without echo.
	readPassword func(prompt string) (string, error)

	newLogger func(debug bool) *slog.Logger

	configPath string
	debug      bool
}

func newApp() *app {
	return &app{
		ctx:          context.Background(),
		stdout:       os.Stdout,
		stderr:       os.Stderr,
		clock:        clock.Real(),
		runner:       handlers.ExecRunner{},
		readPassword: promptPassword,
		newLogger:    cli.NewCommandLogger,
	}
}

// Root returns the sera command tree.
func Root() *cli.Command {
	return newApp().root()
}

func (a *app) root() *cli.Command {
	subcommands := []*cli.Command{
		a.keygenCommand(),
		a.watchCommand(),
		a.endpointCommand(),
	}
	subcommands = append(subcommands, a.applicationCommands()...)
	subcommands = append(subcommands, &cli.Command{
		Name:    "version",
		Summary: "Print version information",
		Run: func(args []string) error {
			fmt.Fprintf(a.stdout, "sera %s\n", version.Full())
			return nil
		},
	})

	return &cli.Command{
		Name:    "sera",
		Summary: "Run commands on remote hosts through a message queue",
		Description: `Run commands on remote hosts through a message queue.

A watcher listens on a named endpoint and runs the commands that
authorized clients send it. Every command except the initial key
exchange is encrypted for its recipient. Without --watcher, an
application command runs on the local host instead.`,
		Examples: []cli.Example{
			{Description: "Create and store a keypair", Command: "sera keygen --write"},
			{Description: "Serve commands from one client", Command: "sera watch --name web1 --client <public key>"},
			{Description: "Run echo on web1", Command: "sera echo -w web1 hello world"},
		},
		Subcommands: subcommands,
		Output:      a.stderr,
	}
}

// bindGlobal adds the flags every command accepts.
func (a *app) bindGlobal(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&a.configPath, "config", "", "configuration file (default $SERA_CONFIG, then built-in defaults)")
	flagSet.BoolVar(&a.debug, "debug", false, "log at debug level")
}

// session is an opened configuration and queue backend.
type session struct {
	config   *config.Config
	logger   *slog.Logger
	provider queue.Provider
	close    func() error
}

func (s *session) Close() error {
	return s.close()
}

// options returns the protocol options derived from the configuration.
func (s *session) options(c clock.Clock) remote.Options {
	return remote.Options{
		Clock:       c,
		Logger:      s.logger,
		DedupWindow: s.config.DedupWindow(),
		MaxBackoff:  s.config.Timeouts.MaxBackoff,
	}
}

// loadConfig reads and validates the configuration and creates the
// state directory.
func (a *app) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.EnsurePaths(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openSession loads the configuration and opens the queue backend.
func (a *app) openSession(command string) (*session, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	return a.openQueue(cfg, command)
}

func (a *app) openQueue(cfg *config.Config, command string) (*session, error) {
	logger := a.newLogger(a.debug).With("command", command)
	provider, closeProvider, err := queue.Open(a.ctx, cfg, logger, a.clock)
	if err != nil {
		return nil, fmt.Errorf("opening %s queue: %w", cfg.Backend, err)
	}
	return &session{config: cfg, logger: logger, provider: provider, close: closeProvider}, nil
}

// loadIdentity reads the keypair from the environment, falling back to
// the key file.
func (a *app) loadIdentity(cfg *config.Config) (*identity.Identity, error) {
	values, err := envfile.Read(cfg.Paths.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("reading key file: %w", err)
	}
	publicKey := values[PublicKeyVariable]
	privateKey := values[PrivateKeyVariable]
	if value := os.Getenv(PublicKeyVariable); value != "" {
		publicKey = value
	}
	if value := os.Getenv(PrivateKeyVariable); value != "" {
		privateKey = value
	}
	if publicKey == "" || privateKey == "" {
		return nil, fmt.Errorf("no keypair in %s or the environment; run 'sera keygen --write' first", cfg.Paths.KeyFile)
	}
	id, err := identity.Load(publicKey, privateKey)
	if err != nil {
		return nil, fmt.Errorf("loading keypair from %s: %w", cfg.Paths.KeyFile, err)
	}
	return id, nil
}

func promptPassword(prompt string) (string, error) {
	descriptor := int(os.Stdin.Fd())
	if !term.IsTerminal(descriptor) {
		return "", errors.New("no password given and stdin is not a terminal; use --password")
	}
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(descriptor)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(password), nil
}
