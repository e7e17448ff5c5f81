// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/sera/cmd/sera/cli"
	"github.com/bureau-foundation/sera/handlers"
	"github.com/bureau-foundation/sera/lib/config"
	"github.com/bureau-foundation/sera/lib/identity"
	"github.com/bureau-foundation/sera/lib/trust"
	"github.com/bureau-foundation/sera/remote"
)

// DefaultWatcherVariable names the environment variable holding the
// default --watcher.
const DefaultWatcherVariable = "SERA_DEFAULT_WATCHER"

// applicationDef describes a command that runs on a watcher, or
// locally without one.
type applicationDef struct {
	name        string
	summary     string
	description string
	usage       string
	examples    []cli.Example

	// passthrough stops flag parsing at the first positional argument
	// so the rest reaches the handler untouched.
	passthrough bool

	bind   func(flagSet *pflag.FlagSet)
	params func(args []string) (map[string]string, error)
}

// targetFlags select where an application command runs.
type targetFlags struct {
	watcher string
	timeout timeoutValue
	follow  time.Duration
}

func (t *targetFlags) bind(flagSet *pflag.FlagSet) {
	flagSet.StringVarP(&t.watcher, "watcher", "w", os.Getenv(DefaultWatcherVariable),
		"watcher to run the command on (default $"+DefaultWatcherVariable+"; empty runs locally)")
	flagSet.VarP(&t.timeout, "timeout", "t",
		"how long to wait for the response: seconds, a duration, or -1 for no limit (default timeouts.command)")
	flagSet.DurationVar(&t.follow, "follow", 0,
		"after the response, keep printing responses of chained commands until none arrives for this long")
}

func (a *app) applicationCommand(def applicationDef) *cli.Command {
	var target targetFlags
	return &cli.Command{
		Name:        def.name,
		Summary:     def.summary,
		Description: def.description,
		Usage:       def.usage,
		Examples:    def.examples,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet(def.name, pflag.ContinueOnError)
			flagSet.SetInterspersed(!def.passthrough)
			a.bindGlobal(flagSet)
			target.bind(flagSet)
			if def.bind != nil {
				def.bind(flagSet)
			}
			return flagSet
		},
		Run: func(args []string) error {
			params, err := def.params(args)
			if err != nil {
				return err
			}
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			if target.watcher == "" {
				return a.runLocal(cfg, def.name, params)
			}
			return a.runRemote(cfg, def.name, params, &target)
		},
	}
}

// runLocal runs name and its chain on this host.
func (a *app) runLocal(cfg *config.Config, name string, params map[string]string) error {
	logger := a.newLogger(a.debug).With("command", name)
	clients, err := trust.LoadAllowList(cfg.Paths.KnownClients)
	if err != nil {
		return err
	}
	registry := handlers.NewRegistry(handlers.Config{
		Runner:  a.runner,
		Clients: clients,
		EnvFile: cfg.Paths.EnvFile,
	})
	if _, ok := registry.Lookup(name); !ok {
		return fmt.Errorf("%w %q", remote.ErrUnknownCommand, name)
	}

	maxDepth := cfg.MaxChainDepth
	if maxDepth <= 0 {
		maxDepth = remote.DefaultMaxChainDepth
	}
	printer := cli.NewPrinter(a.stdout, a.stderr)
	code := 0
	_, truncated, err := registry.RunChain(a.ctx, name, params, maxDepth, func(step remote.Step) error {
		logger.Debug("ran", "step", step.Name, "return_code", step.Result.ReturnCode)
		printer.Print(step.Result.Stdout, step.Result.Stderr)
		if code == 0 {
			code = step.Result.ReturnCode
		}
		return nil
	})
	if err != nil {
		return err
	}
	if truncated {
		logger.Warn("command chain truncated", "max_chain_depth", maxDepth)
	}
	if code != 0 {
		return &cli.ExitError{Code: code}
	}
	return nil
}

// runRemote sends name to the target watcher and prints its response.
// The exit code mirrors the first non-zero remote return code.
func (a *app) runRemote(cfg *config.Config, name string, params map[string]string, target *targetFlags) error {
	s, err := a.openQueue(cfg, name)
	if err != nil {
		return err
	}
	defer s.Close()

	id, err := a.loadIdentity(cfg)
	if err != nil {
		return err
	}
	defer id.Close()

	watchers, err := trust.LoadCache(cfg.Paths.KnownWatchers)
	if err != nil {
		return err
	}
	master, err := remote.NewMaster(a.ctx, remote.MasterConfig{
		Provider: s.provider,
		Identity: id,
		Watchers: watchers,
		Options:  s.options(a.clock),
	})
	if err != nil {
		return err
	}

	watcherKey, err := master.ExchangeKeys(a.ctx, target.watcher, cfg.Timeouts.Handshake)
	if errors.Is(err, remote.ErrTimeout) {
		return fmt.Errorf("no public key received from %q within %s: %w",
			target.watcher, formatTimeout(cfg.Timeouts.Handshake), err)
	}
	if err != nil {
		return err
	}

	pending, err := master.Post(a.ctx, target.watcher, watcherKey, name, params)
	if err != nil {
		return err
	}
	timeout := target.timeout.or(cfg.Timeouts.Command)
	response, err := master.Await(a.ctx, pending, timeout)
	if errors.Is(err, remote.ErrTimeout) {
		return fmt.Errorf("no response from %q within %s: %w", target.watcher, formatTimeout(timeout), err)
	}
	if err != nil {
		return err
	}

	printer := cli.NewPrinter(a.stdout, a.stderr)
	printer.Print(response.Stdout, response.Stderr)
	code := response.ExitCode()

	for target.follow > 0 {
		next, err := master.Await(a.ctx, pending, target.follow)
		if errors.Is(err, remote.ErrTimeout) {
			break
		}
		if err != nil {
			return err
		}
		printer.Print(next.Stdout, next.Stderr)
		if code == 0 {
			code = next.ExitCode()
		}
	}

	if code != 0 {
		return &cli.ExitError{Code: code}
	}
	return nil
}

func (a *app) applicationCommands() []*cli.Command {
	var (
		allowDelay    int
		disallowDelay int
		encrypt       cryptFlags
		decrypt       cryptFlags
	)

	defs := []applicationDef{
		{
			name:        "echo",
			summary:     "Echo arguments, to test a connection",
			usage:       "sera echo [flags] [ARGS...]",
			passthrough: true,
			examples: []cli.Example{
				{Description: "Check that web1 answers", Command: "sera echo -w web1 hello"},
			},
			params: func(args []string) (map[string]string, error) {
				return map[string]string{"args": strings.Join(args, " ")}, nil
			},
		},
		{
			name:    "allow",
			summary: "Open the firewall to an address, closing it again after a delay",
			description: `Open the firewall (ufw) to an address.

On success the watcher immediately schedules "disallow" for the same
address after --delay minutes.`,
			usage: "sera allow [flags] FROM_IP",
			examples: []cli.Example{
				{Description: "Allow 203.0.113.7 on web1 for two hours", Command: "sera allow -w web1 --delay 120 203.0.113.7"},
			},
			bind: func(flagSet *pflag.FlagSet) {
				flagSet.IntVarP(&allowDelay, "delay", "d", handlers.DefaultAllowMinutes, "minutes until the rule is removed")
			},
			params: func(args []string) (map[string]string, error) {
				if err := exactArgs("allow", args, "FROM_IP"); err != nil {
					return nil, err
				}
				return map[string]string{"from_ip": args[0], "delay": strconv.Itoa(allowDelay)}, nil
			},
		},
		{
			name:    "disallow",
			summary: "Schedule removal of a firewall rule for an address",
			usage:   "sera disallow [flags] FROM_IP",
			bind: func(flagSet *pflag.FlagSet) {
				flagSet.IntVarP(&disallowDelay, "delay", "d", 0, "minutes until the rule is removed")
			},
			params: func(args []string) (map[string]string, error) {
				if err := exactArgs("disallow", args, "FROM_IP"); err != nil {
					return nil, err
				}
				return map[string]string{"from_ip": args[0], "delay": strconv.Itoa(disallowDelay)}, nil
			},
		},
		{
			name:    "add",
			summary: "Authorize a client public key",
			usage:   "sera add [flags] CLIENT_KEY",
			params:  clientKeyParams("add"),
		},
		{
			name:    "revoke",
			summary: "Remove a client public key",
			usage:   "sera revoke [flags] CLIENT_KEY",
			params:  clientKeyParams("revoke"),
		},
		{
			name:    "export",
			summary: "Write VARIABLE=VALUE to the env file, then stop the watcher",
			usage:   "sera export [flags] VARIABLE=VALUE",
			params:  expressionParams("export"),
		},
		{
			name:    "set",
			summary: "Same as export",
			usage:   "sera set [flags] VARIABLE=VALUE",
			params:  expressionParams("set"),
		},
		{
			name:    "end",
			summary: "Stop the watcher after printing a message",
			usage:   "sera end [flags] [MESSAGE...]",
			params: func(args []string) (map[string]string, error) {
				return map[string]string{"message": strings.Join(args, " ")}, nil
			},
		},
		{
			name:    "encrypt",
			summary: "Encrypt files matching a pattern with a passphrase",
			description: `Encrypt files under ROOT whose names match PATTERN.

Each file is written next to the original with an .age suffix. The
passphrase is prompted for when --password is not given.`,
			usage: "sera encrypt [flags] ROOT PATTERN",
			examples: []cli.Example{
				{Description: "Encrypt every log under /var/log/app", Command: "sera encrypt -w web1 -R /var/log/app '*.log'"},
			},
			bind: encrypt.bind,
			params: func(args []string) (map[string]string, error) {
				if err := exactArgs("encrypt", args, "ROOT", "PATTERN"); err != nil {
					return nil, err
				}
				params, err := encrypt.params(a, args[0])
				if err != nil {
					return nil, err
				}
				params["pattern"] = args[1]
				return params, nil
			},
		},
		{
			name:    "decrypt",
			summary: "Decrypt .age files with a passphrase",
			usage:   "sera decrypt [flags] ROOT",
			bind:    decrypt.bind,
			params: func(args []string) (map[string]string, error) {
				if err := exactArgs("decrypt", args, "ROOT"); err != nil {
					return nil, err
				}
				return decrypt.params(a, args[0])
			},
		},
	}

	commands := make([]*cli.Command, 0, len(defs))
	for _, def := range defs {
		commands = append(commands, a.applicationCommand(def))
	}
	return commands
}

type cryptFlags struct {
	recursive bool
	password  string
}

func (f *cryptFlags) bind(flagSet *pflag.FlagSet) {
	flagSet.BoolVarP(&f.recursive, "recursive", "R", false, "descend into subdirectories")
	flagSet.StringVarP(&f.password, "password", "p", "", "passphrase (prompted for when empty)")
}

func (f *cryptFlags) params(a *app, root string) (map[string]string, error) {
	password := f.password
	if password == "" {
		prompted, err := a.readPassword("Enter password: ")
		if err != nil {
			return nil, err
		}
		password = strings.TrimSpace(prompted)
	}
	if password == "" {
		return nil, errors.New("empty password")
	}
	return map[string]string{
		"root":      root,
		"password":  password,
		"recursive": strconv.FormatBool(f.recursive),
	}, nil
}

func clientKeyParams(command string) func(args []string) (map[string]string, error) {
	return func(args []string) (map[string]string, error) {
		if err := exactArgs(command, args, "CLIENT_KEY"); err != nil {
			return nil, err
		}
		if _, err := identity.ParsePublicKey(args[0]); err != nil {
			return nil, err
		}
		return map[string]string{"client_key": args[0]}, nil
	}
}

func expressionParams(command string) func(args []string) (map[string]string, error) {
	return func(args []string) (map[string]string, error) {
		if err := exactArgs(command, args, "VARIABLE=VALUE"); err != nil {
			return nil, err
		}
		if !strings.Contains(args[0], "=") {
			return nil, fmt.Errorf("%s: expected VARIABLE=VALUE, got %q", command, args[0])
		}
		return map[string]string{"expression": args[0]}, nil
	}
}

func exactArgs(command string, args []string, names ...string) error {
	if len(args) != len(names) {
		return fmt.Errorf("usage: sera %s [flags] %s", command, strings.Join(names, " "))
	}
	return nil
}
