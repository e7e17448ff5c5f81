// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/sera/cmd/sera/cli"
	"github.com/bureau-foundation/sera/handlers"
	"github.com/bureau-foundation/sera/lib/identity"
	"github.com/bureau-foundation/sera/lib/trust"
	"github.com/bureau-foundation/sera/metrics"
	"github.com/bureau-foundation/sera/remote"
)

func (a *app) watchCommand() *cli.Command {
	var (
		name        string
		clients     []string
		timeout     timeoutValue
		metricsAddr string
	)

	return &cli.Command{
		Name:    "watch",
		Summary: "Receive and run commands from authorized clients",
		Description: `Listen on an endpoint and run the commands authorized clients send.

The endpoint is normally created by the first master that addresses
this watcher; until then watch waits for it. Only keys in the known
clients file (paths.known_clients) may run commands. Any peer may ask
for this watcher's public key.

The session ends after --timeout, when a client sends "end", or on
SIGINT/SIGTERM.

With --metrics-addr, Prometheus counters for received, dropped and
handled messages are served at /metrics on that address.`,
		Usage: "sera watch [--name NAME] [--client KEY]... [--timeout D] [--metrics-addr ADDR]",
		Examples: []cli.Example{
			{Description: "Watch as this host, forever", Command: "sera watch"},
			{Description: "Authorize a client and watch for ten minutes", Command: "sera watch --name web1 --client <public key> --timeout 10m"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("watch", pflag.ContinueOnError)
			a.bindGlobal(flagSet)
			flagSet.StringVarP(&name, "name", "n", "", "endpoint name to watch (default: hostname)")
			flagSet.StringArrayVarP(&clients, "client", "c", nil, "public key to add to the known clients (repeatable)")
			flagSet.VarP(&timeout, "timeout", "t", "session length: seconds, a duration, or -1 for no limit (default timeouts.watch)")
			flagSet.StringVar(&metricsAddr, "metrics-addr", "", "serve /metrics and /healthz on this address (e.g. 127.0.0.1:9464)")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("watch takes no arguments, got %q", args[0])
			}
			if name == "" {
				hostname, err := os.Hostname()
				if err != nil {
					return fmt.Errorf("no --name given and hostname unavailable: %w", err)
				}
				name = hostname
			}

			s, err := a.openSession("watch")
			if err != nil {
				return err
			}
			defer s.Close()

			id, err := a.loadIdentity(s.config)
			if err != nil {
				return err
			}
			defer id.Close()

			allowed, err := trust.LoadAllowList(s.config.Paths.KnownClients)
			if err != nil {
				return err
			}
			for _, encoded := range clients {
				key, err := identity.ParsePublicKey(encoded)
				if err != nil {
					return fmt.Errorf("--client: %w", err)
				}
				if added, err := allowed.Add(key); err != nil {
					return err
				} else if added {
					s.logger.Info("client added", "fingerprint", identity.Fingerprint(key))
				}
			}

			options := s.options(a.clock)
			if metricsAddr != "" {
				collectors := metrics.NewWatcher(name)
				server, err := metrics.Listen(metricsAddr, collectors.Handler(), s.logger)
				if err != nil {
					return err
				}
				defer func() {
					ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					server.Shutdown(ctx)
				}()
				options.Observer = collectors
			}

			watcher, err := remote.NewWatcher(remote.WatcherConfig{
				Provider: s.provider,
				Identity: id,
				Name:     name,
				Clients:  allowed,
				Handlers: handlers.NewRegistry(handlers.Config{
					Runner:  a.runner,
					Clients: allowed,
					EnvFile: s.config.Paths.EnvFile,
				}),
				Timeout:       timeout.or(s.config.Timeouts.Watch),
				MaxChainDepth: s.config.MaxChainDepth,
				Options:       options,
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(a.ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			fmt.Fprintf(a.stderr, "Watching %s (timeout %s)\n", name, formatTimeout(timeout.or(s.config.Timeouts.Watch)))
			err = watcher.Watch(ctx)
			if errors.Is(err, context.Canceled) {
				s.logger.Info("watch interrupted", "endpoint", name)
				return nil
			}
			return err
		},
	}
}
