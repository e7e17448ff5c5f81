// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/sera/cmd/sera/cli"
	"github.com/bureau-foundation/sera/queue"
	"github.com/bureau-foundation/sera/remote"
)

func (a *app) endpointCommand() *cli.Command {
	return &cli.Command{
		Name:    "endpoint",
		Summary: "Create or delete queue endpoints",
		Description: `Create or delete queue endpoints.

Masters create the endpoints they need on first use. Creating a
watcher's endpoint ahead of time lets "sera watch" start listening
without waiting for the first master.`,
		Subcommands: []*cli.Command{
			a.endpointCreateCommand(),
			a.endpointDeleteCommand(),
		},
	}
}

func (a *app) endpointFlags(name string) func() *pflag.FlagSet {
	return func() *pflag.FlagSet {
		flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
		a.bindGlobal(flagSet)
		return flagSet
	}
}

func (a *app) endpointCreateCommand() *cli.Command {
	return &cli.Command{
		Name:    "create",
		Summary: "Create endpoints, printing their URLs",
		Usage:   "sera endpoint create NAME...",
		Examples: []cli.Example{
			{Description: "Prepare the endpoint for watcher web1", Command: "sera endpoint create web1"},
		},
		Flags: a.endpointFlags("create"),
		Run: func(args []string) error {
			if len(args) == 0 {
				return errors.New("usage: sera endpoint create NAME...")
			}
			s, err := a.openSession("endpoint/create")
			if err != nil {
				return err
			}
			defer s.Close()

			for _, name := range args {
				endpoint, err := remote.ResolveOrCreate(a.ctx, s.provider, name, true)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.stdout, "%s\t%s\n", endpoint.Name, endpoint.URL)
			}
			return nil
		},
	}
}

func (a *app) endpointDeleteCommand() *cli.Command {
	return &cli.Command{
		Name:    "delete",
		Summary: "Delete endpoints and their pending messages",
		Usage:   "sera endpoint delete NAME...",
		Flags:   a.endpointFlags("delete"),
		Run: func(args []string) error {
			if len(args) == 0 {
				return errors.New("usage: sera endpoint delete NAME...")
			}
			s, err := a.openSession("endpoint/delete")
			if err != nil {
				return err
			}
			defer s.Close()

			for _, name := range args {
				url, err := s.provider.GetEndpoint(a.ctx, name)
				if errors.Is(err, queue.ErrEndpointNotFound) {
					return fmt.Errorf("no endpoint named %q", name)
				}
				if err != nil {
					return err
				}
				if err := s.provider.DeleteEndpoint(a.ctx, url); err != nil {
					return fmt.Errorf("deleting %q: %w", name, err)
				}
				s.logger.Info("endpoint deleted", "endpoint", name)
			}
			return nil
		},
	}
}
