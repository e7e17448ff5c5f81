// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/sera/cmd/sera/cli"
	"github.com/bureau-foundation/sera/lib/envfile"
	"github.com/bureau-foundation/sera/lib/identity"
)

func (a *app) keygenCommand() *cli.Command {
	var write, force bool

	return &cli.Command{
		Name:    "keygen",
		Summary: "Generate a keypair",
		Description: `Generate a Curve25519 keypair for encrypting commands.

Without --write, both keys are printed as KEY=VALUE lines. With --write,
they are stored in the configured key file (paths.key_file) and only the
public key is printed. Give the public key to the watchers that should
accept your commands ("sera watch --client KEY" or "sera add KEY").`,
		Usage: "sera keygen [--write [--force]]",
		Examples: []cli.Example{
			{Description: "Store a new keypair", Command: "sera keygen --write"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("keygen", pflag.ContinueOnError)
			a.bindGlobal(flagSet)
			flagSet.BoolVar(&write, "write", false, "write the keypair to the key file")
			flagSet.BoolVar(&force, "force", false, "replace a keypair already in the key file")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("keygen takes no arguments, got %q", args[0])
			}

			id, err := identity.Generate()
			if err != nil {
				return err
			}
			defer id.Close()
			publicKey := id.PublicKey().String()

			if !write {
				fmt.Fprintf(a.stdout, "%s=%s\n%s=%s\n",
					PublicKeyVariable, publicKey,
					PrivateKeyVariable, id.ExportPrivateKey())
				return nil
			}

			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			values, err := envfile.Read(cfg.Paths.KeyFile)
			if err != nil {
				return fmt.Errorf("reading key file: %w", err)
			}
			if values[PrivateKeyVariable] != "" && !force {
				return errors.New("key file " + cfg.Paths.KeyFile + " already holds a keypair; use --force to replace it")
			}
			values[PublicKeyVariable] = publicKey
			values[PrivateKeyVariable] = id.ExportPrivateKey()
			if err := envfile.Write(cfg.Paths.KeyFile, values); err != nil {
				return fmt.Errorf("writing key file: %w", err)
			}

			fmt.Fprintln(a.stdout, publicKey)
			fmt.Fprintf(a.stderr, "keypair written to %s (fingerprint %s)\n",
				cfg.Paths.KeyFile, identity.Fingerprint(id.PublicKey()))
			return nil
		},
	}
}
