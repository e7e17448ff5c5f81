// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Sera runs commands on remote hosts through a message queue. See
// "sera --help".
package main

import (
	"os"

	"github.com/bureau-foundation/sera/cmd/sera/commands"
	"github.com/bureau-foundation/sera/lib/process"
)

func main() {
	if err := run(); err != nil {
		// A remote command's non-zero return code arrives as an error
		// carrying the code; its output has already been printed.
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		process.Fatal(err)
	}
}

func run() error {
	return commands.Root().Execute(os.Args[1:])
}
