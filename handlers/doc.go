// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package handlers holds the commands a sera watcher can run: echo,
// firewall allow and disallow, client key management, env file
// exports, file encryption, and end.
//
// Each handler is a [remote.Handler]. [Register] installs all of them
// into a [remote.Registry]; the same registry serves the watcher's
// dispatch loop and commands run locally by the CLI.
package handlers
