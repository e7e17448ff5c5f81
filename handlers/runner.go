// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/bureau-foundation/sera/remote"
)

// DefaultCommandTimeout bounds a single external command.
const DefaultCommandTimeout = 12 * time.Minute

// Output is what an external command produced.
type Output struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner runs external programs. Tests substitute a fake.
type Runner interface {
	// Run executes name with args, feeding stdin. A non-zero exit is
	// reported in Output, not as an error; err is for programs that
	// could not be started or were killed.
	Run(ctx context.Context, stdin string, name string, args ...string) (Output, error)
}

// ExecRunner runs programs with os/exec.
type ExecRunner struct {
	// Timeout bounds each command. Defaults to DefaultCommandTimeout.
	Timeout time.Duration
}

func (r ExecRunner) Run(ctx context.Context, stdin string, name string, args ...string) (Output, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	command := exec.CommandContext(ctx, name, args...)
	command.Stdout = &stdout
	command.Stderr = &stderr
	if stdin != "" {
		command.Stdin = strings.NewReader(stdin)
	}

	err := command.Run()
	output := Output{Stdout: stdout.String(), Stderr: stderr.String()}
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return output, nil
	case errors.As(err, &exitErr) && ctx.Err() == nil:
		output.ExitCode = exitErr.ExitCode()
		return output, nil
	default:
		return output, fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
}

// result converts an Output into a handler Result.
func (o Output) result() remote.Result {
	return remote.Result{Stdout: o.Stdout, Stderr: o.Stderr, ReturnCode: o.ExitCode}
}
