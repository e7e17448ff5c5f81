// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// exitCoder is implemented by errors that carry their own process exit
// code, such as a remote command's non-zero return code.
type exitCoder interface {
	ExitCode() int
}

// Fatal writes "error: err" to stderr and exits. The exit code is the
// one carried by err when it has an ExitCode method, 1 otherwise.
func Fatal(err error) {
	os.Exit(Report(os.Stderr, err))
}

// Report writes err to w in Fatal's format and returns the exit code
// Fatal would use. An error whose message is empty is not printed:
// its code is the whole report.
func Report(w io.Writer, err error) int {
	code := 1
	var coder exitCoder
	if errors.As(err, &coder) {
		code = coder.ExitCode()
	}
	if message := err.Error(); message != "" {
		fmt.Fprintf(w, "error: %s\n", message)
	}
	return code
}
