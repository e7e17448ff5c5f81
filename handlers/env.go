// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/bureau-foundation/sera/lib/envfile"
	"github.com/bureau-foundation/sera/remote"
)

// Export writes the expression param, VARIABLE=VALUE, into the env
// file and chains to end: a watcher re-reads its environment only on
// restart. Verb is the word used in the farewell message ("exported"
// or "set").
type Export struct {
	Path string
	Verb string
}

func (h Export) Run(_ context.Context, params map[string]string) (remote.Result, error) {
	variable, value, ok := strings.Cut(params["expression"], "=")
	if !ok {
		return remote.Result{}, fmt.Errorf("expression must be VARIABLE=VALUE, got %q", params["expression"])
	}
	variable = strings.TrimSpace(variable)
	if err := envfile.Set(h.Path, variable, value); err != nil {
		return remote.Result{}, err
	}

	verb := h.Verb
	if verb == "" {
		verb = "exported"
	}
	return remote.Result{
		Next: &remote.Chain{
			Name:   "end",
			Params: map[string]string{"message": fmt.Sprintf("%s %s; exiting...", verb, variable)},
		},
	}, nil
}

// End prints the message param and stops the dispatch loop.
type End struct{}

func (End) Run(_ context.Context, params map[string]string) (remote.Result, error) {
	message := params["message"]
	if message != "" && !strings.HasSuffix(message, "\n") {
		message += "\n"
	}
	return remote.Result{Stdout: message, Exit: true}, nil
}
