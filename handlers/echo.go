// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"context"
	"strings"

	"github.com/bureau-foundation/sera/remote"
)

// Echo runs echo(1) with the space-separated words of the args param.
// It is the connectivity test command.
type Echo struct {
	Runner Runner
}

func (h Echo) Run(ctx context.Context, params map[string]string) (remote.Result, error) {
	output, err := h.Runner.Run(ctx, "", "echo", strings.Fields(params["args"])...)
	if err != nil {
		return remote.Result{}, err
	}
	return output.result(), nil
}
