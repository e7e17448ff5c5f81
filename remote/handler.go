// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// ReturnCodeUnknownCommand is the return code sent for a command name
// with no registered handler.
const ReturnCodeUnknownCommand = 127

// Handler runs one named command.
//
// A returned error is reported to the sender in-band: the response
// carries return code 1 (unless the Result already has a non-zero
// code) and the error text on stderr. It never stops the dispatch
// loop.
type Handler interface {
	Run(ctx context.Context, params map[string]string) (Result, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, params map[string]string) (Result, error)

func (f HandlerFunc) Run(ctx context.Context, params map[string]string) (Result, error) {
	return f(ctx, params)
}

// Result is a handler's outcome.
type Result struct {
	Stdout     string
	Stderr     string
	ReturnCode int

	// Next asks the dispatch loop to run another command immediately,
	// without a round trip to the master. Its response is sent to the
	// same master under the same request ID.
	Next *Chain

	// Exit stops the dispatch loop once this result's response has
	// been sent.
	Exit bool
}

// Chain names the follow-up command a handler requests.
type Chain struct {
	Name   string
	Params map[string]string
}

// Registry maps command names to handlers. Register everything before
// the registry is shared; lookups are not synchronized with
// registration.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds handler under name. It panics on an empty or duplicate
// name, or on the reserved handshake name.
func (r *Registry) Register(name string, handler Handler) {
	switch {
	case name == "":
		panic("remote: Register with empty command name")
	case name == HandshakeCommand:
		panic("remote: " + HandshakeCommand + " is handled by the protocol")
	case r.handlers[name] != nil:
		panic("remote: duplicate handler for " + name)
	}
	r.handlers[name] = handler
}

// Lookup returns the handler registered under name.
func (r *Registry) Lookup(name string) (Handler, bool) {
	handler, ok := r.handlers[name]
	return handler, ok
}

// Names returns the registered command names, sorted.
func (r *Registry) Names() []string {
	return slices.Sorted(maps.Keys(r.handlers))
}

// Run runs the named handler and folds errors into the Result. An
// unknown name yields ReturnCodeUnknownCommand.
func (r *Registry) Run(ctx context.Context, name string, params map[string]string) Result {
	handler, ok := r.handlers[name]
	if !ok {
		return Result{
			Stderr:     fmt.Sprintf("unknown command %q", name),
			ReturnCode: ReturnCodeUnknownCommand,
		}
	}
	if params == nil {
		params = map[string]string{}
	}
	result, err := handler.Run(ctx, params)
	if err != nil {
		if result.ReturnCode == 0 {
			result.ReturnCode = 1
		}
		if result.Stderr != "" && !strings.HasSuffix(result.Stderr, "\n") {
			result.Stderr += "\n"
		}
		result.Stderr += err.Error()
	}
	return result
}

// Step is one executed link of a command chain.
type Step struct {
	Name   string
	Params map[string]string
	Result Result
}

// RunChain runs name and then every command its results chain to, at
// most maxDepth follow-ups. emit is called after each step; a non-nil
// error from emit stops the chain and is returned. truncated reports
// whether the depth bound cut the chain short.
func (r *Registry) RunChain(ctx context.Context, name string, params map[string]string, maxDepth int, emit func(Step) error) (last Result, truncated bool, err error) {
	for depth := 0; ; depth++ {
		last = r.Run(ctx, name, params)
		if err := emit(Step{Name: name, Params: params, Result: last}); err != nil {
			return last, false, err
		}
		if last.Exit || last.Next == nil {
			return last, false, nil
		}
		if depth >= maxDepth {
			return last, true, nil
		}
		if err := ctx.Err(); err != nil {
			return last, false, err
		}
		name, params = last.Next.Name, last.Next.Params
	}
}
