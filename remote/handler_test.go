// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"context"
	"errors"
	"strconv"
	"testing"
)

func TestRegistryRun(t *testing.T) {
	registry := NewRegistry()
	registry.Register("ok", HandlerFunc(func(context.Context, map[string]string) (Result, error) {
		return Result{Stdout: "done"}, nil
	}))
	registry.Register("fails", HandlerFunc(func(context.Context, map[string]string) (Result, error) {
		return Result{Stderr: "partial"}, errors.New("disk full")
	}))
	registry.Register("fails-with-code", HandlerFunc(func(context.Context, map[string]string) (Result, error) {
		return Result{ReturnCode: 4}, errors.New("bad input")
	}))

	tests := []struct {
		name       string
		wantStdout string
		wantStderr string
		wantCode   int
	}{
		{"ok", "done", "", 0},
		{"fails", "", "partial\ndisk full", 1},
		{"fails-with-code", "", "bad input", 4},
		{"missing", "", `unknown command "missing"`, ReturnCodeUnknownCommand},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := registry.Run(context.Background(), test.name, nil)
			if result.Stdout != test.wantStdout || result.Stderr != test.wantStderr || result.ReturnCode != test.wantCode {
				t.Errorf("Run = {%q %q %d}, want {%q %q %d}",
					result.Stdout, result.Stderr, result.ReturnCode,
					test.wantStdout, test.wantStderr, test.wantCode)
			}
		})
	}
}

func TestRegistryRejectsReservedAndDuplicateNames(t *testing.T) {
	noop := HandlerFunc(func(context.Context, map[string]string) (Result, error) { return Result{}, nil })
	for _, name := range []string{"", HandshakeCommand, "twice"} {
		t.Run(name, func(t *testing.T) {
			registry := NewRegistry()
			registry.Register("twice", noop)
			defer func() {
				if recover() == nil {
					t.Errorf("Register(%q) did not panic", name)
				}
			}()
			registry.Register(name, noop)
		})
	}
}

func TestRegistryNamesSorted(t *testing.T) {
	registry := NewRegistry()
	noop := HandlerFunc(func(context.Context, map[string]string) (Result, error) { return Result{}, nil })
	for _, name := range []string{"echo", "allow", "end"} {
		registry.Register(name, noop)
	}
	names := registry.Names()
	if len(names) != 3 || names[0] != "allow" || names[1] != "echo" || names[2] != "end" {
		t.Errorf("Names() = %v", names)
	}
}

// countdownRegistry registers "step", which chains to itself with
// remaining-1 until remaining reaches zero, and "loop", which always
// chains to itself.
func countdownRegistry() *Registry {
	registry := NewRegistry()
	registry.Register("step", HandlerFunc(func(_ context.Context, params map[string]string) (Result, error) {
		remaining, err := strconv.Atoi(params["remaining"])
		if err != nil {
			return Result{}, err
		}
		result := Result{Stdout: params["remaining"]}
		if remaining > 0 {
			result.Next = &Chain{Name: "step", Params: map[string]string{"remaining": strconv.Itoa(remaining - 1)}}
		}
		return result, nil
	}))
	registry.Register("loop", HandlerFunc(func(_ context.Context, params map[string]string) (Result, error) {
		return Result{Next: &Chain{Name: "loop", Params: params}}, nil
	}))
	return registry
}

func TestRunChain(t *testing.T) {
	registry := countdownRegistry()
	for _, depth := range []int{0, 1, 5} {
		t.Run(strconv.Itoa(depth), func(t *testing.T) {
			var steps []Step
			_, truncated, err := registry.RunChain(context.Background(), "step",
				map[string]string{"remaining": strconv.Itoa(depth)}, DefaultMaxChainDepth,
				func(step Step) error {
					steps = append(steps, step)
					return nil
				})
			if err != nil || truncated {
				t.Fatalf("RunChain: truncated=%v err=%v", truncated, err)
			}
			if len(steps) != depth+1 {
				t.Fatalf("emitted %d steps, want %d", len(steps), depth+1)
			}
			for index, step := range steps {
				want := strconv.Itoa(depth - index)
				if step.Params["remaining"] != want || step.Result.Stdout != want {
					t.Errorf("step %d: params %v stdout %q, want remaining %s", index, step.Params, step.Result.Stdout, want)
				}
			}
		})
	}
}

func TestRunChainBounded(t *testing.T) {
	registry := countdownRegistry()
	count := 0
	_, truncated, err := registry.RunChain(context.Background(), "loop", nil, 3, func(Step) error {
		count++
		return nil
	})
	if err != nil {
		t.Fatalf("RunChain: %v", err)
	}
	if !truncated {
		t.Error("self-chaining handler was not truncated")
	}
	if count != 4 {
		t.Errorf("emitted %d steps, want 4", count)
	}
}

func TestRunChainStopsOnExit(t *testing.T) {
	registry := NewRegistry()
	registry.Register("end", HandlerFunc(func(context.Context, map[string]string) (Result, error) {
		return Result{Exit: true, Next: &Chain{Name: "end"}}, nil
	}))
	count := 0
	last, _, err := registry.RunChain(context.Background(), "end", nil, 3, func(Step) error {
		count++
		return nil
	})
	if err != nil || !last.Exit || count != 1 {
		t.Errorf("RunChain: exit=%v count=%d err=%v", last.Exit, count, err)
	}
}
