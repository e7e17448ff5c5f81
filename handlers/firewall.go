// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"context"
	"fmt"
	"net/netip"
	"strconv"

	"github.com/bureau-foundation/sera/remote"
)

// DefaultAllowMinutes is how long an allow rule stays before the
// scheduled disallow removes it.
const DefaultAllowMinutes = 60

// Allow opens the firewall for the from_ip param with ufw, then chains
// to disallow so that the rule is removed after delay minutes.
type Allow struct {
	Runner Runner
}

func (h Allow) Run(ctx context.Context, params map[string]string) (remote.Result, error) {
	address, err := parseAddress(params["from_ip"])
	if err != nil {
		return remote.Result{}, err
	}
	delay, err := parseMinutes(params["delay"], DefaultAllowMinutes)
	if err != nil {
		return remote.Result{}, err
	}

	output, err := h.Runner.Run(ctx, "", "ufw", "allow", "from", address.String())
	if err != nil {
		return remote.Result{}, err
	}
	result := output.result()
	if result.ReturnCode != 0 {
		return result, nil
	}
	result.Stdout += fmt.Sprintf("Resetting firewall on %s in %d minutes\n", address, delay)
	result.Next = &remote.Chain{
		Name: "disallow",
		Params: map[string]string{
			"from_ip": address.String(),
			"delay":   strconv.Itoa(delay),
		},
	}
	return result, nil
}

// Disallow schedules removal of the allow rule for from_ip with at(1),
// delay minutes from now.
type Disallow struct {
	Runner Runner
}

func (h Disallow) Run(ctx context.Context, params map[string]string) (remote.Result, error) {
	address, err := parseAddress(params["from_ip"])
	if err != nil {
		return remote.Result{}, err
	}
	delay, err := parseMinutes(params["delay"], 0)
	if err != nil {
		return remote.Result{}, err
	}

	job := fmt.Sprintf("ufw delete allow from %s\n", address)
	output, err := h.Runner.Run(ctx, job, "at", "now", "+", strconv.Itoa(delay), "minutes")
	if err != nil {
		return remote.Result{}, err
	}
	return output.result(), nil
}

func parseAddress(value string) (netip.Addr, error) {
	if value == "" {
		return netip.Addr{}, fmt.Errorf("from_ip is required")
	}
	address, err := netip.ParseAddr(value)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("from_ip: %w", err)
	}
	return address, nil
}

func parseMinutes(value string, fallback int) (int, error) {
	if value == "" {
		return fallback, nil
	}
	minutes, err := strconv.Atoi(value)
	if err != nil || minutes < 0 {
		return 0, fmt.Errorf("delay must be a non-negative number of minutes, got %q", value)
	}
	return minutes, nil
}
