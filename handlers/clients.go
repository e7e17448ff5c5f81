// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"context"
	"fmt"

	"github.com/bureau-foundation/sera/lib/identity"
	"github.com/bureau-foundation/sera/lib/trust"
	"github.com/bureau-foundation/sera/remote"
)

// AddClient authorizes the client_key param. The change is persisted
// when the allow-list is file backed and takes effect for the next
// command the watcher receives.
type AddClient struct {
	Clients *trust.AllowList
}

func (h AddClient) Run(_ context.Context, params map[string]string) (remote.Result, error) {
	key, err := clientKey(params)
	if err != nil {
		return remote.Result{}, err
	}
	added, err := h.Clients.Add(key)
	if err != nil {
		return remote.Result{}, err
	}
	if !added {
		return remote.Result{Stdout: fmt.Sprintf("client %s already allowed\n", identity.Fingerprint(key))}, nil
	}
	return remote.Result{Stdout: fmt.Sprintf("added client %s\n", identity.Fingerprint(key))}, nil
}

// RevokeClient removes the client_key param from the allow-list.
type RevokeClient struct {
	Clients *trust.AllowList
}

func (h RevokeClient) Run(_ context.Context, params map[string]string) (remote.Result, error) {
	key, err := clientKey(params)
	if err != nil {
		return remote.Result{}, err
	}
	removed, err := h.Clients.Remove(key)
	if err != nil {
		return remote.Result{}, err
	}
	if !removed {
		return remote.Result{
			Stderr:     fmt.Sprintf("client %s was not allowed\n", identity.Fingerprint(key)),
			ReturnCode: 1,
		}, nil
	}
	return remote.Result{Stdout: fmt.Sprintf("revoked client %s\n", identity.Fingerprint(key))}, nil
}

func clientKey(params map[string]string) (identity.PublicKey, error) {
	encoded := params["client_key"]
	if encoded == "" {
		return identity.PublicKey{}, fmt.Errorf("client_key is required")
	}
	key, err := identity.ParsePublicKey(encoded)
	if err != nil {
		return identity.PublicKey{}, fmt.Errorf("client_key: %w", err)
	}
	return key, nil
}
