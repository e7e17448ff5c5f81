// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"context"
	"errors"

	"github.com/bureau-foundation/sera/queue"
)

// Endpoint is a resolved queue channel.
type Endpoint struct {
	// Name is the logical name the endpoint was resolved from. The
	// provider sanitizes and namespaces it.
	Name string

	URL string

	// Owner is true when this process created the channel.
	Owner bool
}

// ResolveOrCreate resolves name to an endpoint. When the channel does
// not exist and create is false, the error wraps
// queue.ErrEndpointNotFound and the caller is expected to poll. At most
// one CreateEndpoint call is made.
func ResolveOrCreate(ctx context.Context, provider queue.Provider, name string, create bool) (*Endpoint, error) {
	url, err := provider.GetEndpoint(ctx, name)
	if err == nil {
		return &Endpoint{Name: name, URL: url}, nil
	}
	if !errors.Is(err, queue.ErrEndpointNotFound) || !create {
		return nil, err
	}
	url, err = provider.CreateEndpoint(ctx, name)
	if err != nil {
		return nil, err
	}
	return &Endpoint{Name: name, URL: url, Owner: true}, nil
}
