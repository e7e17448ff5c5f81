// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package trust

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/bureau-foundation/sera/lib/envfile"
	"github.com/bureau-foundation/sera/lib/identity"
)

// Cache maps peer logical names to their public keys. A name maps to
// exactly one key; Put overwrites.
type Cache struct {
	path string

	mu    sync.RWMutex
	peers map[string]identity.PublicKey
}

// NewCache returns an empty in-memory cache.
func NewCache() *Cache {
	return &Cache{peers: make(map[string]identity.PublicKey)}
}

// LoadCache reads the cache persisted at path. Later calls to Put write
// back to the same file. A missing file yields an empty cache.
func LoadCache(path string) (*Cache, error) {
	values, err := envfile.Read(path)
	if err != nil {
		return nil, fmt.Errorf("loading trust cache: %w", err)
	}
	cache := &Cache{path: path, peers: make(map[string]identity.PublicKey, len(values))}
	for escaped, encoded := range values {
		name, err := peerName(escaped)
		if err != nil {
			return nil, fmt.Errorf("loading trust cache: %w", err)
		}
		key, err := identity.ParsePublicKey(encoded)
		if err != nil {
			return nil, fmt.Errorf("loading trust cache: peer %q: %w", name, err)
		}
		cache.peers[name] = key
	}
	return cache, nil
}

// Get returns the key cached for name.
func (c *Cache) Get(name string) (identity.PublicKey, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	key, ok := c.peers[name]
	return key, ok
}

// Put records key for name and, for a file-backed cache, persists the
// whole mapping.
func (c *Cache) Put(name string, key identity.PublicKey) error {
	if name == "" {
		return errors.New("trust cache: empty peer name")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.peers[name] = key
	return c.saveLocked()
}

// Delete forgets name.
func (c *Cache) Delete(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.peers[name]; !ok {
		return nil
	}
	delete(c.peers, name)
	return c.saveLocked()
}

// Len returns the number of cached peers.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.peers)
}

func (c *Cache) saveLocked() error {
	if c.path == "" {
		return nil
	}
	values := make(map[string]string, len(c.peers))
	for name, key := range c.peers {
		values[fileKey(name)] = key.String()
	}
	if err := envfile.Write(c.path, values); err != nil {
		return fmt.Errorf("saving trust cache: %w", err)
	}
	return nil
}

// fileKey escapes a peer name for use as a dotenv key, which may only
// hold letters, digits, '.' and '_'. Every other byte, '_' included,
// is written as '_' and two hex digits.
func fileKey(name string) string {
	var builder strings.Builder
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c == '.' || ('0' <= c && c <= '9') || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') {
			builder.WriteByte(c)
			continue
		}
		fmt.Fprintf(&builder, "_%02X", c)
	}
	return builder.String()
}

// peerName reverses fileKey.
func peerName(key string) (string, error) {
	var builder strings.Builder
	for i := 0; i < len(key); i++ {
		if key[i] != '_' {
			builder.WriteByte(key[i])
			continue
		}
		if i+3 > len(key) {
			return "", fmt.Errorf("truncated escape in %q", key)
		}
		value, err := strconv.ParseUint(key[i+1:i+3], 16, 8)
		if err != nil {
			return "", fmt.Errorf("bad escape in %q", key)
		}
		builder.WriteByte(byte(value))
		i += 2
	}
	return builder.String(), nil
}
