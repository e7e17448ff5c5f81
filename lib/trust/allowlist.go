// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package trust

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/bureau-foundation/sera/lib/envfile"
	"github.com/bureau-foundation/sera/lib/identity"
)

// AllowList is the set of sender public keys a watcher accepts commands
// from.
type AllowList struct {
	path string

	mu   sync.RWMutex
	keys map[identity.PublicKey]struct{}
}

// NewAllowList returns an in-memory allow-list holding keys.
func NewAllowList(keys ...identity.PublicKey) *AllowList {
	list := &AllowList{keys: make(map[identity.PublicKey]struct{}, len(keys))}
	for _, key := range keys {
		list.keys[key] = struct{}{}
	}
	return list
}

// LoadAllowList reads one public key per line from path. Blank lines
// and "#" comments are skipped. A missing file yields an empty list.
// Add and Remove write back to the same file.
func LoadAllowList(path string) (*AllowList, error) {
	list := &AllowList{path: path, keys: make(map[identity.PublicKey]struct{})}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return list, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading allow-list: %w", err)
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, err := identity.ParsePublicKey(line)
		if err != nil {
			return nil, fmt.Errorf("loading allow-list: %s line %d: %w", path, lineNumber, err)
		}
		list.keys[key] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("loading allow-list: %w", err)
	}
	return list, nil
}

// Contains reports whether key is allowed.
func (l *AllowList) Contains(key identity.PublicKey) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.keys[key]
	return ok
}

// Add allows key. It reports whether the key was newly added.
func (l *AllowList) Add(key identity.PublicKey) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.keys[key]; ok {
		return false, nil
	}
	l.keys[key] = struct{}{}
	return true, l.saveLocked()
}

// Remove revokes key. It reports whether the key was present.
func (l *AllowList) Remove(key identity.PublicKey) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.keys[key]; !ok {
		return false, nil
	}
	delete(l.keys, key)
	return true, l.saveLocked()
}

// Keys returns the allowed keys in their text form, sorted.
func (l *AllowList) Keys() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.sortedLocked()
}

// Len returns the number of allowed keys.
func (l *AllowList) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.keys)
}

func (l *AllowList) sortedLocked() []string {
	encoded := make([]string, 0, len(l.keys))
	for key := range l.keys {
		encoded = append(encoded, key.String())
	}
	sort.Strings(encoded)
	return encoded
}

func (l *AllowList) saveLocked() error {
	if l.path == "" {
		return nil
	}
	var buffer bytes.Buffer
	for _, line := range l.sortedLocked() {
		buffer.WriteString(line)
		buffer.WriteByte('\n')
	}
	if err := envfile.WriteAtomic(l.path, buffer.Bytes(), 0600); err != nil {
		return fmt.Errorf("saving allow-list: %w", err)
	}
	return nil
}
