// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package envfile reads and writes dotenv files: the key file written
// by keygen, the known-watchers trust store, and the env file updated
// by the export command.
//
// Parsing and formatting follow godotenv, so files stay compatible
// with other dotenv tooling: "#" comments, an optional "export "
// prefix, and single- or double-quoted values. Values are written
// double-quoted unless they are integers.
//
// Writes replace the file atomically: the content goes to a temporary
// sibling which is synced and then renamed over the target, so a crash
// never leaves a half-written file behind.
package envfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"github.com/joho/godotenv"
)

// Read parses the file at path. A missing file yields an empty map and
// no error.
func Read(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	values, err := godotenv.Parse(file)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return values, nil
}

// Write replaces the file at path with values, one per line in sorted
// key order. Parent directories are created as needed.
func Write(path string, values map[string]string) error {
	for key := range values {
		if err := ValidateKey(key); err != nil {
			return err
		}
	}
	content, err := godotenv.Marshal(values)
	if err != nil {
		return fmt.Errorf("formatting %s: %w", path, err)
	}
	if content != "" {
		content += "\n"
	}
	return WriteAtomic(path, []byte(content), 0600)
}

// Set updates a single key in the file at path, preserving the others.
func Set(path, key, value string) error {
	values, err := Read(path)
	if err != nil {
		return err
	}
	values[key] = value
	return Write(path, values)
}

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_.]+$`)

// ValidateKey rejects keys the dotenv format cannot hold: anything but
// letters, digits, '_' and '.'.
func ValidateKey(key string) error {
	if key == "" {
		return errors.New("envfile: empty key")
	}
	if !keyPattern.MatchString(key) {
		return fmt.Errorf("envfile: invalid key %q", key)
	}
	return nil
}

// WriteAtomic writes data to path through a synced temporary file and a
// rename.
func WriteAtomic(path string, data []byte, mode fs.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating directory for %s: %w", path, err)
	}
	temporaryPath := path + ".tmp"

	file, err := os.OpenFile(temporaryPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("creating temporary file: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("writing temporary file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("syncing temporary file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("closing temporary file: %w", err)
	}
	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("renaming %s into place: %w", path, err)
	}
	return nil
}
