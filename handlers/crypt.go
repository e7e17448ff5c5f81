// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bureau-foundation/sera/lib/sealed"
	"github.com/bureau-foundation/sera/remote"
)

// Encrypt age-encrypts every file under the root param whose name
// matches the pattern param, writing name.age beside each. The password
// param is the passphrase; recursive descends into subdirectories.
type Encrypt struct {
	// WorkFactor overrides the scrypt cost. Zero keeps age's default.
	WorkFactor int
}

func (h Encrypt) Run(ctx context.Context, params map[string]string) (remote.Result, error) {
	if params["pattern"] == "" {
		return remote.Result{}, fmt.Errorf("pattern is required")
	}
	return applySealer(ctx, params, params["pattern"], h.WorkFactor, "encrypt", (*sealed.Sealer).EncryptFile)
}

// Decrypt decrypts every .age file under the root param, overwriting
// any existing plaintext of the same name.
type Decrypt struct{}

func (Decrypt) Run(ctx context.Context, params map[string]string) (remote.Result, error) {
	return applySealer(ctx, params, "*"+sealed.Extension, 0, "decrypt", (*sealed.Sealer).DecryptFile)
}

func applySealer(ctx context.Context, params map[string]string, pattern string, workFactor int, verb string, apply func(*sealed.Sealer, string) (string, error)) (remote.Result, error) {
	root := params["root"]
	if root == "" {
		return remote.Result{}, fmt.Errorf("root is required")
	}
	sealer, err := sealed.New(params["password"])
	if err != nil {
		return remote.Result{}, err
	}
	sealer.WithWorkFactor(workFactor)

	recursive, _ := strconv.ParseBool(params["recursive"])
	files, err := matchFiles(root, pattern, recursive)
	if err != nil {
		return remote.Result{}, err
	}

	var stdout, stderr strings.Builder
	var lastErr error
	failed := 0
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return remote.Result{}, err
		}
		if _, err := apply(sealer, file); err != nil {
			lastErr = err
			failed++
			fmt.Fprintf(&stderr, "Failed to %s %s\n", verb, file)
			continue
		}
		fmt.Fprintln(&stdout, file)
	}

	result := remote.Result{}
	if lastErr != nil {
		severity := "Warning"
		if failed == len(files) {
			severity = "Error"
			result.ReturnCode = 1
		}
		fmt.Fprintf(&stderr, "%s: %v on %d out of %d files\n", severity, lastErr, failed, len(files))
	}
	result.Stdout = stdout.String()
	result.Stderr = stderr.String()
	return result, nil
}

// matchFiles returns the regular files under root whose base name
// matches pattern, in lexical order.
func matchFiles(root, pattern string, recursive bool) ([]string, error) {
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("pattern %q: %w", pattern, err)
	}
	var files []string
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			if path != root && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if !entry.Type().IsRegular() {
			return nil
		}
		if matched, _ := filepath.Match(pattern, entry.Name()); matched {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
