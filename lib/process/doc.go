// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds the raw-stderr exit path used by main()
// before or after the structured logger exists.
package process
