// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads sera's configuration.
//
// Configuration comes from at most one file, named by the --config
// flag or the SERA_CONFIG environment variable (see [Load]). The file
// is YAML, or JSONC when its extension is .json or .jsonc. Values not
// present in the file keep their [Default]. With no file at all the
// defaults are used as-is, so a fresh install works with local state
// under ~/.sera and the SQLite queue backend.
//
// Path fields support ${HOME}, ${SERA_STATE} (the configured state
// directory) and ${VAR:-default} expansion. Environment variables do
// not otherwise override file values.
//
// Durations are written in Go syntax ("20s", "1h"). A negative watch
// timeout means run forever.
package config
