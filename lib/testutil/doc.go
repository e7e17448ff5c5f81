// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// [RequireReceive], [RequireSend], and [RequireClosed] encapsulate the
// timeout safety valve pattern (select with time.After fallback) so
// that tests driving goroutines with a fake clock do not hang forever
// when something goes wrong. They are the only place in the test suite
// where real wall-clock timeouts appear.
//
// [UniqueID] generates monotonically increasing identifiers for test
// disambiguation: endpoint names, message bodies, request ids.
//
// [Logger] returns a slog.Logger that writes through t.Log, so log
// output from the code under test is attached to the failing test.
//
// All helpers call t.Fatalf on failure rather than returning errors.
package testutil
