// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"runtime"
	"strings"
	"testing"
)

func TestInfoUsesLinkedCommit(t *testing.T) {
	savedVersion, savedCommit := Version, GitCommit
	t.Cleanup(func() { Version, GitCommit = savedVersion, savedCommit })

	Version, GitCommit = "1.2.3", "abc1234"
	if got := Info(); got != "1.2.3 (abc1234)" {
		t.Errorf("Info() = %q, want %q", got, "1.2.3 (abc1234)")
	}
}

func TestFullIncludesPlatform(t *testing.T) {
	full := Full()
	if !strings.HasPrefix(full, Info()) {
		t.Errorf("Full() = %q, want it to start with Info()", full)
	}
	if !strings.Contains(full, runtime.GOOS+"/"+runtime.GOARCH) {
		t.Errorf("Full() = %q, missing platform", full)
	}
}
