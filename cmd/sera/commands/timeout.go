// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bureau-foundation/sera/remote"
)

// timeoutValue is a pflag.Value for protocol timeouts. It accepts a Go
// duration ("30s"), a bare number of seconds ("30"), and -1 or
// "forever" for no limit. Unset, the configured default applies.
type timeoutValue struct {
	duration time.Duration
	set      bool
}

func (v *timeoutValue) String() string {
	if !v.set {
		return ""
	}
	if v.duration < 0 {
		return "-1"
	}
	return v.duration.String()
}

func (v *timeoutValue) Set(text string) error {
	duration, err := parseTimeout(text)
	if err != nil {
		return err
	}
	v.duration, v.set = duration, true
	return nil
}

func (v *timeoutValue) Type() string {
	return "timeout"
}

// or returns the flag's value, or fallback when the flag was not given.
func (v *timeoutValue) or(fallback time.Duration) time.Duration {
	if v.set {
		return v.duration
	}
	return fallback
}

func parseTimeout(text string) (time.Duration, error) {
	text = strings.TrimSpace(text)
	if text == "forever" {
		return remote.Forever, nil
	}
	if seconds, err := strconv.Atoi(text); err == nil {
		if seconds < 0 {
			return remote.Forever, nil
		}
		return time.Duration(seconds) * time.Second, nil
	}
	duration, err := time.ParseDuration(text)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: want seconds, a duration such as 30s, or -1", text)
	}
	if duration < 0 {
		return remote.Forever, nil
	}
	return duration, nil
}

func formatTimeout(duration time.Duration) string {
	if duration < 0 {
		return "forever"
	}
	return duration.String()
}
