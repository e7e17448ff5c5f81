// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package queue

import (
	"regexp"
	"strings"
)

// MaxNameLength is the longest endpoint name a backend will see.
const MaxNameLength = 80

var invalidNameCharacters = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// Sanitize maps a logical name to a backend queue name: each run of
// characters outside [a-zA-Z0-9_-] becomes a single "-", the result is
// prefixed with "namespace-" when namespace is non-empty, and the whole
// is truncated to MaxNameLength.
func Sanitize(namespace, name string) string {
	cleaned := invalidNameCharacters.ReplaceAllString(name, "-")
	if namespace != "" {
		cleaned = namespace + "-" + cleaned
	}
	if len(cleaned) > MaxNameLength {
		cleaned = cleaned[:MaxNameLength]
	}
	return cleaned
}

// endpointURL and nameFromURL convert between a sanitized name and the
// URL form a backend hands out.
func endpointURL(scheme, name string) string {
	return scheme + "://" + name
}

func nameFromURL(scheme, url string) (string, bool) {
	name, ok := strings.CutPrefix(url, scheme+"://")
	if !ok || name == "" {
		return "", false
	}
	return name, true
}
