// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package queue

import (
	"strings"
	"testing"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		namespace string
		name      string
		want      string
	}{
		{"Sera", "host1", "Sera-host1"},
		{"Sera", "web.example.com", "Sera-web-example-com"},
		{"Sera", "a  b//c", "Sera-a-b-c"},
		{"Sera", "keep_under-score", "Sera-keep_under-score"},
		{"", "plain", "plain"},
		// A base64 public key with its padding stripped: '+' and '/'
		// never appear in the URL-safe alphabet, so it passes intact.
		{"Sera", "q1_Ww-2hLk", "Sera-q1_Ww-2hLk"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := Sanitize(test.namespace, test.name); got != test.want {
				t.Errorf("Sanitize(%q, %q) = %q, want %q", test.namespace, test.name, got, test.want)
			}
		})
	}
}

func TestSanitizeTruncates(t *testing.T) {
	got := Sanitize("Sera", strings.Repeat("x", 200))
	if len(got) != MaxNameLength {
		t.Fatalf("len = %d, want %d", len(got), MaxNameLength)
	}
	if !strings.HasPrefix(got, "Sera-xxx") {
		t.Errorf("truncated name lost its namespace: %q", got)
	}
}

func TestEndpointURLRoundTrip(t *testing.T) {
	url := endpointURL("memory", "Sera-host1")
	name, ok := nameFromURL("memory", url)
	if !ok || name != "Sera-host1" {
		t.Fatalf("nameFromURL(%q) = %q, %v", url, name, ok)
	}
	if _, ok := nameFromURL("sqlite", url); ok {
		t.Error("nameFromURL accepted a URL from another backend")
	}
	if _, ok := nameFromURL("memory", "memory://"); ok {
		t.Error("nameFromURL accepted an empty name")
	}
}
