// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package envfile

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReadMissingFile(t *testing.T) {
	values, err := Read(filepath.Join(t.TempDir(), "absent"))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(values) != 0 {
		t.Errorf("Read() = %v, want empty", values)
	}
}

func TestReadFormats(t *testing.T) {
	path := filepath.Join(t.TempDir(), "env")
	content := `# comment

SERA_PUBLIC_KEY=abc=
export QUOTED="hello world"
SINGLE='x'
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	values, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	want := map[string]string{
		"SERA_PUBLIC_KEY": "abc=",
		"QUOTED":          "hello world",
		"SINGLE":          "x",
	}
	if len(values) != len(want) {
		t.Fatalf("Read() = %v, want %v", values, want)
	}
	for key, value := range want {
		if values[key] != value {
			t.Errorf("values[%q] = %q, want %q", key, values[key], value)
		}
	}
}

func TestReadRejectsMalformedLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "env")
	if err := os.WriteFile(path, []byte("GOOD=1\nnot-a-pair\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Read(path); err == nil {
		t.Fatal("expected error for line without '='")
	}
}

func TestSetPreservesOtherKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "env")

	if err := Set(path, "B", "2"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := Set(path, "A", "1"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := Set(path, "B", "3"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "A=1\nB=3\n" {
		t.Errorf("file content = %q, want sorted A=1, B=3", data)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temporary file left behind: %v", err)
	}
}

func TestWriteRejectsBadKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "env")
	for _, key := range []string{"", "A=B", "has\nnewline", " padded", "web-1"} {
		if err := Write(path, map[string]string{key: "v"}); err == nil {
			t.Errorf("Write accepted key %q", key)
		}
	}
}

func TestWriteQuotesValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "env")
	values := map[string]string{
		"KEY":    "abc=",
		"SPACES": "hello world",
		"PORT":   "8080",
	}
	if err := Write(path, values); err != nil {
		t.Fatalf("Write: %v", err)
	}
	read, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	for key, value := range values {
		if read[key] != value {
			t.Errorf("round trip %s = %q, want %q", key, read[key], value)
		}
	}
}
