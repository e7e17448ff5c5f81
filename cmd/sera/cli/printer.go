// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Printer writes a command's stdout and stderr text to the terminal.
// Stderr lines are rendered in red when the stderr writer is a
// terminal and written unchanged otherwise.
type Printer struct {
	stdout     io.Writer
	stderr     io.Writer
	errorStyle lipgloss.Style
}

// NewPrinter creates a Printer. The color profile is detected from
// stderr.
func NewPrinter(stdout, stderr io.Writer) *Printer {
	renderer := lipgloss.NewRenderer(stderr)
	return &Printer{
		stdout:     stdout,
		stderr:     stderr,
		errorStyle: renderer.NewStyle().Foreground(lipgloss.Color("1")),
	}
}

// Print writes stdout then stderr, each terminated by a newline when
// non-empty.
func (p *Printer) Print(stdout, stderr string) {
	if stdout != "" {
		fmt.Fprint(p.stdout, withNewline(stdout))
	}
	if stderr == "" {
		return
	}
	// Style line by line: a multi-line Render pads every line to the
	// widest one.
	lines := strings.Split(strings.TrimSuffix(stderr, "\n"), "\n")
	for _, line := range lines {
		fmt.Fprintln(p.stderr, p.errorStyle.Render(line))
	}
}

func withNewline(text string) string {
	if strings.HasSuffix(text, "\n") {
		return text
	}
	return text + "\n"
}
