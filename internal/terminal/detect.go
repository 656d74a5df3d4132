// Package terminal provides terminal detection utilities.
package terminal

import (
	"io"
	"os"

	"golang.org/x/term"
)

const defaultWidth = 80

var (
	isTerminal = term.IsTerminal
	getSize    = term.GetSize
	lookupEnv  = os.LookupEnv
)

type fdWriter interface {
	Fd() uintptr
}

// IsInteractive reports whether stdin and stdout are both interactive terminals.
// This is the canonical implementation for terminal detection across the codebase.
func IsInteractive() bool {
	return isTerminal(int(os.Stdin.Fd())) && isTerminal(int(os.Stdout.Fd()))
}

// IsTerminal reports whether w writes to a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(fdWriter)
	return ok && isTerminal(int(f.Fd()))
}

// ColorEnabled reports whether output to w should be colored. NO_COLOR (any
// non-empty value) and TERM=dumb turn color off.
func ColorEnabled(w io.Writer) bool {
	if v, ok := lookupEnv("NO_COLOR"); ok && v != "" {
		return false
	}
	if v, ok := lookupEnv("TERM"); ok && v == "dumb" {
		return false
	}
	return IsTerminal(w)
}

// Width returns the column count of w, or 80 when w is not a terminal.
func Width(w io.Writer) int {
	f, ok := w.(fdWriter)
	if !ok || !isTerminal(int(f.Fd())) {
		return defaultWidth
	}
	cols, _, err := getSize(int(f.Fd()))
	if err != nil || cols <= 0 {
		return defaultWidth
	}
	return cols
}
