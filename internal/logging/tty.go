package logging

import (
	"io"
	"os"

	"golang.org/x/term"
)

// IsTTY returns true if the given writer is a terminal.
// It supports os.File and any wrapper that provides an Fd() method.
func IsTTY(w io.Writer) bool {
	if f, ok := w.(interface{ Fd() uintptr }); ok {
		return term.IsTerminal(int(f.Fd()))
	}
	return false
}

// ForceColorEnv forces color output even when the writer is not a TTY.
const ForceColorEnv = "CLICOLOR_FORCE"

// SupportsColor returns true if the given writer supports ANSI color codes.
// NO_COLOR and TERM=dumb always disable color; CLICOLOR_FORCE enables it for
// pipes. Otherwise color requires a TTY.
func SupportsColor(w io.Writer) bool {
	return supportsColor(IsTTY(w))
}

func supportsColor(isTTY bool) bool {
	// Respect NO_COLOR standard (https://no-color.org)
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}

	if os.Getenv("TERM") == "dumb" {
		return false
	}

	if v := os.Getenv(ForceColorEnv); v != "" && v != "0" {
		return true
	}

	return isTTY
}
