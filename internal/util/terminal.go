package util

import (
	"os"

	"golang.org/x/term"
)

// IsTerminal checks if the given file descriptor is a terminal
func IsTerminal(fd uintptr) bool {
	return term.IsTerminal(int(fd))
}

// ShowProgress reports whether an interactive progress bar should be drawn:
// stdout is a terminal and quiet mode is off.
func ShowProgress() bool {
	return IsTerminal(os.Stdout.Fd()) && !IsQuiet()
}
