package stats

import (
	"os"

	"golang.org/x/term"
)

const terminalWidthBackup = 80

// TerminalWidth returns the stdout width, or 80 when stdout is not a terminal.
func TerminalWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return terminalWidthBackup
}
