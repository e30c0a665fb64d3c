package ui

import (
	"os"
	"sync"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

var (
	colorOnce sync.Once
	colorOK   bool
)

// ColorTerminal reports whether stdout can render colors. Piped or
// redirected output, TERM=dumb, and NO_COLOR all disable styling.
func ColorTerminal() bool {
	colorOnce.Do(func() {
		if os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
			return
		}
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			return
		}
		colorOK = termenv.ColorProfile() != termenv.Ascii
	})
	return colorOK
}

// StdoutIsTerminal reports whether stdout is attached to a terminal.
func StdoutIsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// Icon returns unicode when the terminal supports it, ascii otherwise.
func Icon(unicode, ascii string) string {
	if ColorTerminal() {
		return unicode
	}
	return ascii
}
