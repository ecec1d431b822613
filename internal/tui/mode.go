package tui

import (
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

// OutputMode describes how progress output should be rendered.
type OutputMode int

const (
	// ModeTUI uses bubbletea for interactive progress rendering.
	ModeTUI OutputMode = iota
	// ModePlain leaves progress to the log and prints a summary at the end.
	ModePlain
)

// DetectMode determines the appropriate output mode for the given writer.
func DetectMode(out io.Writer, noProgress bool) OutputMode {
	if noProgress || !IsTerminal(out) {
		return ModePlain
	}
	if runtime.GOOS != "windows" {
		term := os.Getenv("TERM")
		if term == "" || strings.EqualFold(term, "dumb") {
			return ModePlain
		}
	}
	return ModeTUI
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// ColorEnabled reports whether colored output should be written to w. It
// honors NO_COLOR and CLICOLOR_FORCE.
func ColorEnabled(w io.Writer) bool {
	if !IsTerminal(w) {
		return false
	}
	return termenv.NewOutput(w).EnvColorProfile() != termenv.Ascii
}
