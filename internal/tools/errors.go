package tools

import (
	"fmt"
	"strings"
)

// IOError reports a filesystem failure while inspecting or writing a binary.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// PostInstallWarning reports a post-install command that failed. The tool
// itself was installed.
type PostInstallWarning struct {
	Command string
	Output  string
	Err     error
}

func (w *PostInstallWarning) Error() string {
	msg := fmt.Sprintf("post-install command failed: %v", w.Err)
	if out := strings.TrimSpace(w.Output); out != "" {
		msg += ":\n" + indent(out)
	}
	return msg
}

func (w *PostInstallWarning) Unwrap() error { return w.Err }

func indent(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = "  " + l
	}
	return strings.Join(lines, "\n")
}
