package tui

import (
	"errors"
	"io"

	"github.com/charmbracelet/huh"
)

// Confirm asks a yes/no question. An aborted prompt answers no. Without a
// terminal the accessible prompt reads the answer line by line from in.
func Confirm(in io.Reader, out io.Writer, title, description string) (bool, error) {
	var ok bool
	field := huh.NewConfirm().
		Title(title).
		Description(description).
		Affirmative("Yes").
		Negative("No").
		Value(&ok)

	form := huh.NewForm(huh.NewGroup(field)).
		WithInput(in).
		WithOutput(out).
		WithAccessible(!IsTerminal(out))
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, err
	}
	return ok, nil
}
