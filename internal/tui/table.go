package tui

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Freshness tells how an installed version relates to the latest release.
type Freshness int

const (
	FreshnessUnknown Freshness = iota
	FreshnessCurrent
	FreshnessOutdated
)

// ListRow is one tool in the list table.
type ListRow struct {
	Name      string
	Installed string
	Latest    string
	Changelog string
	Freshness Freshness
}

// ListOptions selects the optional list columns.
type ListOptions struct {
	Full  bool
	Color bool
}

// RenderList renders the tool list. Installed versions are colored green
// when current and yellow when outdated, only when opts.Color is set.
func RenderList(w io.Writer, rows []ListRow, opts ListOptions) string {
	headers := []string{"Name", "Installed", "Latest"}
	if opts.Full {
		headers = append(headers, "Changelog")
	}

	renderer := lipgloss.NewRenderer(w)
	plain := renderer.NewStyle().PaddingRight(2)
	header := plain.Bold(opts.Color)
	current := plain.Foreground(lipgloss.Color("2"))
	outdated := plain.Foreground(lipgloss.Color("3"))

	t := table.New().
		Border(lipgloss.HiddenBorder()).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderColumn(false).
		BorderHeader(false).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			if !opts.Color || col != 1 || row < 0 || row >= len(rows) {
				return plain
			}
			switch rows[row].Freshness {
			case FreshnessCurrent:
				return current
			case FreshnessOutdated:
				return outdated
			}
			return plain
		})

	for _, r := range rows {
		cells := []string{r.Name, NonEmptyOrDash(r.Installed), NonEmptyOrDash(r.Latest)}
		if opts.Full {
			cells = append(cells, NonEmptyOrDash(r.Changelog))
		}
		t.Row(cells...)
	}
	return t.String() + "\n"
}
