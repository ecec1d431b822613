package tui

import (
	"github.com/charmbracelet/lipgloss"

	"binup/internal/tools"
)

const statusPending = "pending"

var (
	// HeaderStyle styles the column header row.
	HeaderStyle = lipgloss.NewStyle().Bold(true)

	green  = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	yellow = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	blue   = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	red    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))

	statusStyles = map[string]lipgloss.Style{
		// Terminal states
		string(tools.OutcomeInstalled): green,
		string(tools.OutcomeUpgraded):  green,
		string(tools.OutcomeUpToDate):  green,

		// Active states
		string(tools.StateUninstalled): blue,
		string(tools.StateInstalling):  blue,
		string(tools.StateUpgrading):   blue,

		// Skipped / warning
		string(tools.OutcomeSkipped): yellow,
		"warning":                    yellow,

		// Error
		string(tools.OutcomeFailed): red,

		// Pending
		statusPending: lipgloss.NewStyle().Faint(true),
	}

	finalStatuses = map[string]bool{
		string(tools.OutcomeInstalled): true,
		string(tools.OutcomeUpgraded):  true,
		string(tools.OutcomeUpToDate):  true,
		string(tools.OutcomeSkipped):   true,
		string(tools.OutcomeFailed):    true,
		"warning":                      true,
	}
)

// StatusStyle returns the lipgloss style for the given status string.
func StatusStyle(status string) lipgloss.Style {
	if s, ok := statusStyles[status]; ok {
		return s
	}
	return lipgloss.NewStyle()
}
