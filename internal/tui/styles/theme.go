package styles

import "github.com/charmbracelet/lipgloss"

var (
	Primary   = lipgloss.Color("#0EA5E9") // sky
	Secondary = lipgloss.Color("#10B981") // emerald
	Success   = lipgloss.Color("#22C55E")
	Warning   = lipgloss.Color("#F59E0B")
	Error     = lipgloss.Color("#EF4444")
	Muted     = lipgloss.Color("#6B7280")
	Text      = lipgloss.Color("#E5E7EB")
	Highlight = lipgloss.Color("#1E293B")

	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Primary).
		MarginBottom(1)

	Label = lipgloss.NewStyle().
		Foreground(Muted).
		Width(16)

	ActiveItem = lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true)

	InactiveItem = lipgloss.NewStyle().
			Foreground(Muted)

	Hint = lipgloss.NewStyle().
		Foreground(Muted).
		Italic(true)

	StatusBar = lipgloss.NewStyle().
			Foreground(Muted).
			MarginTop(1)

	Border = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Muted).
		Padding(1, 2)

	Panel = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Muted).
		Padding(0, 1)

	ErrorText = lipgloss.NewStyle().
			Foreground(Error).
			Bold(true)

	SuccessText = lipgloss.NewStyle().
			Foreground(Success).
			Bold(true)
)

// ForState colors a run state name: green for a reached goal, amber for
// stops that kept partial results, red for failures.
func ForState(state string) lipgloss.Style {
	s := lipgloss.NewStyle().Bold(true)
	switch state {
	case "GOAL_REACHED":
		return s.Foreground(Success)
	case "EXHAUSTED", "BUDGET_STOPPED", "ABORTED":
		return s.Foreground(Warning)
	case "FATAL_ERROR":
		return s.Foreground(Error)
	}
	return s.Foreground(Primary)
}
