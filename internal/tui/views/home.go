package views

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/contato-rede/leads/internal/tui/styles"
)

type menuItem struct {
	key   string
	label string
	desc  string
	msg   tea.Msg
}

type HomeModel struct {
	items  []menuItem
	cursor int
	notice string
}

func NewHomeModel(notice string) HomeModel {
	return HomeModel{
		notice: notice,
		items: []menuItem{
			{key: "n", label: "New Scan", desc: "Search leads by niche and location", msg: NavigateToSearch{}},
			{key: "r", label: "Resume", desc: "Start from the last saved search", msg: NavigateToResume{}},
			{key: "l", label: "Leads", desc: "Browse, filter and export stored leads", msg: NavigateToLeads{}},
			{key: "h", label: "History", desc: "Past runs and their spend", msg: NavigateToHistory{}},
			{key: "b", label: "Restore Backup", desc: "Replace data with a JSON backup", msg: NavigateToRestore{}},
			{key: "q", label: "Quit", desc: "Exit leadtap"},
		},
	}
}

func (m HomeModel) Init() tea.Cmd {
	return nil
}

func (m HomeModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}
	case "enter":
		return m, m.selected()
	default:
		for i, it := range m.items {
			if it.key == key.String() {
				m.cursor = i
				return m, m.selected()
			}
		}
	}
	return m, nil
}

func (m HomeModel) selected() tea.Cmd {
	it := m.items[m.cursor]
	if it.msg == nil {
		return tea.Quit
	}
	return func() tea.Msg { return it.msg }
}

func (m HomeModel) View() string {
	var b strings.Builder

	logo := lipgloss.NewStyle().Foreground(styles.Primary).Bold(true).Render("  leadtap")
	tagline := lipgloss.NewStyle().Foreground(styles.Secondary).Italic(true).Render("  Google Places lead finder")
	b.WriteString(logo + "\n" + tagline + "\n\n")

	for i, item := range m.items {
		cursor := "  "
		style := styles.InactiveItem
		if i == m.cursor {
			cursor = "> "
			style = styles.ActiveItem
		}
		key := lipgloss.NewStyle().Foreground(styles.Secondary).Bold(true).Render(fmt.Sprintf("[%s]", item.key))
		desc := lipgloss.NewStyle().Foreground(styles.Muted).Render(" - " + item.desc)
		b.WriteString(fmt.Sprintf("%s%s %s%s\n", cursor, key, style.Render(item.label), desc))
	}

	if m.notice != "" {
		b.WriteString("\n" + lipgloss.NewStyle().Foreground(styles.Warning).Render(m.notice) + "\n")
	}
	b.WriteString("\n")
	b.WriteString(styles.StatusBar.Render("↑↓ navigate • enter select • q quit"))

	return styles.Border.Render(b.String())
}
