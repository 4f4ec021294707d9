package views

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/contato-rede/leads/internal/model"
	"github.com/contato-rede/leads/internal/tui/styles"
)

const historyLimit = 30

// HistoryModel lists past runs, newest first.
type HistoryModel struct {
	ctx     context.Context
	backend Backend
	runs    []model.RunRecord
	cursor  int
	loaded  bool
	err     error
}

type runsLoadedMsg struct {
	Runs []model.RunRecord
	Err  error
}

func NewHistoryModel(ctx context.Context, backend Backend) HistoryModel {
	return HistoryModel{ctx: ctx, backend: backend}
}

func (m HistoryModel) Init() tea.Cmd {
	ctx, backend := m.ctx, m.backend
	return func() tea.Msg {
		runs, err := backend.Runs(ctx, historyLimit)
		return runsLoadedMsg{Runs: runs, Err: err}
	}
}

func (m HistoryModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case runsLoadedMsg:
		m.runs, m.err, m.loaded = msg.Runs, msg.Err, true
	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.runs)-1 {
				m.cursor++
			}
		case "enter":
			if m.cursor < len(m.runs) {
				campaign := m.runs[m.cursor].CampaignID
				return m, func() tea.Msg { return NavigateToLeads{CampaignID: campaign} }
			}
		case "esc":
			return m, func() tea.Msg { return NavigateToHome{} }
		}
	}
	return m, nil
}

func (m HistoryModel) View() string {
	var b strings.Builder
	b.WriteString(styles.Title.Render("Run History"))
	b.WriteString("\n\n")

	muted := lipgloss.NewStyle().Foreground(styles.Muted)
	switch {
	case m.err != nil:
		b.WriteString(styles.ErrorText.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n\n")
	case !m.loaded:
		b.WriteString(muted.Render("Loading..."))
		b.WriteString("\n\n")
	case len(m.runs) == 0:
		b.WriteString(muted.Italic(true).Render("No runs yet"))
		b.WriteString("\n\n")
	}

	var total float64
	for i, r := range m.runs {
		total += r.Spend
		cursor := "  "
		style := styles.InactiveItem
		if i == m.cursor {
			cursor = "> "
			style = styles.ActiveItem
		}
		title := style.Render(fmt.Sprintf("%-12s", r.CampaignID)) + " " +
			styles.ForState(r.State).Render(r.State)
		detail := muted.Render(fmt.Sprintf("  %d leads · %d pages · $%.3f · %s",
			r.Found, r.Pages, r.Spend, timeAgo(r.FinishedAt)))
		b.WriteString(fmt.Sprintf("%s%s\n%s\n", cursor, title, detail))
	}
	if len(m.runs) > 0 {
		b.WriteString("\n" + muted.Render(fmt.Sprintf("Total spend: $%.2f", total)) + "\n")
	}

	b.WriteString(styles.StatusBar.Render("enter view leads • esc back"))
	return styles.Border.Render(b.String())
}

func timeAgo(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
