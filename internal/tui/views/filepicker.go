package views

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/contato-rede/leads/internal/tui/styles"
)

// FilePickerModel browses for a JSON backup and restores it.
type FilePickerModel struct {
	ctx       context.Context
	backend   Backend
	dir       string
	files     []os.DirEntry
	cursor    int
	confirm   string // backup chosen, waiting for y
	restoring bool
	err       error
}

type restoreDoneMsg struct {
	Notice string
	Err    error
}

func NewFilePickerModel(ctx context.Context, backend Backend) FilePickerModel {
	cwd, _ := os.Getwd()
	m := FilePickerModel{ctx: ctx, backend: backend, dir: cwd}
	m.loadDir()
	return m
}

func (m *FilePickerModel) loadDir() {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		m.err = err
		return
	}
	m.err = nil
	m.files = nil
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if e.IsDir() || strings.HasSuffix(strings.ToLower(name), ".json") {
			m.files = append(m.files, e)
		}
	}
	m.cursor = 0
}

func (m FilePickerModel) Init() tea.Cmd {
	return nil
}

func (m FilePickerModel) restore(path string) tea.Cmd {
	ctx, backend := m.ctx, m.backend
	return func() tea.Msg {
		b, err := backend.Restore(ctx, path)
		if err != nil {
			return restoreDoneMsg{Err: err}
		}
		return restoreDoneMsg{Notice: fmt.Sprintf("Restored %d campaigns and %d leads from %s",
			len(b.Campaigns), len(b.Leads), filepath.Base(path))}
	}
}

func (m FilePickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case restoreDoneMsg:
		m.restoring = false
		if msg.Err != nil {
			m.err = msg.Err
			return m, nil
		}
		notice := msg.Notice
		return m, func() tea.Msg { return NavigateToHome{Notice: notice} }

	case tea.KeyMsg:
		if m.restoring {
			return m, nil
		}
		if m.confirm != "" {
			path := m.confirm
			m.confirm = ""
			if msg.String() == "y" {
				m.restoring = true
				return m, m.restore(path)
			}
			return m, nil
		}
		switch msg.String() {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.files)-1 {
				m.cursor++
			}
		case "enter":
			if m.cursor < len(m.files) {
				entry := m.files[m.cursor]
				fullPath := filepath.Join(m.dir, entry.Name())
				if entry.IsDir() {
					m.dir = fullPath
					m.loadDir()
					return m, nil
				}
				m.confirm = fullPath
			}
		case "backspace":
			parent := filepath.Dir(m.dir)
			if parent != m.dir {
				m.dir = parent
				m.loadDir()
			}
		case "esc":
			return m, func() tea.Msg { return NavigateToHome{} }
		}
	}
	return m, nil
}

func (m FilePickerModel) View() string {
	var b strings.Builder

	b.WriteString(styles.Title.Render("Restore Backup"))
	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Foreground(styles.Muted).Render(m.dir))
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(styles.ErrorText.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n\n")
	}

	if len(m.files) == 0 {
		b.WriteString(lipgloss.NewStyle().Foreground(styles.Muted).Italic(true).
			Render("No .json files or directories found"))
		b.WriteString("\n")
	}

	// at most 15 rows
	start := max(0, m.cursor-12)
	end := min(len(m.files), start+15)
	for i := start; i < end; i++ {
		entry := m.files[i]
		cursor := "  "
		style := styles.InactiveItem
		if i == m.cursor {
			cursor = "> "
			style = styles.ActiveItem
		}
		icon := "📄 "
		if entry.IsDir() {
			icon = "📁 "
		}
		b.WriteString(fmt.Sprintf("%s%s%s\n", cursor, icon, style.Render(entry.Name())))
	}

	b.WriteString("\n")
	switch {
	case m.restoring:
		b.WriteString(lipgloss.NewStyle().Foreground(styles.Primary).Render("Restoring..."))
	case m.confirm != "":
		b.WriteString(lipgloss.NewStyle().Foreground(styles.Warning).Bold(true).
			Render("Replace all campaigns and leads with " + filepath.Base(m.confirm) + "? (y/N)"))
	default:
		b.WriteString(styles.StatusBar.Render("enter open • backspace parent dir • esc back"))
	}
	return styles.Border.Render(b.String())
}
