package views

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/contato-rede/leads/internal/export"
	"github.com/contato-rede/leads/internal/model"
	"github.com/contato-rede/leads/internal/tui/styles"
)

type focusArea int

const (
	focusTable focusArea = iota
	focusFilter
	focusCard
	focusJSON
)

// ExplorerModel lists stored leads with a filter, a detail card and a JSON panel.
type ExplorerModel struct {
	ctx        context.Context
	backend    Backend
	campaignID string
	leads      []model.Lead
	filtered   []model.Lead
	table      table.Model
	filter     textinput.Model
	focus      focusArea
	selected   int
	width      int
	height     int
	err        error
	notice     string
	confirmDel bool

	cardScrollY int
	cardLines   []string
	jsonScrollY int
	jsonScrollX int
	jsonLines   []string
	jsonRaw     string
}

type leadsLoadedMsg struct {
	Leads []model.Lead
	Err   error
}

type leadDeletedMsg struct {
	ID  string
	Err error
}

// NewExplorerModel shows the leads of campaignID, or every lead when it is empty.
func NewExplorerModel(ctx context.Context, backend Backend, campaignID string) ExplorerModel {
	filter := textinput.New()
	filter.Placeholder = "Type to filter..."
	filter.CharLimit = 50

	return ExplorerModel{
		ctx:        ctx,
		backend:    backend,
		campaignID: campaignID,
		filter:     filter,
		selected:   -1,
	}
}

func (m ExplorerModel) Init() tea.Cmd {
	return m.load()
}

func (m ExplorerModel) load() tea.Cmd {
	ctx, backend, campaign := m.ctx, m.backend, m.campaignID
	return func() tea.Msg {
		leads, err := backend.Leads(ctx, campaign)
		return leadsLoadedMsg{Leads: leads, Err: err}
	}
}

func (m ExplorerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
	case tea.KeyMsg:
		key := msg.String()
		if key == "ctrl+c" {
			return m, tea.Quit
		}
		if key != "d" {
			m.confirmDel = false
		}

		switch m.focus {
		case focusTable:
			switch key {
			case "esc", "q":
				return m, func() tea.Msg { return NavigateToHome{} }
			case "/", "tab":
				m.focus = focusFilter
				m.filter.Focus()
				return m, textinput.Blink
			case "1":
				m.focus = focusCard
				m.table.SetStyles(m.unfocusedTableStyles())
				return m, nil
			case "2":
				m.focus = focusJSON
				m.table.SetStyles(m.unfocusedTableStyles())
				return m, nil
			case "e":
				m.exportCSV()
				return m, nil
			case "c":
				m.copyToClipboard()
				return m, nil
			case "d":
				return m, m.deleteSelected()
			}

		case focusFilter:
			switch key {
			case "esc", "enter", "tab":
				m.focus = focusTable
				m.filter.Blur()
				return m, nil
			}

		case focusCard:
			switch key {
			case "esc":
				m.focus = focusTable
				m.table.SetStyles(m.focusedTableStyles())
				return m, nil
			case "up", "k":
				m.cardScrollY = max(0, m.cardScrollY-1)
				return m, nil
			case "down", "j":
				m.cardScrollY = min(max(0, len(m.cardLines)-m.panelHeight()), m.cardScrollY+1)
				return m, nil
			}

		case focusJSON:
			switch key {
			case "esc":
				m.focus = focusTable
				m.table.SetStyles(m.focusedTableStyles())
				return m, nil
			case "up", "k":
				m.jsonScrollY = max(0, m.jsonScrollY-1)
				return m, nil
			case "down", "j":
				m.jsonScrollY = min(max(0, len(m.jsonLines)-m.panelHeight()), m.jsonScrollY+1)
				return m, nil
			case "left", "h":
				m.jsonScrollX = max(0, m.jsonScrollX-4)
				return m, nil
			case "right", "l":
				m.jsonScrollX += 4
				return m, nil
			case "c":
				m.copyToClipboard()
				return m, nil
			}
		}

	case leadsLoadedMsg:
		if msg.Err != nil {
			m.err = msg.Err
			return m, nil
		}
		m.leads = msg.Leads
		m.applyFilter()
		m.updateLayout()
		return m, nil

	case leadDeletedMsg:
		if msg.Err != nil {
			m.notice = fmt.Sprintf("Delete failed: %v", msg.Err)
			return m, nil
		}
		var kept []model.Lead
		for _, l := range m.leads {
			if l.ID != msg.ID {
				kept = append(kept, l)
			}
		}
		m.leads = kept
		m.applyFilter()
		m.notice = "Lead deleted"
		return m, nil
	}

	var cmd tea.Cmd
	switch m.focus {
	case focusTable:
		m.table, cmd = m.table.Update(msg)
		cursor := m.table.Cursor()
		if cursor != m.selected && cursor < len(m.filtered) {
			m.selected = cursor
			m.cardScrollY, m.jsonScrollY, m.jsonScrollX = 0, 0, 0
			m.cacheDetailContent()
		}
	case focusFilter:
		m.filter, cmd = m.filter.Update(msg)
		m.applyFilter()
	}
	return m, cmd
}

// deleteSelected asks for a second press before deleting.
func (m *ExplorerModel) deleteSelected() tea.Cmd {
	if m.selected < 0 || m.selected >= len(m.filtered) {
		return nil
	}
	if !m.confirmDel {
		m.confirmDel = true
		m.notice = "Press d again to delete " + m.filtered[m.selected].Name
		return nil
	}
	m.confirmDel = false
	ctx, backend, id := m.ctx, m.backend, m.filtered[m.selected].ID
	return func() tea.Msg {
		_, err := backend.DeleteLead(ctx, id)
		return leadDeletedMsg{ID: id, Err: err}
	}
}

func (m *ExplorerModel) cacheDetailContent() {
	if m.selected < 0 || m.selected >= len(m.filtered) {
		m.cardLines, m.jsonLines, m.jsonRaw = nil, nil, ""
		return
	}
	l := m.filtered[m.selected]
	m.cardLines = buildCardLines(l)

	// encoding/json rejects NaN
	if math.IsNaN(l.Rating) {
		l.Rating = 0
	}
	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		m.jsonLines, m.jsonRaw = []string{"JSON error"}, ""
		return
	}
	m.jsonRaw = string(data)
	m.jsonLines = strings.Split(m.jsonRaw, "\n")
}

func buildCardLines(l model.Lead) []string {
	lines := []string{l.Name}
	if l.Rating > 0 {
		r := fmt.Sprintf("%.1f", l.Rating)
		if l.Reviews > 0 {
			r += fmt.Sprintf(" (%d reviews)", l.Reviews)
		}
		lines = append(lines, r)
	}
	if l.Category != "" {
		lines = append(lines, l.Category)
	}
	lines = append(lines, "")

	addRow := func(label, value string) {
		if value != "" {
			lines = append(lines, fmt.Sprintf("%-10s %s", label, value))
		}
	}
	addRow("Address:", l.Address)
	addRow("City/UF:", export.CityUF(l.Address))
	addRow("Phone:", l.Phone)
	addRow("Website:", l.Website)
	addRow("Instagram:", l.Instagram)
	addRow("Facebook:", l.Facebook)
	addRow("Campaign:", l.CampaignID)
	if !l.CreatedAt.IsZero() {
		addRow("Found:", l.CreatedAt.Local().Format("2006-01-02 15:04"))
	}

	if l.Description != "" {
		lines = append(lines, "", l.Description)
	}
	return lines
}

func (m *ExplorerModel) buildTable(leads []model.Lead) {
	nameW, catW, cityW, ratingW, phoneW := 28, 20, 18, 6, 16
	if m.width > 120 {
		extra := m.width - 120
		nameW += extra * 3 / 10
		catW += extra * 3 / 10
		cityW += extra * 2 / 10
		phoneW += extra * 2 / 10
	}

	columns := []table.Column{
		{Title: "Name", Width: nameW},
		{Title: "Category", Width: catW},
		{Title: "City/UF", Width: cityW},
		{Title: "Rating", Width: ratingW},
		{Title: "Phone", Width: phoneW},
	}

	rows := make([]table.Row, len(leads))
	for i, l := range leads {
		rating := ""
		if l.Rating > 0 {
			rating = fmt.Sprintf("%.1f", l.Rating)
		}
		rows[i] = table.Row{
			truncate(l.Name, nameW),
			truncate(l.Category, catW),
			truncate(export.CityUF(l.Address), cityW),
			rating,
			l.Phone,
		}
	}

	height := 10
	if m.height > 0 {
		height = max(5, m.height/2-4)
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(height),
	)
	if m.focus == focusCard || m.focus == focusJSON {
		t.SetStyles(m.unfocusedTableStyles())
	} else {
		t.SetStyles(m.focusedTableStyles())
	}
	if m.selected > 0 && m.selected < len(rows) {
		t.SetCursor(m.selected)
	}
	m.table = t
}

func (m ExplorerModel) focusedTableStyles() table.Styles {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(styles.Muted).
		BorderBottom(true).
		Bold(true).
		Foreground(styles.Secondary)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(styles.Primary).
		Bold(true)
	return s
}

func (m ExplorerModel) unfocusedTableStyles() table.Styles {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(styles.Muted).
		BorderBottom(true).
		Bold(true).
		Foreground(styles.Muted)
	s.Selected = s.Selected.
		Foreground(styles.Text).
		Background(styles.Highlight).
		Bold(false)
	return s
}

func (m ExplorerModel) panelHeight() int {
	return max(6, m.height/2-6)
}

func (m *ExplorerModel) updateLayout() {
	if m.width <= 0 {
		return
	}
	m.buildTable(m.filtered)
}

// normalize lowercases s and strips diacritics, so "Joinville" matches "joínville".
func normalize(s string) string {
	t := transform.Chain(norm.NFD, transform.RemoveFunc(func(r rune) bool {
		return unicode.Is(unicode.Mn, r)
	}), norm.NFC)
	result, _, _ := transform.String(t, strings.ToLower(s))
	return result
}

// filterLeads keeps the leads whose text fields contain every word of query.
func filterLeads(leads []model.Lead, query string) []model.Lead {
	words := strings.Fields(normalize(query))
	if len(words) == 0 {
		return leads
	}
	var out []model.Lead
	for _, l := range leads {
		haystack := normalize(strings.Join([]string{
			l.Name, l.Category, l.Address, l.Phone, l.Description,
		}, " "))
		match := true
		for _, w := range words {
			if !strings.Contains(haystack, w) {
				match = false
				break
			}
		}
		if match {
			out = append(out, l)
		}
	}
	return out
}

func (m *ExplorerModel) applyFilter() {
	m.filtered = filterLeads(m.leads, m.filter.Value())
	m.selected = -1
	if len(m.filtered) > 0 {
		m.selected = 0
	}
	m.buildTable(m.filtered)
	m.cacheDetailContent()
}

func (m ExplorerModel) View() string {
	if m.err != nil {
		return styles.ErrorText.Render(fmt.Sprintf("Error loading leads: %v", m.err))
	}

	var b strings.Builder
	title := fmt.Sprintf("Leads: %d", len(m.leads))
	if m.campaignID != "" {
		title += " in " + m.campaignID
	}
	b.WriteString(styles.Title.Render(title))
	if len(m.filtered) != len(m.leads) {
		b.WriteString(lipgloss.NewStyle().Foreground(styles.Muted).
			Render(fmt.Sprintf(" (showing %d)", len(m.filtered))))
	}
	b.WriteString("\n\n")

	filterStyle := lipgloss.NewStyle().Foreground(styles.Muted)
	if m.focus == focusFilter {
		filterStyle = lipgloss.NewStyle().Foreground(styles.Primary)
	}
	b.WriteString(filterStyle.Render("Filter: "))
	b.WriteString(m.filter.View())
	b.WriteString("\n")

	b.WriteString(m.table.View())
	b.WriteString("\n\n")

	detailW := max(40, m.width-2)
	panelH := m.panelHeight()
	cardOuterW := detailW * 2 / 5
	jsonOuterW := detailW - cardOuterW - 1

	cardBox := m.panel("[1] Details", m.focus == focusCard, cardOuterW, panelH,
		m.viewCardPanel(max(20, cardOuterW-4), panelH))
	jsonBox := m.panel("[2] JSON", m.focus == focusJSON, jsonOuterW, panelH,
		m.viewJSONPanel(max(20, jsonOuterW-4), panelH))
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cardBox, " ", jsonBox))
	b.WriteString("\n\n")

	if m.notice != "" {
		color := styles.Success
		if m.confirmDel {
			color = styles.Warning
		}
		b.WriteString(lipgloss.NewStyle().Foreground(color).Render(m.notice))
		b.WriteString("\n")
	}

	var status string
	switch m.focus {
	case focusTable:
		status = "↑↓ navigate • 1 details • 2 json • / filter • e export csv • c copy • d delete • esc back"
	case focusFilter:
		status = "type to filter • esc back"
	case focusCard:
		status = "↑↓ scroll • esc back to table"
	case focusJSON:
		status = "↑↓ scroll • ←→ pan • c copy json • esc back to table"
	}
	b.WriteString(styles.StatusBar.Render(status))
	return b.String()
}

func (m ExplorerModel) panel(label string, focused bool, outerW, h int, content string) string {
	color := styles.Muted
	if focused {
		color = styles.Primary
	}
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(color).
		Padding(0, 1).
		Width(outerW - 2).
		Height(h).
		Render(content)
	return lipgloss.NewStyle().Bold(true).Foreground(color).Render(label) + "\n" + box
}

// window clamps scroll to lines and returns the visible slice bounds.
func window(n, scroll, h int) (int, int) {
	scroll = max(0, min(scroll, n-h))
	return scroll, min(n, scroll+h)
}

func (m ExplorerModel) viewCardPanel(w, h int) string {
	if m.selected < 0 || len(m.cardLines) == 0 {
		return styles.Hint.Render("Select a lead\nto view details")
	}

	start, end := window(len(m.cardLines), m.cardScrollY, h)
	label := lipgloss.NewStyle().Foreground(styles.Muted)
	link := lipgloss.NewStyle().Foreground(styles.Primary)
	plain := lipgloss.NewStyle().Foreground(styles.Text)

	var sb strings.Builder
	for i, line := range m.cardLines[start:end] {
		switch {
		case start+i == 0:
			sb.WriteString(plain.Bold(true).Render(truncate(line, w)))
		case start+i == 1 && strings.Contains(line, "review"):
			sb.WriteString(lipgloss.NewStyle().Foreground(styles.Warning).Render(truncate(line, w)))
		case strings.HasPrefix(line, "Website:"), strings.HasPrefix(line, "Instagram:"), strings.HasPrefix(line, "Facebook:"):
			lbl, val, _ := strings.Cut(line, " ")
			sb.WriteString(label.Render(fmt.Sprintf("%-10s ", lbl)))
			sb.WriteString(link.Render(truncate(strings.TrimSpace(val), w-11)))
		default:
			sb.WriteString(plain.Render(truncate(line, w)))
		}
		if start+i < end-1 {
			sb.WriteString("\n")
		}
	}
	if start > 0 {
		sb.WriteString("\n" + label.Render("  ▲ more above"))
	}
	if end < len(m.cardLines) {
		sb.WriteString("\n" + label.Render("  ▼ more below"))
	}
	return sb.String()
}

func (m ExplorerModel) viewJSONPanel(w, h int) string {
	if m.selected < 0 || len(m.jsonLines) == 0 {
		return styles.Hint.Render("Select a lead\nto view JSON")
	}

	jsonStyle := lipgloss.NewStyle().Foreground(styles.Muted)
	keyStyle := lipgloss.NewStyle().Foreground(styles.Secondary)
	valStyle := lipgloss.NewStyle().Foreground(styles.Success)

	start, end := window(len(m.jsonLines), m.jsonScrollY, h)
	var sb strings.Builder
	for i, line := range m.jsonLines[start:end] {
		display := line
		if m.jsonScrollX > 0 {
			if m.jsonScrollX < len(display) {
				display = display[m.jsonScrollX:]
			} else {
				display = ""
			}
		}
		display = truncate(display, w)

		if colon := strings.Index(display, "\":"); colon > 0 && strings.HasPrefix(strings.TrimSpace(display), "\"") {
			sb.WriteString(keyStyle.Render(display[:colon+1]))
			sb.WriteString(valStyle.Render(display[colon+1:]))
		} else {
			sb.WriteString(jsonStyle.Render(display))
		}
		if start+i < end-1 {
			sb.WriteString("\n")
		}
	}

	if start > 0 || end < len(m.jsonLines) {
		indicator := fmt.Sprintf("  [%d/%d]", start+1, len(m.jsonLines))
		if m.jsonScrollX > 0 {
			indicator += fmt.Sprintf(" ←%d", m.jsonScrollX)
		}
		sb.WriteString("\n" + jsonStyle.Render(indicator))
	}
	return sb.String()
}

func (m *ExplorerModel) copyToClipboard() {
	if m.jsonRaw == "" {
		return
	}
	if err := clipboard.WriteAll(m.jsonRaw); err != nil {
		m.notice = fmt.Sprintf("Copy failed: %v", err)
		return
	}
	m.notice = "JSON copied to clipboard"
}

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}

// exportCSV writes the visible leads to the working directory.
func (m *ExplorerModel) exportCSV() {
	data := m.filtered
	if len(data) == 0 {
		data = m.leads
	}
	name := "leads"
	if m.campaignID != "" {
		name += "_" + m.campaignID
	}
	path := fmt.Sprintf("%s_%s.csv", name, time.Now().Format("20060102_150405"))

	f, err := os.Create(path)
	if err != nil {
		m.notice = fmt.Sprintf("Export error: %v", err)
		return
	}
	defer f.Close()

	if err := export.WriteCSV(f, data); err != nil {
		m.notice = fmt.Sprintf("Export error: %v", err)
		return
	}
	m.notice = fmt.Sprintf("Exported %d rows to %s", len(data), path)
}
