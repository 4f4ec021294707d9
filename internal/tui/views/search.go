package views

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/contato-rede/leads/internal/model"
	"github.com/contato-rede/leads/internal/tui/styles"
)

var runModes = []model.RunMode{model.ModeSingle, model.ModeContinuous, model.ModeUntilStagnant}

// Field indices. Mode, phone and deep are toggles, not text inputs.
const (
	fieldMode = iota
	fieldNiche
	fieldLocations
	fieldGoal
	fieldMinRating
	fieldExclude
	fieldBudget
	fieldPhone
	fieldDeep
	fieldCount
)

func isToggle(idx int) bool {
	return idx == fieldMode || idx == fieldPhone || idx == fieldDeep
}

// SearchModel is the scan form.
type SearchModel struct {
	inputs     []textinput.Model
	mode       int // index into runModes
	phone      bool
	deep       bool
	campaignID string
	focused    int
	err        string

	places      []string // location suggestions
	suggestions []string
	suggIdx     int
}

// NewSearchModel builds the form, filled from prefill when given. places
// feeds the location autocomplete.
func NewSearchModel(prefill *model.SearchConfig, places []string) SearchModel {
	inputs := make([]textinput.Model, fieldCount)
	inputs[fieldNiche] = newInput("retífica de motores", 60)
	inputs[fieldLocations] = newInput("Joinville, Blumenau or SC", 60)
	inputs[fieldGoal] = newInput("20", 6)
	inputs[fieldMinRating] = newInput("0", 6)
	inputs[fieldExclude] = newInput("peças, usados", 40)
	inputs[fieldBudget] = newInput("0 = no limit", 12)

	m := SearchModel{inputs: inputs, mode: 1, focused: fieldNiche, places: places, suggIdx: -1}
	if p := prefill; p != nil {
		m.campaignID = p.CampaignID
		m.inputs[fieldNiche].SetValue(p.Niche)
		m.inputs[fieldLocations].SetValue(strings.Join(p.Locations, ", "))
		if p.Goal > 0 {
			m.inputs[fieldGoal].SetValue(strconv.Itoa(p.Goal))
		}
		if p.MinRating > 0 {
			m.inputs[fieldMinRating].SetValue(strconv.FormatFloat(p.MinRating, 'f', -1, 64))
		}
		m.inputs[fieldExclude].SetValue(p.ExcludeKeywords)
		if p.Budget > 0 {
			m.inputs[fieldBudget].SetValue(strconv.FormatFloat(p.Budget, 'f', -1, 64))
		}
		m.phone, m.deep = p.OnlyWithPhone, p.DeepSearch
		for i, rm := range runModes {
			if string(rm) == p.Mode {
				m.mode = i
			}
		}
	}
	m.inputs[fieldNiche].Focus()
	return m
}

func newInput(placeholder string, width int) textinput.Model {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.CharLimit = 200
	ti.Width = width
	return ti
}

func (m SearchModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m SearchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		suggesting := m.focused == fieldLocations && len(m.suggestions) > 0
		switch key.String() {
		case "esc":
			return m, func() tea.Msg { return NavigateToHome{} }
		case "up":
			if suggesting && m.suggIdx > 0 {
				m.suggIdx--
				return m, nil
			}
			m.err = ""
			return m, m.focusStep(-1)
		case "down":
			if suggesting && m.suggIdx < len(m.suggestions)-1 {
				m.suggIdx++
				return m, nil
			}
			m.err = ""
			return m, m.focusStep(1)
		case "tab":
			if suggesting {
				m.acceptSuggestion()
				return m, nil
			}
			m.err = ""
			return m, m.focusStep(1)
		case "shift+tab":
			m.err = ""
			return m, m.focusStep(-1)
		case "enter":
			if suggesting {
				m.acceptSuggestion()
				return m, nil
			}
			return m, m.submit()
		case "left", "right", " ":
			if isToggle(m.focused) {
				m.toggle(key.String())
				return m, nil
			}
		}
	}

	if isToggle(m.focused) {
		return m, nil
	}
	var cmd tea.Cmd
	m.inputs[m.focused], cmd = m.inputs[m.focused].Update(msg)
	if m.focused == fieldLocations {
		m.updateSuggestions()
	}
	return m, cmd
}

func (m *SearchModel) toggle(key string) {
	switch m.focused {
	case fieldMode:
		switch key {
		case "left":
			m.mode = (m.mode + len(runModes) - 1) % len(runModes)
		default:
			m.mode = (m.mode + 1) % len(runModes)
		}
	case fieldPhone:
		m.phone = !m.phone
	case fieldDeep:
		m.deep = !m.deep
	}
}

func (m *SearchModel) focusStep(dir int) tea.Cmd {
	if !isToggle(m.focused) {
		m.inputs[m.focused].Blur()
	}
	m.suggestions, m.suggIdx = nil, -1
	m.focused = (m.focused + dir + fieldCount) % fieldCount
	if isToggle(m.focused) {
		return nil
	}
	m.inputs[m.focused].Focus()
	return textinput.Blink
}

// currentToken is the location being typed: the text after the last comma.
func (m SearchModel) currentToken() string {
	v := m.inputs[fieldLocations].Value()
	if i := strings.LastIndex(v, ","); i >= 0 {
		v = v[i+1:]
	}
	return strings.TrimSpace(v)
}

func (m *SearchModel) updateSuggestions() {
	tok := m.currentToken()
	m.suggestions, m.suggIdx = nil, -1
	if len(tok) < 2 {
		return
	}
	q := normalize(tok)
	for _, p := range m.places {
		n := normalize(p)
		if n == q {
			continue
		}
		if strings.Contains(n, q) {
			m.suggestions = append(m.suggestions, p)
			if len(m.suggestions) == 5 {
				break
			}
		}
	}
	if len(m.suggestions) > 0 {
		m.suggIdx = 0
	}
}

func (m *SearchModel) acceptSuggestion() {
	if m.suggIdx < 0 || m.suggIdx >= len(m.suggestions) {
		return
	}
	v := m.inputs[fieldLocations].Value()
	prefix := ""
	if i := strings.LastIndex(v, ","); i >= 0 {
		prefix = v[:i+1] + " "
	}
	m.inputs[fieldLocations].SetValue(prefix + m.suggestions[m.suggIdx] + ", ")
	m.inputs[fieldLocations].CursorEnd()
	m.suggestions, m.suggIdx = nil, -1
}

func (m *SearchModel) submit() tea.Cmd {
	value := func(i int) string { return strings.TrimSpace(m.inputs[i].Value()) }

	niche := value(fieldNiche)
	if niche == "" {
		m.err = "Niche is required"
		return nil
	}
	var locations []string
	for _, l := range strings.Split(value(fieldLocations), ",") {
		if l = strings.TrimSpace(l); l != "" {
			locations = append(locations, l)
		}
	}
	if len(locations) == 0 {
		m.err = "At least one location is required"
		return nil
	}

	goal := 0
	if s := value(fieldGoal); s != "" {
		g, err := strconv.Atoi(s)
		if err != nil || g < 0 {
			m.err = "Goal must be a whole number"
			return nil
		}
		goal = g
	}
	minRating := model.ParseRating(value(fieldMinRating))
	if math.IsNaN(minRating) || minRating < 0 || minRating > 5 {
		m.err = "Minimum rating must be between 0 and 5"
		return nil
	}
	budget := model.ParseRating(value(fieldBudget))
	if math.IsNaN(budget) || budget < 0 {
		m.err = "Budget must be a positive amount"
		return nil
	}

	req := model.SearchRequest{
		CampaignID:      m.campaignID,
		Niche:           niche,
		Locations:       locations,
		Goal:            goal,
		MinRating:       minRating,
		OnlyWithPhone:   m.phone,
		ExcludeKeywords: model.SplitKeywords(value(fieldExclude)),
		Budget:          budget,
		Mode:            runModes[m.mode],
		DeepSearch:      m.deep,
	}
	return func() tea.Msg { return StartScanMsg{Request: req} }
}

func (m SearchModel) View() string {
	var b strings.Builder
	b.WriteString(styles.Title.Render("New Scan") + "\n\n")

	b.WriteString(m.renderChoice("Mode:", fieldMode, m.modeLabels()))
	b.WriteString(m.renderField("Niche:", fieldNiche))
	b.WriteString(m.renderField("Locations:", fieldLocations))
	if m.focused == fieldLocations && len(m.suggestions) > 0 {
		b.WriteString(m.renderSuggestions())
	}
	b.WriteString("\n")
	b.WriteString(m.renderField("Goal:", fieldGoal))
	b.WriteString(m.renderField("Min rating:", fieldMinRating))
	b.WriteString(m.renderField("Exclude:", fieldExclude))
	b.WriteString(m.renderField("Budget (USD):", fieldBudget))
	b.WriteString(m.renderChoice("Phone only:", fieldPhone, onOff(m.phone)))
	b.WriteString(m.renderChoice("Deep search:", fieldDeep, onOff(m.deep)))
	if m.focused == fieldDeep {
		b.WriteString(styles.Hint.Render("  expands each location into hubs or a grid; more pages, more spend") + "\n")
	}

	if m.err != "" {
		b.WriteString("\n" + styles.ErrorText.Render("  "+m.err))
	}
	b.WriteString("\n\n")
	b.WriteString(styles.StatusBar.Render("enter start • tab next • ←→/space toggle • esc back"))
	return styles.Border.Render(b.String())
}

func (m SearchModel) modeLabels() string {
	active := lipgloss.NewStyle().Foreground(styles.Primary).Bold(true)
	inactive := lipgloss.NewStyle().Foreground(styles.Muted)
	parts := make([]string, len(runModes))
	for i, rm := range runModes {
		if i == m.mode {
			parts[i] = active.Render("< " + string(rm) + " >")
		} else {
			parts[i] = inactive.Render(string(rm))
		}
	}
	return strings.Join(parts, "  ")
}

func onOff(v bool) string {
	if v {
		return lipgloss.NewStyle().Foreground(styles.Success).Bold(true).Render("[x] yes")
	}
	return lipgloss.NewStyle().Foreground(styles.Muted).Render("[ ] no")
}

func (m SearchModel) renderChoice(label string, idx int, value string) string {
	line := fmt.Sprintf("%s %s", styles.Label.Render(label), value)
	if m.focused == idx {
		line += lipgloss.NewStyle().Foreground(styles.Secondary).Render("  ←→")
	}
	return line + "\n"
}

func (m SearchModel) renderField(label string, idx int) string {
	return fmt.Sprintf("%s %s\n", styles.Label.Render(label), m.inputs[idx].View())
}

func (m SearchModel) renderSuggestions() string {
	var sb strings.Builder
	active := lipgloss.NewStyle().Foreground(styles.Primary).Bold(true)
	for i, s := range m.suggestions {
		if i == m.suggIdx {
			sb.WriteString(active.Render("                   > " + s))
		} else {
			sb.WriteString(styles.InactiveItem.Render("                     " + s))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
