package views

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/paulmach/orb"

	"github.com/contato-rede/leads/internal/engine/search"
	"github.com/contato-rede/leads/internal/model"
	"github.com/contato-rede/leads/internal/tui/components"
	"github.com/contato-rede/leads/internal/tui/styles"
)

const (
	maxEvents    = 6
	maxMapPoints = 2000
	mapWidth     = 30
	mapHeight    = 8
)

// scanState is written by the scan goroutine and read by the view. It lives
// behind a pointer so it survives bubbletea's value copies.
type scanState struct {
	mu     sync.Mutex
	last    search.Progress
	events  []string
	anchors []orb.Point
	hits    []orb.Point
	cancel  context.CancelFunc
}

func (s *scanState) update(p search.Progress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = p
	if p.AnchorAt != nil && (len(s.anchors) == 0 || s.anchors[len(s.anchors)-1] != *p.AnchorAt) {
		s.anchors = append(s.anchors, *p.AnchorAt)
	}
	if room := maxMapPoints - len(s.hits); room > 0 {
		s.hits = append(s.hits, p.HitPoints[:min(room, len(p.HitPoints))]...)
	}
	if line := eventLine(p); line != "" {
		s.events = append(s.events, time.Now().Format("15:04:05")+"  "+line)
		if len(s.events) > maxEvents {
			s.events = s.events[len(s.events)-maxEvents:]
		}
	}
}

func (s *scanState) snapshot() (search.Progress, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, append([]string(nil), s.events...)
}

func (s *scanState) mapPoints() (anchors, hits []orb.Point) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]orb.Point(nil), s.anchors...), append([]orb.Point(nil), s.hits...)
}

func (s *scanState) stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func eventLine(p search.Progress) string {
	switch p.Kind {
	case search.EventBatch:
		return fmt.Sprintf("%s · %s p%d: +%d new, %d dup", p.Location, p.Anchor, p.Page, p.BatchNew, p.BatchDuplicates)
	case search.EventQuota, search.EventTransient:
		return fmt.Sprintf("%s, waiting %s", p.Message, p.Cooldown)
	case search.EventToken, search.EventFatal, search.EventDone:
		return p.Message
	}
	return ""
}

// ProgressModel runs one scan and shows its progress.
type ProgressModel struct {
	backend     Backend
	parent      context.Context
	req         model.SearchRequest
	bar         progress.Model
	spin        spinner.Model
	startTime   time.Time
	done        bool
	confirmStop bool
	result      search.Result
	shared      *scanState
}

type progressTickMsg time.Time

type scanCompleteMsg struct {
	Result search.Result
}

func NewProgressModel(ctx context.Context, backend Backend, req model.SearchRequest) ProgressModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(styles.Primary)
	return ProgressModel{
		backend:   backend,
		parent:    ctx,
		req:       req,
		bar:       progress.New(progress.WithDefaultGradient(), progress.WithWidth(50)),
		spin:      sp,
		startTime: time.Now(),
		shared:    &scanState{last: search.Progress{State: search.StateIdle, Goal: req.Goal, Budget: req.Budget}},
	}
}

func (m ProgressModel) Init() tea.Cmd {
	return tea.Batch(m.startScan(), tickCmd(), m.spin.Tick)
}

func tickCmd() tea.Cmd {
	return tea.Tick(300*time.Millisecond, func(t time.Time) tea.Msg {
		return progressTickMsg(t)
	})
}

func (m ProgressModel) startScan() tea.Cmd {
	shared, backend, req, parent := m.shared, m.backend, m.req, m.parent
	return func() tea.Msg {
		ctx, cancel := context.WithCancel(parent)
		defer cancel()
		shared.mu.Lock()
		shared.cancel = cancel
		shared.mu.Unlock()

		res := backend.Scan(ctx, req, shared.update)
		return scanCompleteMsg{Result: res}
	}
}

func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.shared.stop()
			return m, tea.Quit
		case "esc":
			if m.done {
				return m, func() tea.Msg { return NavigateToHome{} }
			}
			if m.confirmStop {
				m.shared.stop()
				m.confirmStop = false
				return m, nil
			}
			m.confirmStop = true
			return m, nil
		case "enter":
			if m.done {
				campaign := m.req.CampaignID
				if campaign == "" {
					campaign = model.DefaultCampaignID
				}
				return m, func() tea.Msg { return NavigateToLeads{CampaignID: campaign} }
			}
		}
		m.confirmStop = false
	case progressTickMsg:
		if m.done {
			return m, nil
		}
		return m, tickCmd()
	case scanCompleteMsg:
		m.done = true
		m.result = msg.Result
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	pm, cmd := m.bar.Update(msg)
	m.bar = pm.(progress.Model)
	return m, cmd
}

func (m ProgressModel) View() string {
	p, events := m.shared.snapshot()
	var b strings.Builder

	title := m.req.LegacyQuery
	if m.req.Niche != "" {
		title = fmt.Sprintf("%s em %s", m.req.Niche, strings.Join(m.req.Locations, ", "))
	}
	b.WriteString(styles.Title.Render("Scanning: " + title))
	b.WriteString("\n")

	state := string(p.State)
	if m.done {
		state = string(m.result.State)
	}
	head := styles.ForState(state).Render(state)
	if !m.done {
		head = m.spin.View() + " " + head
	}
	b.WriteString(head + "\n\n")

	stats := styles.Panel.Width(46).Render(m.renderStats(p))
	if mv := m.renderMap(); mv != "" {
		stats = lipgloss.JoinHorizontal(lipgloss.Top, stats, "  ", mv)
	}
	b.WriteString(stats)
	b.WriteString("\n\n")
	b.WriteString(m.bar.ViewAs(m.percent(p)))
	b.WriteString("\n\n")

	if len(events) > 0 {
		b.WriteString(styles.Hint.Render(strings.Join(events, "\n")))
		b.WriteString("\n\n")
	}

	switch {
	case m.done:
		r := m.result
		if r.State == search.StateFatalError {
			b.WriteString(styles.ErrorText.Render("Error: " + r.Reason))
		} else {
			b.WriteString(styles.SuccessText.Render(fmt.Sprintf("%d new leads stored", r.Found())))
			if r.Reason != "" {
				b.WriteString(lipgloss.NewStyle().Foreground(styles.Muted).Render("  (" + r.Reason + ")"))
			}
		}
		b.WriteString("\n")
		b.WriteString(styles.StatusBar.Render("enter view leads • esc home"))
	case m.confirmStop:
		b.WriteString(styles.ErrorText.Render("Press ESC again to stop the scan"))
		b.WriteString("\n")
		b.WriteString(styles.StatusBar.Render("esc confirm stop • any key continue"))
	default:
		b.WriteString(styles.StatusBar.Render("esc stop • ctrl+c quit"))
	}
	return b.String()
}

// renderMap plots searched anchors and found places, or returns "" before
// anything has a position.
func (m ProgressModel) renderMap() string {
	anchors, hits := m.shared.mapPoints()
	mv := components.NewMapView(mapWidth, mapHeight)
	mv.SetPoints(anchors, hits)
	if mv.Empty() {
		return ""
	}
	return styles.Panel.Render(mv.View())
}

// percent is goal progress, or location progress when there is no goal.
func (m ProgressModel) percent(p search.Progress) float64 {
	if m.done && m.result.State == search.StateGoalReached {
		return 1
	}
	if p.Goal > 0 {
		return min(1, float64(p.Found)/float64(p.Goal))
	}
	if p.LocationCount > 0 {
		return float64(p.LocationIndex-1) / float64(p.LocationCount)
	}
	return 0
}

func (m ProgressModel) renderStats(p search.Progress) string {
	var sb strings.Builder
	label := lipgloss.NewStyle().Foreground(styles.Muted).Width(12)
	val := lipgloss.NewStyle().Foreground(styles.Text).Bold(true)
	row := func(l, v string) {
		sb.WriteString(label.Render(l) + val.Render(v) + "\n")
	}

	if p.LocationCount > 0 {
		row("Location:", fmt.Sprintf("%s (%d/%d)", p.Location, p.LocationIndex, p.LocationCount))
	}
	if p.AnchorCount > 0 {
		row("Anchor:", fmt.Sprintf("%s (%d/%d)", p.Anchor, p.AnchorIndex, p.AnchorCount))
	}
	row("Page:", fmt.Sprint(p.Page))
	goal := "no goal"
	if p.Goal > 0 {
		goal = fmt.Sprint(p.Goal)
	}
	row("Found:", fmt.Sprintf("%d / %s", p.Found, goal))

	spend := fmt.Sprintf("$%.3f", p.Spend)
	if p.Budget > 0 {
		spend += fmt.Sprintf(" of $%.2f", p.Budget)
	}
	spendStyle := val
	if p.Budget > 0 && p.Spend >= p.Budget*0.8 {
		spendStyle = lipgloss.NewStyle().Foreground(styles.Warning).Bold(true)
	}
	sb.WriteString(label.Render("Spend:") + spendStyle.Render(spend) + "\n")

	if p.Cooldown > 0 && !m.done {
		warn := lipgloss.NewStyle().Foreground(styles.Warning).Bold(true)
		sb.WriteString(label.Render("Cooldown:") + warn.Render(p.Cooldown.String()) + "\n")
	}

	elapsed := time.Since(m.startTime)
	if m.done && !m.result.FinishedAt.IsZero() {
		elapsed = m.result.FinishedAt.Sub(m.result.StartedAt)
	}
	row("Elapsed:", elapsed.Truncate(time.Second).String())
	return strings.TrimRight(sb.String(), "\n")
}
