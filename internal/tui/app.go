package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/contato-rede/leads/internal/model"
	"github.com/contato-rede/leads/internal/tui/views"
)

type viewID int

const (
	viewHome viewID = iota
	viewSearch
	viewProgress
	viewExplorer
	viewFilePicker
	viewHistory
)

// App is the root bubbletea model.
type App struct {
	ctx         context.Context
	backend     views.Backend
	currentView viewID
	width       int
	height      int
	home        views.HomeModel
	search      views.SearchModel
	progress    views.ProgressModel
	explorer    views.ExplorerModel
	filePicker  views.FilePickerModel
	history     views.HistoryModel
	start       *model.SearchRequest
}

// NewApp opens on the home menu, or straight into a scan when start is set.
func NewApp(ctx context.Context, backend views.Backend, start *model.SearchRequest) App {
	return App{
		ctx:         ctx,
		backend:     backend,
		currentView: viewHome,
		home:        views.NewHomeModel(""),
		start:       start,
	}
}

func (a App) Init() tea.Cmd {
	if a.start != nil {
		req := *a.start
		return func() tea.Msg { return views.StartScanMsg{Request: req} }
	}
	return a.home.Init()
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		// the progress view cancels its scan on ctrl+c first
		if msg.String() == "ctrl+c" && a.currentView != viewProgress {
			return a, tea.Quit
		}
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
	case views.NavigateToHome:
		a.currentView = viewHome
		a.home = views.NewHomeModel(msg.Notice)
		return a, a.home.Init()
	case views.NavigateToSearch:
		return a, a.openSearch(msg.Prefill)
	case views.NavigateToResume:
		cfg, err := a.backend.LastSearch(a.ctx)
		if err != nil || cfg == nil {
			notice := "No saved search to resume"
			if err != nil {
				notice = "Could not load last search: " + err.Error()
			}
			a.home = views.NewHomeModel(notice)
			return a, nil
		}
		return a, a.openSearch(cfg)
	case views.StartScanMsg:
		_ = SaveRecent(msg.Request.Locations)
		a.currentView = viewProgress
		a.progress = views.NewProgressModel(a.ctx, a.backend, msg.Request)
		return a, tea.Batch(a.progress.Init(), a.sizeCmd())
	case views.NavigateToLeads:
		a.currentView = viewExplorer
		a.explorer = views.NewExplorerModel(a.ctx, a.backend, msg.CampaignID)
		return a, tea.Batch(a.explorer.Init(), a.sizeCmd())
	case views.NavigateToHistory:
		a.currentView = viewHistory
		a.history = views.NewHistoryModel(a.ctx, a.backend)
		return a, a.history.Init()
	case views.NavigateToRestore:
		a.currentView = viewFilePicker
		a.filePicker = views.NewFilePickerModel(a.ctx, a.backend)
		return a, a.filePicker.Init()
	}

	var cmd tea.Cmd
	var m tea.Model
	switch a.currentView {
	case viewHome:
		m, cmd = a.home.Update(msg)
		a.home = m.(views.HomeModel)
	case viewSearch:
		m, cmd = a.search.Update(msg)
		a.search = m.(views.SearchModel)
	case viewProgress:
		m, cmd = a.progress.Update(msg)
		a.progress = m.(views.ProgressModel)
	case viewExplorer:
		m, cmd = a.explorer.Update(msg)
		a.explorer = m.(views.ExplorerModel)
	case viewFilePicker:
		m, cmd = a.filePicker.Update(msg)
		a.filePicker = m.(views.FilePickerModel)
	case viewHistory:
		m, cmd = a.history.Update(msg)
		a.history = m.(views.HistoryModel)
	}
	return a, cmd
}

func (a *App) openSearch(prefill *model.SearchConfig) tea.Cmd {
	a.currentView = viewSearch
	a.search = views.NewSearchModel(prefill, suggestions(LoadRecent(), a.backend.Regions()))
	return a.search.Init()
}

func (a App) View() string {
	var content string
	switch a.currentView {
	case viewHome:
		content = a.home.View()
	case viewSearch:
		content = a.search.View()
	case viewProgress:
		content = a.progress.View()
	case viewExplorer:
		content = a.explorer.View()
	case viewFilePicker:
		content = a.filePicker.View()
	case viewHistory:
		content = a.history.View()
	}

	return lipgloss.Place(
		a.width, a.height,
		lipgloss.Center, lipgloss.Top,
		content,
	)
}

// sizeCmd sends a WindowSizeMsg so newly created views get the current terminal size.
func (a App) sizeCmd() tea.Cmd {
	w, h := a.width, a.height
	return func() tea.Msg {
		return tea.WindowSizeMsg{Width: w, Height: h}
	}
}

// Run starts the TUI and blocks until the user quits.
func Run(ctx context.Context, backend views.Backend, start *model.SearchRequest) error {
	p := tea.NewProgram(NewApp(ctx, backend, start), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
