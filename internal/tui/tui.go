package tui

import (
	"context"
	"log/slog"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rtms/taskboard/internal/api"
	"github.com/rtms/taskboard/internal/logging"
	"github.com/rtms/taskboard/internal/session"
	"github.com/rtms/taskboard/internal/suggest"
	"github.com/rtms/taskboard/internal/theme"
	"github.com/rtms/taskboard/pkg/models"
)

// Feed is the realtime update channel the dashboard listens to.
type Feed interface {
	Connect(ctx context.Context, token string) error
	Subscribe(fn func(models.UpdateEvent)) func()
	Close() error
}

// Snapshots caches the last fetched task list for offline display.
type Snapshots interface {
	SaveTasks(ctx context.Context, userID string, tasks []models.Task) error
}

// Deps are the collaborators the views need.
type Deps struct {
	API      api.Service
	Sessions *session.Manager
	// NewFeed returns a fresh, unconnected feed for each dashboard mount.
	NewFeed   func() Feed
	Suggester suggest.Suggester
	Chatter   suggest.Chatter
	Snapshots Snapshots
	Copy      func(string) error
	Logger    *slog.Logger
	Theme     *theme.Theme
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = logging.Discard()
	}
	if d.Copy == nil {
		d.Copy = clipboard.WriteAll
	}
	if d.Theme == nil {
		th := theme.Default
		d.Theme = &th
	}
	return d
}

type model struct {
	deps      *Deps
	route     route
	login     *loginModel
	dashboard *dashboard
	toasts    *toasts
	events    chan session.Event
	release   func()
	ready     bool
	width     int
	height    int
}

func initialModel(deps Deps) model {
	d := deps.withDefaults()

	events := make(chan session.Event, 8)
	release := d.Sessions.Subscribe(func(e session.Event) {
		select {
		case events <- e:
		default:
			d.Logger.Warn("dropping session event", "cleared", e.Cleared)
		}
	})

	return model{
		deps:      &d,
		route:     routeDashboard,
		dashboard: newDashboard(&d),
		toasts:    &toasts{},
		events:    events,
		release:   release,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(waitForSessionEvent(m.events), m.dashboard.mount())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.resize()
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.shutdown()
			return m, tea.Quit
		}

	case NavigateMsg:
		return m, m.goTo(msg.To)

	case SessionEventMsg:
		cmds := []tea.Cmd{waitForSessionEvent(m.events)}
		if msg.Event.Cleared && m.route == routeDashboard {
			cmds = append(cmds, m.goTo(routeLogin), notify(theme.LevelInfo, "You have been logged out"))
		}
		return m, tea.Batch(cmds...)

	case ToastMsg:
		id := m.toasts.show(msg.Level, msg.Text)
		return m, expireToastCmd(id)

	case ToastExpiredMsg:
		m.toasts.expire(msg.ID)
		return m, nil
	}

	switch {
	case m.route == routeLogin && m.login != nil:
		return m, m.login.update(msg)
	case m.route == routeDashboard && m.dashboard != nil:
		return m, m.dashboard.update(msg)
	}
	return m, nil
}

// goTo unmounts the current view and mounts r.
func (m *model) goTo(r route) tea.Cmd {
	if r == m.route {
		if (r == routeLogin && m.login != nil) || (r == routeDashboard && m.dashboard != nil && m.dashboard.mounted) {
			return nil
		}
	}

	if m.dashboard != nil {
		m.dashboard.unmount()
		m.dashboard = nil
	}
	m.login = nil
	m.route = r
	m.deps.Logger.Debug("navigating", "route", r)

	var cmd tea.Cmd
	switch r {
	case routeLogin:
		m.login = newLogin(m.deps)
		cmd = m.login.init()
	case routeDashboard:
		m.dashboard = newDashboard(m.deps)
		cmd = m.dashboard.mount()
	}
	m.resize()
	return cmd
}

func (m *model) resize() {
	if !m.ready {
		return
	}
	// The bottom line is reserved for toasts.
	h := m.height - 1
	if m.login != nil {
		m.login.setSize(m.width, h)
	}
	if m.dashboard != nil {
		m.dashboard.setSize(m.width, h)
	}
}

// shutdown releases the realtime subscription and the session listener.
func (m model) shutdown() {
	if m.dashboard != nil {
		m.dashboard.unmount()
	}
	m.release()
}

func (m model) View() string {
	if !m.ready {
		return "\n  Initializing..."
	}

	var body string
	switch {
	case m.route == routeLogin && m.login != nil:
		body = m.login.view()
	case m.route == routeDashboard && m.dashboard != nil:
		body = m.dashboard.view()
	}
	body = lipgloss.NewStyle().Height(m.height - 1).MaxHeight(m.height - 1).Render(body)
	return body + "\n" + m.toasts.view(*m.deps.Theme, m.width)
}

func (r route) String() string {
	switch r {
	case routeLogin:
		return "login"
	case routeDashboard:
		return "dashboard"
	}
	return "unknown"
}

// Run starts the interactive client and blocks until the user quits or ctx
// is cancelled.
func Run(ctx context.Context, deps Deps) error {
	m := initialModel(deps)
	defer m.shutdown()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := p.Run()
	if fm, ok := final.(model); ok {
		fm.shutdown()
	}
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
