package tui

import (
	"context"
	"log/slog"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/rtms/taskboard/internal/session"
	"github.com/rtms/taskboard/internal/theme"
)

const appTitle = "Real-Time Task Management System"

// header is the banner shown above the dashboard. Logging out only clears
// the session; the app follows the session change back to the login view.
type header struct {
	sessions *session.Manager
	logger   *slog.Logger
	theme    theme.Theme
}

func (h header) logout(ctx context.Context) {
	h.logger.Info("logging out")
	h.sessions.Clear(ctx)
}

func (h header) view(width int) string {
	hint := "L logout"
	title := " " + appTitle
	if width > 0 {
		pad := width - lipgloss.Width(title) - lipgloss.Width(hint) - 1
		if pad > 0 {
			title += strings.Repeat(" ", pad) + hint
		}
	}
	return theme.Bar(title, width, h.theme.Gradients.Brand)
}
