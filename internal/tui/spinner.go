package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rtms/taskboard/internal/theme"
)

// LoadingIndicator is a spinner with a message
type LoadingIndicator struct {
	spinner spinner.Model
	message string
	style   lipgloss.Style
}

// NewLoadingIndicator creates a new loading indicator
func NewLoadingIndicator(th theme.Theme, message string) *LoadingIndicator {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(th.Palette.Primary.Main)
	return &LoadingIndicator{
		spinner: s,
		message: message,
		style:   th.Styles.Muted,
	}
}

// SetMessage updates the loading message
func (l *LoadingIndicator) SetMessage(message string) {
	l.message = message
}

// Tick starts the spinner animation
func (l *LoadingIndicator) Tick() tea.Msg {
	return l.spinner.Tick()
}

// Update advances the spinner on its own tick messages
func (l *LoadingIndicator) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	l.spinner, cmd = l.spinner.Update(msg)
	return cmd
}

// View renders the loading indicator
func (l *LoadingIndicator) View() string {
	return fmt.Sprintf("%s %s", l.spinner.View(), l.style.Render(l.message))
}

// LoadingOverlay centers the indicator in a width x height box
func LoadingOverlay(width, height int, indicator *LoadingIndicator) string {
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, indicator.View())
}
