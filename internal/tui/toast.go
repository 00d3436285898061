package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"
	"github.com/rtms/taskboard/internal/theme"
)

// toast is the single visible notification.
type toast struct {
	id    int
	level theme.Level
	text  string
}

// toasts keeps the current notification and hands out ids so that an
// expiry tick only hides the toast it was scheduled for.
type toasts struct {
	seq     int
	current *toast
}

func (t *toasts) show(level theme.Level, text string) int {
	t.seq++
	t.current = &toast{id: t.seq, level: level, text: text}
	return t.seq
}

func (t *toasts) expire(id int) {
	if t.current != nil && t.current.id == id {
		t.current = nil
	}
}

func (t *toasts) view(th theme.Theme, width int) string {
	if t.current == nil {
		return ""
	}
	text := t.current.text
	if width > 4 {
		text = truncate.StringWithTail(text, uint(width-4), "…")
	}
	box := th.Styles.Toast[t.current.level].Render(text)
	if width <= 0 {
		return box
	}
	return lipgloss.PlaceHorizontal(width, lipgloss.Right, box)
}
