package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"
	"github.com/rtms/taskboard/internal/suggest"
	"github.com/rtms/taskboard/internal/theme"
)

const chatHistoryLines = 4

type chatEntry struct {
	fromUser bool
	text     string
}

// chatPanel is the assistant conversation. Task suggestions found in the
// latest reply can be picked to prefill the task form.
type chatPanel struct {
	input       textinput.Model
	history     []chatEntry
	suggestions []string
	cursor      int
	pending     bool
	width       int
}

func newChatPanel() *chatPanel {
	in := textinput.New()
	in.Placeholder = "Ask the assistant for ideas…"
	in.Prompt = "› "
	in.CharLimit = 500
	return &chatPanel{input: in}
}

func (c *chatPanel) setWidth(width int) {
	c.width = width
	if width > 8 {
		c.input.Width = width - 8
	}
}

func (c *chatPanel) ask(text string) {
	c.history = append(c.history, chatEntry{fromUser: true, text: text})
	c.input.Reset()
	c.pending = true
}

func (c *chatPanel) reply(text string) {
	c.pending = false
	c.history = append(c.history, chatEntry{text: text})
	c.suggestions = suggest.Extract(text)
	c.cursor = 0
}

func (c *chatPanel) fail(text string) {
	c.pending = false
	c.history = append(c.history, chatEntry{text: text})
}

func (c *chatPanel) move(delta int) {
	if len(c.suggestions) == 0 {
		return
	}
	c.cursor = (c.cursor + delta + len(c.suggestions)) % len(c.suggestions)
}

func (c *chatPanel) selected() (string, bool) {
	if c.cursor < 0 || c.cursor >= len(c.suggestions) {
		return "", false
	}
	return c.suggestions[c.cursor], true
}

func (c *chatPanel) view(th *theme.Theme, focused bool) string {
	wrap := c.width - 6
	if wrap < 20 {
		wrap = 20
	}

	var lines []string
	for _, e := range c.history {
		who, style := "assistant: ", th.Styles.Muted
		if e.fromUser {
			who, style = "you: ", lipgloss.NewStyle().Foreground(th.Palette.Text)
		}
		for _, l := range strings.Split(wordwrap.String(who+e.text, wrap), "\n") {
			lines = append(lines, style.Render(l))
		}
	}
	if c.pending {
		lines = append(lines, th.Styles.Muted.Render("assistant is typing…"))
	}
	if len(lines) > chatHistoryLines {
		lines = lines[len(lines)-chatHistoryLines:]
	}
	for len(lines) < chatHistoryLines {
		lines = append(lines, "")
	}

	var picks []string
	for i, s := range c.suggestions {
		s = truncate.StringWithTail(s, 28, "…")
		if focused && i == c.cursor {
			picks = append(picks, th.Styles.Selected.Render("▸ "+s))
		} else {
			picks = append(picks, th.Styles.Muted.Render("  "+s))
		}
	}
	pickLine := th.Styles.Help.Render("suggestions from the assistant appear here")
	if len(picks) > 0 {
		pickLine = strings.Join(picks, " ")
	}

	box := th.Styles.Paper
	if focused {
		box = box.BorderForeground(th.Palette.Primary.Main)
	}
	if c.width > 2 {
		box = box.Width(c.width - 2)
	}
	return box.Render(lipgloss.JoinVertical(lipgloss.Left,
		th.Styles.Label.Render("Assistant"),
		strings.Join(lines, "\n"),
		pickLine,
		c.input.View(),
	))
}
