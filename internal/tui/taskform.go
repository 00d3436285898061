package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rtms/taskboard/internal/theme"
	"github.com/rtms/taskboard/pkg/models"
)

const (
	formTitle = iota
	formDescription
)

// taskForm is the modal used to create a task.
type taskForm struct {
	title       textinput.Model
	description textarea.Model
	focus       int
	submitting  bool
}

func newTaskForm(initial models.FormState, width int) *taskForm {
	title := textinput.New()
	title.Placeholder = "What needs doing?"
	title.Prompt = ""
	title.CharLimit = 200
	title.SetValue(initial.Title)

	desc := textarea.New()
	desc.Placeholder = "Details (optional)"
	desc.ShowLineNumbers = false
	desc.SetHeight(4)
	desc.SetValue(initial.Description)

	f := &taskForm{title: title, description: desc}
	f.setWidth(width)
	f.title.Focus()
	return f
}

func (f *taskForm) setWidth(width int) {
	w := width/2 - 6
	if w < 30 {
		w = 30
	}
	f.title.Width = w
	f.description.SetWidth(w)
}

// state reports the form contents.
func (f *taskForm) state() models.FormState {
	return models.FormState{
		Open:        true,
		Title:       f.title.Value(),
		Description: f.description.Value(),
	}
}

func (f *taskForm) input() models.TaskInput {
	return models.TaskInput{
		Title:       strings.TrimSpace(f.title.Value()),
		Description: strings.TrimSpace(f.description.Value()),
		Status:      models.StatusPending,
	}
}

func (f *taskForm) setFocus(field int) tea.Cmd {
	f.focus = field
	if field == formTitle {
		f.description.Blur()
		return f.title.Focus()
	}
	f.title.Blur()
	return f.description.Focus()
}

func (f *taskForm) update(msg tea.Msg) tea.Cmd {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "tab", "shift+tab":
			return f.setFocus(1 - f.focus)
		}
	}

	var cmd tea.Cmd
	if f.focus == formTitle {
		f.title, cmd = f.title.Update(msg)
	} else {
		f.description, cmd = f.description.Update(msg)
	}
	return cmd
}

func (f *taskForm) view(th *theme.Theme) string {
	titleBox, descBox := th.Styles.InputFocus, th.Styles.Input
	if f.focus == formDescription {
		titleBox, descBox = th.Styles.Input, th.Styles.InputFocus
	}

	button := th.Styles.Contained.Render("Add Task")
	if f.submitting {
		button = th.Styles.Muted.Render("Saving…")
	}

	return th.Styles.Paper.Padding(1, 2).Render(lipgloss.JoinVertical(lipgloss.Left,
		th.Styles.Title.Render("Add New Task"),
		"",
		th.Styles.Label.Render("Title"),
		titleBox.Render(f.title.View()),
		th.Styles.Label.Render("Description"),
		descBox.Render(f.description.View()),
		"",
		button,
		th.Styles.Help.Render("enter/ctrl+s: save • tab: switch field • esc: cancel"),
	))
}
