package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rtms/taskboard/internal/api"
	"github.com/rtms/taskboard/internal/theme"
	"github.com/rtms/taskboard/pkg/models"
)

const (
	loginFailed    = "Failed to login. Please check your credentials."
	registerFailed = "Registration failed. Please try again."
)

type loginMode int

const (
	modeLogin loginMode = iota
	modeRegister
)

const (
	fieldName = iota
	fieldEmail
	fieldPassword
)

type loginModel struct {
	deps       *Deps
	mode       loginMode
	inputs     []textinput.Model
	focus      int
	submitting bool
	width      int
	height     int
}

func newLogin(deps *Deps) *loginModel {
	inputs := make([]textinput.Model, 3)
	for i := range inputs {
		ti := textinput.New()
		ti.CharLimit = 256
		ti.Width = 32
		ti.Prompt = ""
		inputs[i] = ti
	}
	inputs[fieldName].Placeholder = "Your name"
	inputs[fieldEmail].Placeholder = "you@example.com"
	inputs[fieldPassword].Placeholder = "Password"
	inputs[fieldPassword].EchoMode = textinput.EchoPassword
	inputs[fieldPassword].EchoCharacter = '•'

	m := &loginModel{deps: deps, inputs: inputs, focus: fieldEmail}
	m.inputs[fieldEmail].Focus()
	return m
}

func (m *loginModel) init() tea.Cmd {
	return textinput.Blink
}

func (m *loginModel) setSize(width, height int) {
	m.width = width
	m.height = height
}

// fields lists the inputs shown in the current mode, in tab order.
func (m *loginModel) fields() []int {
	if m.mode == modeRegister {
		return []int{fieldName, fieldEmail, fieldPassword}
	}
	return []int{fieldEmail, fieldPassword}
}

func (m *loginModel) setFocus(field int) tea.Cmd {
	m.focus = field
	var cmd tea.Cmd
	for i := range m.inputs {
		if i == field {
			cmd = m.inputs[i].Focus()
		} else {
			m.inputs[i].Blur()
		}
	}
	return cmd
}

func (m *loginModel) move(delta int) tea.Cmd {
	fields := m.fields()
	pos := 0
	for i, f := range fields {
		if f == m.focus {
			pos = i
		}
	}
	pos = (pos + delta + len(fields)) % len(fields)
	return m.setFocus(fields[pos])
}

func (m *loginModel) update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case LoginSucceededMsg:
		m.submitting = false
		m.deps.Logger.Info("logged in", "user", msg.Session.UserID)
		return tea.Batch(navigate(routeDashboard), notify(theme.LevelSuccess, "Logged in successfully"))

	case LoginFailedMsg:
		m.submitting = false
		m.deps.Logger.Error("login failed", "error", msg.Err)
		return notify(theme.LevelError, api.UserMessage(msg.Err, loginFailed))

	case RegisteredMsg:
		m.submitting = false
		if msg.Err != nil {
			m.deps.Logger.Error("registration failed", "error", msg.Err)
			return notify(theme.LevelError, api.UserMessage(msg.Err, registerFailed))
		}
		m.deps.Logger.Info("registered", "email", msg.Email)
		m.mode = modeLogin
		m.inputs[fieldName].Reset()
		m.inputs[fieldPassword].Reset()
		m.inputs[fieldEmail].SetValue(msg.Email)
		return tea.Batch(m.setFocus(fieldPassword), notify(theme.LevelSuccess, "Registration successful. Please log in."))

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+r":
			if m.mode == modeLogin {
				m.mode = modeRegister
				return m.setFocus(fieldName)
			}
			m.mode = modeLogin
			return m.setFocus(fieldEmail)
		case "tab", "down":
			return m.move(1)
		case "shift+tab", "up":
			return m.move(-1)
		case "enter":
			fields := m.fields()
			if m.focus != fields[len(fields)-1] {
				return m.move(1)
			}
			return m.submit()
		}
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return cmd
}

func (m *loginModel) submit() tea.Cmd {
	if m.submitting {
		return nil
	}

	name := strings.TrimSpace(m.inputs[fieldName].Value())
	email := strings.TrimSpace(m.inputs[fieldEmail].Value())
	password := m.inputs[fieldPassword].Value()
	if email == "" || password == "" || (m.mode == modeRegister && name == "") {
		return notify(theme.LevelWarning, "Please fill in all fields")
	}

	m.submitting = true
	if m.mode == modeRegister {
		return registerCmd(m.deps, models.Registration{Name: name, Email: email, Password: password})
	}
	return loginCmd(m.deps, models.Credentials{Email: email, Password: password})
}

// loginCmd authenticates and persists the session before reporting
// success, so the dashboard always finds it on mount.
func loginCmd(deps *Deps, creds models.Credentials) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), api.Timeout)
		defer cancel()

		s, err := deps.API.Login(ctx, creds)
		if err != nil {
			return LoginFailedMsg{Err: err}
		}
		if err := deps.Sessions.Set(ctx, s); err != nil {
			return LoginFailedMsg{Err: err}
		}
		return LoginSucceededMsg{Session: s}
	}
}

func registerCmd(deps *Deps, reg models.Registration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), api.Timeout)
		defer cancel()
		return RegisteredMsg{Email: reg.Email, Err: deps.API.Register(ctx, reg)}
	}
}

func (m *loginModel) view() string {
	th := m.deps.Theme
	labels := map[int]string{fieldName: "Name", fieldEmail: "Email", fieldPassword: "Password"}

	title, action, toggle := "Login", "Sign in", "ctrl+r: create an account"
	if m.mode == modeRegister {
		title, action, toggle = "Register", "Create account", "ctrl+r: back to login"
	}

	var rows []string
	rows = append(rows, theme.Gradient(title, th.Gradients.Brand, true), "")
	for _, f := range m.fields() {
		box := th.Styles.Input
		if f == m.focus {
			box = th.Styles.InputFocus
		}
		rows = append(rows, th.Styles.Label.Render(labels[f]), box.Render(m.inputs[f].View()))
	}

	button := th.Styles.Contained.Render(action)
	if m.submitting {
		button = th.Styles.Muted.Render(action + "…")
	}
	rows = append(rows, "", button, "", th.Styles.Help.Render("enter: submit • tab: next field • "+toggle))

	card := th.Styles.Paper.Padding(1, 3).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
	if m.width <= 0 || m.height <= 0 {
		return card
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, card)
}
