package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rtms/taskboard/internal/session"
	"github.com/rtms/taskboard/internal/theme"
	"github.com/rtms/taskboard/pkg/models"
)

// ToastDuration is how long a notification stays on screen.
const ToastDuration = 4 * time.Second

type route int

const (
	routeLogin route = iota
	routeDashboard
)

// Message types for async operations
type (
	// NavigateMsg switches the active route
	NavigateMsg struct {
		To route
	}

	// ToastMsg shows a transient notification
	ToastMsg struct {
		Level theme.Level
		Text  string
	}

	// ToastExpiredMsg hides the toast with the matching id
	ToastExpiredMsg struct {
		ID int
	}

	// SessionEventMsg carries a session change from the session manager
	SessionEventMsg struct {
		Event session.Event
	}

	// LoginSucceededMsg is sent after the session has been persisted
	LoginSucceededMsg struct {
		Session models.Session
	}

	// LoginFailedMsg carries a failed login attempt
	LoginFailedMsg struct {
		Err error
	}

	// RegisteredMsg carries the result of a registration
	RegisteredMsg struct {
		Email string
		Err   error
	}

	// TasksLoadedMsg contains a fetched task collection
	TasksLoadedMsg struct {
		RequestID string
		Tasks     []models.Task
		Err       error
	}

	// SuggestionsLoadedMsg contains AI task suggestions
	SuggestionsLoadedMsg struct {
		RequestID   string
		Suggestions []string
		Err         error
	}

	// UpdateEventMsg carries a realtime event to the dashboard
	UpdateEventMsg struct {
		SubscriptionID string
		Event          models.UpdateEvent
	}

	// FeedConnectedMsg reports the outcome of the realtime handshake
	FeedConnectedMsg struct {
		Err error
	}

	// TaskSavedMsg reports the outcome of a create, update or delete
	TaskSavedMsg struct {
		Op  taskOp
		Err error
	}

	// ChatReplyMsg contains the assistant's reply
	ChatReplyMsg struct {
		RequestID string
		Reply     string
		Err       error
	}

	// ClipboardMsg reports a clipboard copy
	ClipboardMsg struct {
		Text string
		Err  error
	}
)

type taskOp int

const (
	opCreate taskOp = iota
	opToggle
	opDelete
)

func (o taskOp) String() string {
	switch o {
	case opCreate:
		return "create"
	case opToggle:
		return "update"
	case opDelete:
		return "delete"
	}
	return "unknown"
}

// navigate returns a command that switches to r.
func navigate(r route) tea.Cmd {
	return func() tea.Msg {
		return NavigateMsg{To: r}
	}
}

// notify returns a command that shows a toast.
func notify(level theme.Level, text string) tea.Cmd {
	return func() tea.Msg {
		return ToastMsg{Level: level, Text: text}
	}
}

// expireToastCmd hides toast id after ToastDuration.
func expireToastCmd(id int) tea.Cmd {
	return tea.Tick(ToastDuration, func(time.Time) tea.Msg {
		return ToastExpiredMsg{ID: id}
	})
}

// waitForSessionEvent blocks until the session manager reports a change.
func waitForSessionEvent(events <-chan session.Event) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-events
		if !ok {
			return nil
		}
		return SessionEventMsg{Event: e}
	}
}
