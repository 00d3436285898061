package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/muesli/reflow/truncate"
	"github.com/rtms/taskboard/internal/api"
	"github.com/rtms/taskboard/internal/session"
	"github.com/rtms/taskboard/internal/suggest"
	"github.com/rtms/taskboard/internal/theme"
	"github.com/rtms/taskboard/pkg/models"
)

const (
	fetchFailed  = "Failed to fetch tasks"
	loginAgain   = "Please login again"
	minListLines = 3
	// header, title, suggestions, chat and help lines around the list
	dashboardChrome = 1 + 2 + 4 + 9 + 1 + 2
)

type pane int

const (
	paneTasks pane = iota
	paneSuggestions
	paneChat
	paneCount
)

// subscription bridges feed callbacks into the bubbletea loop. Only task
// updates for the session user are forwarded, and at most one is pending:
// a single refetch covers any number of them.
type subscription struct {
	id      string
	feed    Feed
	pending chan models.UpdateEvent
	done    chan struct{}
	release func()
	once    sync.Once
	deps    *Deps
}

func subscribe(deps *Deps, feed Feed, userID string) *subscription {
	s := &subscription{
		id:      uuid.New().String(),
		feed:    feed,
		pending: make(chan models.UpdateEvent, 1),
		done:    make(chan struct{}),
		deps:    deps,
	}
	s.release = feed.Subscribe(func(e models.UpdateEvent) {
		if e.Type != models.UpdateEventTaskUpdate || e.UserID != userID {
			return
		}
		select {
		case s.pending <- e:
		default:
		}
	})
	return s
}

// wait delivers the next event, or nothing once the subscription is closed.
func (s *subscription) wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case e := <-s.pending:
			return UpdateEventMsg{SubscriptionID: s.id, Event: e}
		case <-s.done:
			return nil
		}
	}
}

// close unsubscribes and closes the feed exactly once.
func (s *subscription) close() {
	s.once.Do(func() {
		close(s.done)
		s.release()
		if err := s.feed.Close(); err != nil {
			s.deps.Logger.Warn("closing update feed", "error", err)
		}
	})
}

// dashboard is the main view: task list, AI suggestions and the assistant.
type dashboard struct {
	deps    *Deps
	header  header
	session models.Session
	mounted bool
	reqs    *requests
	sub     *subscription

	tasks         []models.Task
	cursor        int
	loading       bool
	loader        *LoadingIndicator
	suggestions   []string
	suggestCursor int
	form          *taskForm
	chat          *chatPanel
	focus         pane
	list          viewport.Model
	width         int
	height        int
}

func newDashboard(deps *Deps) *dashboard {
	return &dashboard{
		deps:        deps,
		header:      header{sessions: deps.Sessions, logger: deps.Logger, theme: *deps.Theme},
		reqs:        newRequests(),
		tasks:       []models.Task{},
		suggestions: []string{},
		loader:      NewLoadingIndicator(*deps.Theme, "Loading tasks..."),
		chat:        newChatPanel(),
		list:        viewport.New(0, 0),
	}
}

// mount requires a session. Without one it redirects to login and issues
// no request.
func (d *dashboard) mount() tea.Cmd {
	if d.mounted {
		return nil
	}

	s, err := d.deps.Sessions.Get(context.Background())
	if err != nil {
		if !errors.Is(err, session.ErrNoSession) {
			d.deps.Logger.Error("reading session", "error", err)
		}
		d.reqs.close()
		return navigate(routeLogin)
	}

	d.session = s
	d.mounted = true
	d.sub = subscribe(d.deps, d.deps.NewFeed(), s.UserID)
	d.deps.Logger.Info("dashboard mounted", "user", s.UserID)

	return tea.Batch(d.fetchTasks(), d.connect(), d.sub.wait(), d.loader.Tick)
}

// unmount cancels in-flight requests and releases the feed. It is safe to
// call more than once.
func (d *dashboard) unmount() {
	if !d.mounted {
		return
	}
	d.mounted = false
	d.reqs.close()
	d.sub.close()
	d.deps.Logger.Debug("dashboard unmounted")
}

func (d *dashboard) connect() tea.Cmd {
	feed, token, ctx := d.sub.feed, d.session.Token, d.reqs.context()
	return func() tea.Msg {
		return FeedConnectedMsg{Err: feed.Connect(ctx, token)}
	}
}

func (d *dashboard) fetchTasks() tea.Cmd {
	requestID, ctx := d.reqs.begin(requestTasks)
	d.loading = true
	if len(d.tasks) > 0 {
		d.loader.SetMessage("Refreshing...")
	} else {
		d.loader.SetMessage("Loading tasks...")
	}
	deps := d.deps
	return func() tea.Msg {
		s, err := deps.Sessions.Get(ctx)
		if err != nil {
			return TasksLoadedMsg{RequestID: requestID, Err: err}
		}
		tasks, err := deps.API.Tasks(ctx, s.Token)
		return TasksLoadedMsg{RequestID: requestID, Tasks: tasks, Err: err}
	}
}

// setTasks replaces the collection. Suggestions are refreshed whenever the
// size changes to a non-zero value.
func (d *dashboard) setTasks(tasks []models.Task) tea.Cmd {
	if tasks == nil {
		tasks = []models.Task{}
	}
	prev := len(d.tasks)
	d.tasks = tasks
	if d.cursor >= len(tasks) {
		d.cursor = len(tasks) - 1
	}
	if d.cursor < 0 {
		d.cursor = 0
	}
	d.refreshList()

	if len(tasks) != prev && len(tasks) > 0 {
		return d.requestSuggestions()
	}
	return nil
}

func (d *dashboard) requestSuggestions() tea.Cmd {
	if d.deps.Suggester == nil {
		return nil
	}
	requestID, ctx := d.reqs.begin(requestSuggestions)
	tasks := append([]models.Task(nil), d.tasks...)
	s := d.deps.Suggester
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, suggest.Timeout)
		defer cancel()
		out, err := s.Suggest(ctx, tasks)
		return SuggestionsLoadedMsg{RequestID: requestID, Suggestions: out, Err: err}
	}
}

func (d *dashboard) saveSnapshot() tea.Cmd {
	if d.deps.Snapshots == nil {
		return nil
	}
	ctx, userID := d.reqs.context(), d.session.UserID
	tasks := append([]models.Task(nil), d.tasks...)
	deps := d.deps
	return func() tea.Msg {
		if err := deps.Snapshots.SaveTasks(ctx, userID, tasks); err != nil && ctx.Err() == nil {
			deps.Logger.Warn("saving task snapshot", "error", err)
		}
		return nil
	}
}

// mutate runs fn with the current token and reports the result as op.
func (d *dashboard) mutate(op taskOp, fn func(ctx context.Context, token string) error) tea.Cmd {
	ctx, deps := d.reqs.context(), d.deps
	return func() tea.Msg {
		s, err := deps.Sessions.Get(ctx)
		if err == nil {
			err = fn(ctx, s.Token)
		}
		return TaskSavedMsg{Op: op, Err: err}
	}
}

func (d *dashboard) sendChat(text string) tea.Cmd {
	requestID, ctx := d.reqs.begin(requestChat)
	chatter := d.deps.Chatter
	tasks := append([]models.Task(nil), d.tasks...)
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, suggest.Timeout)
		defer cancel()
		reply, err := chatter.Chat(ctx, text, tasks)
		return ChatReplyMsg{RequestID: requestID, Reply: reply, Err: err}
	}
}

func (d *dashboard) openForm(initial models.FormState) tea.Cmd {
	d.form = newTaskForm(initial, d.width)
	return textinput.Blink
}

func (d *dashboard) update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case TasksLoadedMsg:
		if !d.mounted || !d.reqs.current(requestTasks, msg.RequestID) {
			return nil
		}
		d.reqs.finish(msg.RequestID)
		d.loading = false

		switch {
		case errors.Is(msg.Err, session.ErrNoSession):
			d.deps.Logger.Warn("no user id at fetch time")
			return tea.Batch(notify(theme.LevelError, loginAgain), navigate(routeLogin))
		case msg.Err != nil:
			d.deps.Logger.Error("fetching tasks", "error", msg.Err)
			return tea.Batch(d.setTasks(nil), notify(theme.LevelError, fetchFailed))
		}
		d.deps.Logger.Debug("tasks loaded", "count", len(msg.Tasks))
		return tea.Batch(d.setTasks(msg.Tasks), d.saveSnapshot())

	case SuggestionsLoadedMsg:
		if !d.mounted || !d.reqs.current(requestSuggestions, msg.RequestID) {
			return nil
		}
		d.reqs.finish(msg.RequestID)
		if msg.Err != nil {
			d.deps.Logger.Error("fetching suggestions", "error", msg.Err)
			d.suggestions = []string{}
		} else if msg.Suggestions == nil {
			d.suggestions = []string{}
		} else {
			d.suggestions = msg.Suggestions
		}
		if d.suggestCursor >= len(d.suggestions) {
			d.suggestCursor = 0
		}
		return nil

	case UpdateEventMsg:
		if !d.mounted || d.sub == nil || msg.SubscriptionID != d.sub.id {
			return nil
		}
		cmds := []tea.Cmd{d.sub.wait()}
		if msg.Event.Type == models.UpdateEventTaskUpdate && msg.Event.UserID == d.session.UserID {
			d.deps.Logger.Debug("task update received")
			cmds = append(cmds, d.fetchTasks())
		}
		return tea.Batch(cmds...)

	case FeedConnectedMsg:
		if !d.mounted || msg.Err == nil {
			return nil
		}
		d.deps.Logger.Warn("update feed unavailable", "error", msg.Err)
		return notify(theme.LevelWarning, "Live updates unavailable")

	case TaskSavedMsg:
		return d.taskSaved(msg)

	case ChatReplyMsg:
		if !d.mounted || !d.reqs.current(requestChat, msg.RequestID) {
			return nil
		}
		d.reqs.finish(msg.RequestID)
		if msg.Err != nil {
			d.deps.Logger.Error("assistant request failed", "error", msg.Err)
			d.chat.fail("Sorry, I couldn't reach the assistant.")
			return nil
		}
		d.chat.reply(msg.Reply)
		return nil

	case ClipboardMsg:
		if msg.Err != nil {
			d.deps.Logger.Warn("copying to clipboard", "error", msg.Err)
			return notify(theme.LevelWarning, "Clipboard unavailable")
		}
		return notify(theme.LevelInfo, fmt.Sprintf("Copied %q", msg.Text))

	case spinner.TickMsg:
		if !d.mounted {
			return nil
		}
		return d.loader.Update(msg)

	case tea.KeyMsg:
		return d.handleKey(msg)
	}

	if d.form != nil {
		return d.form.update(msg)
	}
	if d.focus == paneChat {
		var cmd tea.Cmd
		d.chat.input, cmd = d.chat.input.Update(msg)
		return cmd
	}
	return nil
}

func (d *dashboard) taskSaved(msg TaskSavedMsg) tea.Cmd {
	if !d.mounted {
		return nil
	}
	if errors.Is(msg.Err, session.ErrNoSession) {
		return tea.Batch(notify(theme.LevelError, loginAgain), navigate(routeLogin))
	}
	if msg.Err != nil {
		d.deps.Logger.Error("saving task", "op", msg.Op, "error", msg.Err)
		if msg.Op == opCreate && d.form != nil {
			d.form.submitting = false
		}
		return notify(theme.LevelError, api.UserMessage(msg.Err, fmt.Sprintf("Failed to %s task", msg.Op)))
	}

	var text string
	switch msg.Op {
	case opCreate:
		d.form = nil
		text = "Task added successfully"
	case opToggle:
		text = "Task updated"
	case opDelete:
		text = "Task deleted"
	}
	return tea.Batch(notify(theme.LevelSuccess, text), d.fetchTasks())
}

func (d *dashboard) handleKey(msg tea.KeyMsg) tea.Cmd {
	if d.form != nil {
		return d.formKey(msg)
	}

	switch msg.String() {
	case "tab":
		return d.setFocus((d.focus + 1) % paneCount)
	case "shift+tab":
		return d.setFocus((d.focus + paneCount - 1) % paneCount)
	}

	if d.focus == paneChat {
		return d.chatKey(msg)
	}

	switch msg.String() {
	case "q":
		d.unmount()
		return tea.Quit
	case "L":
		d.header.logout(d.reqs.context())
		return nil
	case "n", "a":
		return d.openForm(models.FormState{Open: true})
	case "r":
		return d.fetchTasks()
	}

	if d.focus == paneSuggestions {
		return d.suggestionKey(msg)
	}
	return d.taskKey(msg)
}

func (d *dashboard) setFocus(p pane) tea.Cmd {
	d.focus = p
	d.refreshList()
	if p == paneChat {
		return d.chat.input.Focus()
	}
	d.chat.input.Blur()
	return nil
}

func (d *dashboard) formKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		d.form = nil
		return nil
	case "ctrl+s":
		return d.submitForm()
	case "enter":
		if d.form.focus == formTitle {
			return d.submitForm()
		}
	}
	return d.form.update(msg)
}

func (d *dashboard) submitForm() tea.Cmd {
	if d.form.submitting {
		return nil
	}
	in := d.form.input()
	if in.Title == "" {
		return notify(theme.LevelWarning, "Title is required")
	}
	d.form.submitting = true
	svc := d.deps.API
	return d.mutate(opCreate, func(ctx context.Context, token string) error {
		_, err := svc.CreateTask(ctx, token, in)
		return err
	})
}

func (d *dashboard) taskKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "up", "k":
		if d.cursor > 0 {
			d.cursor--
			d.refreshList()
		}
		return nil
	case "down", "j":
		if d.cursor < len(d.tasks)-1 {
			d.cursor++
			d.refreshList()
		}
		return nil
	}

	if len(d.tasks) == 0 {
		return nil
	}
	task := d.tasks[d.cursor]
	svc := d.deps.API

	switch msg.String() {
	case "x", " ":
		status := models.StatusCompleted
		if task.Done() {
			status = models.StatusPending
		}
		in := models.TaskInput{Title: task.Title, Description: task.Description, Status: status}
		return d.mutate(opToggle, func(ctx context.Context, token string) error {
			_, err := svc.UpdateTask(ctx, token, task.ID, in)
			return err
		})
	case "d", "delete":
		return d.mutate(opDelete, func(ctx context.Context, token string) error {
			return svc.DeleteTask(ctx, token, task.ID)
		})
	case "y":
		copyFn := d.deps.Copy
		return func() tea.Msg {
			return ClipboardMsg{Text: task.Title, Err: copyFn(task.Title)}
		}
	}
	return nil
}

func (d *dashboard) suggestionKey(msg tea.KeyMsg) tea.Cmd {
	n := len(d.suggestions)
	if n == 0 {
		return nil
	}
	switch msg.String() {
	case "left", "h", "up", "k":
		d.suggestCursor = (d.suggestCursor + n - 1) % n
	case "right", "l", "down", "j":
		d.suggestCursor = (d.suggestCursor + 1) % n
	case "enter":
		return d.openForm(models.FormState{Open: true, Title: d.suggestions[d.suggestCursor]})
	}
	return nil
}

func (d *dashboard) chatKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		return d.setFocus(paneTasks)
	case "up":
		d.chat.move(-1)
		return nil
	case "down":
		d.chat.move(1)
		return nil
	case "enter":
		text := strings.TrimSpace(d.chat.input.Value())
		if text == "" {
			if s, ok := d.chat.selected(); ok {
				return d.openForm(models.FormState{Open: true, Title: s})
			}
			return nil
		}
		if d.deps.Chatter == nil {
			return notify(theme.LevelWarning, "Assistant unavailable")
		}
		d.chat.ask(text)
		return d.sendChat(text)
	}

	var cmd tea.Cmd
	d.chat.input, cmd = d.chat.input.Update(msg)
	return cmd
}

func (d *dashboard) setSize(width, height int) {
	d.width = width
	d.height = height

	listHeight := height - dashboardChrome
	if listHeight < minListLines {
		listHeight = minListLines
	}
	d.list.Width = width - 4
	d.list.Height = listHeight
	d.chat.setWidth(width)
	if d.form != nil {
		d.form.setWidth(width)
	}
	d.refreshList()
}

func (d *dashboard) refreshList() {
	d.list.SetContent(d.renderTasks())
	if d.list.Height <= 0 {
		return
	}
	if d.cursor < d.list.YOffset {
		d.list.SetYOffset(d.cursor)
	} else if d.cursor >= d.list.YOffset+d.list.Height {
		d.list.SetYOffset(d.cursor - d.list.Height + 1)
	}
}

func (d *dashboard) renderTasks() string {
	th := d.deps.Theme
	if len(d.tasks) == 0 {
		if d.loading {
			return LoadingOverlay(max(d.list.Width-2, 0), max(d.list.Height, 1), d.loader)
		}
		return th.Styles.Muted.Render("No tasks yet. Press n to add one.")
	}

	width := d.list.Width - 2
	if width < 20 {
		width = 20
	}

	lines := make([]string, 0, len(d.tasks))
	for i, t := range d.tasks {
		check := "[ ]"
		if t.Done() {
			check = "[x]"
		}
		prefix := "  "
		if i == d.cursor && d.focus == paneTasks {
			prefix = "> "
		}

		text := prefix + check + " " + t.Title
		if t.Description != "" {
			text += " · " + strings.ReplaceAll(t.Description, "\n", " ")
		}
		text = truncate.StringWithTail(text, uint(width), "…")

		switch {
		case i == d.cursor && d.focus == paneTasks:
			text = th.Styles.Selected.Render(text)
		case t.Done():
			text = th.Styles.Done.Render(text)
		}
		lines = append(lines, text)
	}
	return strings.Join(lines, "\n")
}

func (d *dashboard) renderSuggestions() string {
	th := d.deps.Theme
	label := th.Styles.Label.Render("AI Suggestions ")
	if len(d.suggestions) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, label, th.Styles.Muted.Render("No suggestions yet"), "", "")
	}

	chips := make([]string, 0, len(d.suggestions))
	for i, s := range d.suggestions {
		style := th.Styles.Chip
		if d.focus == paneSuggestions && i == d.suggestCursor {
			style = th.Styles.ChipFocus
		}
		chips = append(chips, style.Render(truncate.StringWithTail(s, 30, "…")))
	}
	row := lipgloss.JoinHorizontal(lipgloss.Top, chips...)
	if d.width > 0 {
		row = lipgloss.NewStyle().MaxWidth(d.width).Render(row)
	}
	return lipgloss.JoinVertical(lipgloss.Left, label, row)
}

func (d *dashboard) renderTitle() string {
	th := d.deps.Theme
	done := 0
	for _, t := range d.tasks {
		if t.Done() {
			done++
		}
	}
	title := theme.Gradient("Task Dashboard", th.Gradients.Primary, true)
	stats := th.Styles.Subtitle.Render(fmt.Sprintf("  %d tasks • %d completed", len(d.tasks), done))
	if d.loading && len(d.tasks) > 0 {
		stats += "  " + d.loader.View()
	}
	return title + stats + "\n"
}

func (d *dashboard) renderHelp() string {
	var help string
	switch d.focus {
	case paneTasks:
		help = "↑/↓: move • x: toggle • d: delete • y: copy • n: new • r: refresh • tab: next pane • L: logout • q: quit"
	case paneSuggestions:
		help = "←/→: choose • enter: use suggestion • tab: next pane • L: logout • q: quit"
	case paneChat:
		help = "enter: send or use suggestion • ↑/↓: pick suggestion • esc: back to tasks"
	}
	return d.deps.Theme.Styles.Help.Render(truncate.StringWithTail(help, uint(max(d.width, 20)), "…"))
}

func (d *dashboard) view() string {
	th := d.deps.Theme
	top := d.header.view(d.width)

	if d.form != nil {
		body := d.form.view(th)
		h := d.height - 1
		if d.width > 0 && h > 0 {
			body = lipgloss.Place(d.width, h, lipgloss.Center, lipgloss.Center, body)
		}
		return top + "\n" + body
	}

	list := th.Styles.Paper
	if d.focus == paneTasks {
		list = list.BorderForeground(th.Palette.Primary.Main)
	}
	if d.width > 2 {
		list = list.Width(d.width - 2)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		top,
		d.renderTitle(),
		list.Render(d.list.View()),
		d.renderSuggestions(),
		d.chat.view(th, d.focus == paneChat),
		d.renderHelp(),
	)
}
