package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rtms/taskboard/internal/api"
	"github.com/rtms/taskboard/internal/logging"
	"github.com/rtms/taskboard/internal/session"
	"github.com/rtms/taskboard/internal/testutil"
	"github.com/rtms/taskboard/internal/theme"
	"github.com/rtms/taskboard/pkg/models"
)

// harness runs commands the way the bubbletea runtime does, expanding
// batches and collecting whatever messages they produce.
type harness struct {
	t    *testing.T
	msgs chan tea.Msg
}

func newHarness(t *testing.T) *harness {
	return &harness{t: t, msgs: make(chan tea.Msg, 64)}
}

func (h *harness) start(cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	go func() {
		msg := cmd()
		if batch, ok := msg.(tea.BatchMsg); ok {
			for _, c := range batch {
				h.start(c)
			}
			return
		}
		if msg != nil {
			h.msgs <- msg
		}
	}()
}

// collect returns the messages delivered within a short settle window.
func (h *harness) collect() []tea.Msg {
	var out []tea.Msg
	timeout := time.After(200 * time.Millisecond)
	for {
		select {
		case m := <-h.msgs:
			out = append(out, m)
		case <-timeout:
			return out
		}
	}
}

func (h *harness) run(cmd tea.Cmd) []tea.Msg {
	h.start(cmd)
	return h.collect()
}

func find[T any](msgs []tea.Msg) (T, bool) {
	for _, m := range msgs {
		if v, ok := m.(T); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "ctrl+s":
		return tea.KeyMsg{Type: tea.KeyCtrlS}
	case "ctrl+r":
		return tea.KeyMsg{Type: tea.KeyCtrlR}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

type fixture struct {
	deps     Deps
	api      *testutil.FakeService
	feed     *testutil.FakeFeed
	kv       *testutil.MemoryKV
	ai       *testutil.FakeSuggester
	sessions *session.Manager
}

func newFixture(t *testing.T, loggedIn bool) *fixture {
	t.Helper()
	kv := testutil.NewMemoryKV()
	if loggedIn {
		kv.Set(context.Background(), session.KeyToken, "tok-1")
		kv.Set(context.Background(), session.KeyUserID, "u1")
	}
	f := &fixture{
		api:  testutil.NewFakeService(),
		feed: testutil.NewFakeFeed(),
		kv:   kv,
		ai:   &testutil.FakeSuggester{},
	}
	f.sessions = session.NewManager(kv, logging.Discard())
	f.deps = Deps{
		API:       f.api,
		Sessions:  f.sessions,
		NewFeed:   func() Feed { return f.feed },
		Suggester: f.ai,
		Chatter:   f.ai,
		Copy:      func(string) error { return nil },
		Logger:    logging.Discard(),
	}.withDefaults()
	return f
}

// mounted returns a dashboard whose initial fetch has been applied.
func (f *fixture) mounted(t *testing.T, h *harness) *dashboard {
	t.Helper()
	d := newDashboard(&f.deps)
	d.setSize(100, 40)
	msgs := h.run(d.mount())
	loaded, ok := find[TasksLoadedMsg](msgs)
	if !ok {
		t.Fatalf("mount did not fetch tasks, got %#v", msgs)
	}
	h.run(d.update(loaded))
	return d
}

func TestLoginWithoutTokenLeavesNoSession(t *testing.T) {
	f := newFixture(t, false)
	f.api.LoginErr = api.ErrNoToken
	h := newHarness(t)

	m := newLogin(&f.deps)
	m.inputs[fieldEmail].SetValue("ada@example.com")
	m.inputs[fieldPassword].SetValue("secret")
	m.setFocus(fieldPassword)

	msgs := h.run(m.update(key("enter")))
	failed, ok := find[LoginFailedMsg](msgs)
	if !ok {
		t.Fatalf("expected LoginFailedMsg, got %#v", msgs)
	}
	if f.kv.Has(session.KeyToken) || f.kv.Has(session.KeyUserID) {
		t.Error("no session keys should be written when the token is missing")
	}

	msgs = h.run(m.update(failed))
	toast, ok := find[ToastMsg](msgs)
	if !ok {
		t.Fatal("expected an error toast")
	}
	if toast.Level != theme.LevelError || toast.Text != loginFailed {
		t.Errorf("unexpected toast %+v", toast)
	}
	if _, ok := find[NavigateMsg](msgs); ok {
		t.Error("failed login must not navigate")
	}
}

func TestLoginPersistsSessionBeforeNavigating(t *testing.T) {
	f := newFixture(t, false)
	f.api.LoginSession = models.Session{Token: "tok-9", UserID: "u9"}
	h := newHarness(t)

	m := newLogin(&f.deps)
	m.inputs[fieldEmail].SetValue("ada@example.com")
	m.inputs[fieldPassword].SetValue("secret")
	m.setFocus(fieldPassword)

	msgs := h.run(m.update(key("enter")))
	succeeded, ok := find[LoginSucceededMsg](msgs)
	if !ok {
		t.Fatalf("expected LoginSucceededMsg, got %#v", msgs)
	}

	// Both keys are stored by the time success is reported
	if len(f.kv.Writes) != 2 || f.kv.Writes[0] != session.KeyToken || f.kv.Writes[1] != session.KeyUserID {
		t.Errorf("unexpected writes %v", f.kv.Writes)
	}

	msgs = h.run(m.update(succeeded))
	nav, ok := find[NavigateMsg](msgs)
	if !ok || nav.To != routeDashboard {
		t.Errorf("expected navigation to dashboard, got %#v", msgs)
	}
	if toast, ok := find[ToastMsg](msgs); !ok || toast.Level != theme.LevelSuccess {
		t.Errorf("expected success toast, got %#v", msgs)
	}
}

func TestLoginRejectsEmptyFields(t *testing.T) {
	f := newFixture(t, false)
	h := newHarness(t)

	m := newLogin(&f.deps)
	m.setFocus(fieldPassword)
	msgs := h.run(m.update(key("enter")))

	if toast, ok := find[ToastMsg](msgs); !ok || toast.Level != theme.LevelWarning {
		t.Errorf("expected validation toast, got %#v", msgs)
	}
	if m.submitting {
		t.Error("empty form must not submit")
	}
}

func TestRegisterSwitchesBackToLogin(t *testing.T) {
	f := newFixture(t, false)
	h := newHarness(t)

	m := newLogin(&f.deps)
	m.update(key("ctrl+r"))
	if m.mode != modeRegister || m.focus != fieldName {
		t.Fatalf("ctrl+r should open registration, mode=%d focus=%d", m.mode, m.focus)
	}
	m.inputs[fieldName].SetValue("Ada")
	m.inputs[fieldEmail].SetValue("ada@example.com")
	m.inputs[fieldPassword].SetValue("secret")
	m.setFocus(fieldPassword)

	msgs := h.run(m.update(key("enter")))
	reg, ok := find[RegisteredMsg](msgs)
	if !ok || reg.Err != nil {
		t.Fatalf("expected successful registration, got %#v", msgs)
	}
	h.run(m.update(reg))

	if m.mode != modeLogin {
		t.Error("registration should return to login mode")
	}
	if got := m.inputs[fieldEmail].Value(); got != "ada@example.com" {
		t.Errorf("email should be kept, got %q", got)
	}
	if len(f.api.Registrations) != 1 || f.api.Registrations[0].Name != "Ada" {
		t.Errorf("unexpected registrations %+v", f.api.Registrations)
	}
}

func TestDashboardWithoutSessionRedirects(t *testing.T) {
	f := newFixture(t, false)
	h := newHarness(t)

	app := initialModel(f.deps)
	msgs := h.run(app.Init())

	nav, ok := find[NavigateMsg](msgs)
	if !ok || nav.To != routeLogin {
		t.Fatalf("expected redirect to login, got %#v", msgs)
	}
	if n := f.api.Calls(); n != 0 {
		t.Errorf("no task fetch expected, got %d", n)
	}
	if subs, _, _ := f.feed.Counts(); subs != 0 {
		t.Errorf("no feed subscription expected, got %d", subs)
	}

	next, _ := app.Update(nav)
	app = next.(model)
	if app.route != routeLogin || app.login == nil {
		t.Error("app should show the login view")
	}
}

func TestDashboardMountFetchesAndSubscribes(t *testing.T) {
	f := newFixture(t, true)
	f.api.AddTask("t1", "Buy milk")
	h := newHarness(t)

	d := f.mounted(t, h)

	if len(d.tasks) != 1 || d.tasks[0].Title != "Buy milk" {
		t.Errorf("unexpected tasks %+v", d.tasks)
	}
	if f.api.Tokens[0] != "tok-1" {
		t.Errorf("fetch should use the stored token, got %q", f.api.Tokens[0])
	}
	if subs, _, _ := f.feed.Counts(); subs != 1 {
		t.Errorf("expected one subscription, got %d", subs)
	}
	if len(f.feed.Tokens) != 1 || f.feed.Tokens[0] != "tok-1" {
		t.Errorf("feed should connect with the token, got %v", f.feed.Tokens)
	}
}

func TestForeignUpdateEventIsIgnored(t *testing.T) {
	f := newFixture(t, true)
	h := newHarness(t)
	f.mounted(t, h)
	before := f.api.Calls()

	f.feed.Emit(models.UpdateEvent{Type: models.UpdateEventTaskUpdate, UserID: "someone-else"})
	f.feed.Emit(models.UpdateEvent{Type: "USER_JOINED", UserID: "u1"})

	if _, ok := find[UpdateEventMsg](h.collect()); ok {
		t.Error("foreign and non-task events should not reach the dashboard")
	}
	if got := f.api.Calls(); got != before {
		t.Errorf("expected %d fetches, got %d", before, got)
	}
}

func TestMatchingEventSurvivesForeignBurst(t *testing.T) {
	f := newFixture(t, true)
	h := newHarness(t)
	d := f.mounted(t, h)

	for i := 0; i < 40; i++ {
		f.feed.Emit(models.UpdateEvent{Type: models.UpdateEventTaskUpdate, UserID: fmt.Sprintf("other-%d", i)})
	}
	for i := 0; i < 5; i++ {
		f.feed.Emit(models.UpdateEvent{Type: models.UpdateEventTaskUpdate, UserID: "u1"})
	}

	ev, ok := find[UpdateEventMsg](h.collect())
	if !ok {
		t.Fatal("matching event dropped after a burst of foreign events")
	}
	if ev.Event.UserID != "u1" {
		t.Errorf("expected own event, got %+v", ev.Event)
	}
	if _, ok := find[TasksLoadedMsg](h.run(d.update(ev))); !ok {
		t.Error("matching event should re-fetch")
	}
}

func TestMatchingUpdateEventRefetches(t *testing.T) {
	f := newFixture(t, true)
	h := newHarness(t)
	d := f.mounted(t, h)
	f.api.AddTask("t1", "Arrived later")

	f.feed.Emit(models.UpdateEvent{Type: models.UpdateEventTaskUpdate, UserID: "u1"})
	ev, ok := find[UpdateEventMsg](h.collect())
	if !ok {
		t.Fatal("event not delivered")
	}

	loaded, ok := find[TasksLoadedMsg](h.run(d.update(ev)))
	if !ok {
		t.Fatal("matching event should re-fetch")
	}
	h.run(d.update(loaded))
	if len(d.tasks) != 1 {
		t.Errorf("expected refreshed list, got %+v", d.tasks)
	}
}

func TestTeardownReleasesSubscriptionOnce(t *testing.T) {
	f := newFixture(t, true)
	h := newHarness(t)
	d := f.mounted(t, h)

	d.unmount()
	d.unmount()

	subs, unsubs, closes := f.feed.Counts()
	if subs != 1 || unsubs != 1 || closes != 1 {
		t.Errorf("expected 1/1/1 subscribe/unsubscribe/close, got %d/%d/%d", subs, unsubs, closes)
	}

	// Events after teardown reach nobody
	f.feed.Emit(models.UpdateEvent{Type: models.UpdateEventTaskUpdate, UserID: "u1"})
	if _, ok := find[UpdateEventMsg](h.collect()); ok {
		t.Error("no events expected after teardown")
	}
}

func TestLogoutReturnsToLogin(t *testing.T) {
	f := newFixture(t, true)
	h := newHarness(t)

	app := initialModel(f.deps)
	for _, msg := range h.run(app.Init()) {
		next, cmd := app.Update(msg)
		app = next.(model)
		h.start(cmd)
	}
	h.collect()

	next, _ := app.Update(key("L"))
	app = next.(model)
	if f.kv.Has(session.KeyToken) || f.kv.Has(session.KeyUserID) {
		t.Fatal("logout should clear both keys")
	}

	ev, ok := find[SessionEventMsg](h.collect())
	if !ok || !ev.Event.Cleared {
		t.Fatal("expected a cleared session event")
	}
	next, _ = app.Update(ev)
	app = next.(model)

	if app.route != routeLogin || app.dashboard != nil {
		t.Error("logout should navigate to login")
	}
	app.shutdown()
	if _, unsubs, closes := f.feed.Counts(); unsubs != 1 || closes != 1 {
		t.Errorf("feed should be released once, got unsubscribe=%d close=%d", unsubs, closes)
	}
}

func TestStaleFetchIsDropped(t *testing.T) {
	f := newFixture(t, true)
	h := newHarness(t)
	d := f.mounted(t, h)

	d.fetchTasks()
	d.fetchTasks()

	stale := TasksLoadedMsg{RequestID: "not-current", Tasks: []models.Task{{ID: "x", Title: "stale"}}}
	h.run(d.update(stale))
	if len(d.tasks) != 0 {
		t.Errorf("stale response should be ignored, got %+v", d.tasks)
	}

	d.unmount()
	current := TasksLoadedMsg{RequestID: d.reqs.latest[requestTasks], Tasks: []models.Task{{ID: "y"}}}
	h.run(d.update(current))
	if len(d.tasks) != 0 {
		t.Errorf("responses after unmount should be ignored, got %+v", d.tasks)
	}
}

func TestFetchFailureShowsToastAndEmptiesList(t *testing.T) {
	f := newFixture(t, true)
	f.api.AddTask("t1", "Buy milk")
	h := newHarness(t)
	d := f.mounted(t, h)

	f.api.TasksErr = errors.New("boom")
	loaded, _ := find[TasksLoadedMsg](h.run(d.fetchTasks()))
	msgs := h.run(d.update(loaded))

	toast, ok := find[ToastMsg](msgs)
	if !ok || toast.Level != theme.LevelError || toast.Text != fetchFailed {
		t.Errorf("expected fetch failure toast, got %#v", msgs)
	}
	if d.tasks == nil || len(d.tasks) != 0 {
		t.Errorf("task list should be empty, got %#v", d.tasks)
	}
}

func TestFetchWithoutUserIDAsksToLoginAgain(t *testing.T) {
	f := newFixture(t, true)
	h := newHarness(t)
	d := f.mounted(t, h)

	f.sessions.Clear(context.Background())
	loaded, _ := find[TasksLoadedMsg](h.run(d.fetchTasks()))
	msgs := h.run(d.update(loaded))

	toast, ok := find[ToastMsg](msgs)
	if !ok || toast.Text != loginAgain {
		t.Errorf("expected login again toast, got %#v", msgs)
	}
	if nav, ok := find[NavigateMsg](msgs); !ok || nav.To != routeLogin {
		t.Error("expected navigation to login")
	}
}

func TestSuggestionsFollowCollectionSize(t *testing.T) {
	f := newFixture(t, true)
	f.ai.Suggestions = []string{"Call Bob"}
	h := newHarness(t)
	d := f.mounted(t, h)

	if n := f.ai.SuggestCalls(); n != 0 {
		t.Fatalf("empty collection should not ask for suggestions, got %d", n)
	}

	apply := func(tasks []models.Task) {
		for _, msg := range h.run(d.setTasks(tasks)) {
			h.run(d.update(msg))
		}
	}

	apply([]models.Task{{ID: "1", Title: "a"}, {ID: "2", Title: "b"}})
	if n := f.ai.SuggestCalls(); n != 1 {
		t.Fatalf("expected one suggestion request, got %d", n)
	}
	if len(d.suggestions) != 1 || d.suggestions[0] != "Call Bob" {
		t.Errorf("unexpected suggestions %v", d.suggestions)
	}

	apply([]models.Task{{ID: "1", Title: "renamed"}, {ID: "2", Title: "b"}})
	if n := f.ai.SuggestCalls(); n != 1 {
		t.Errorf("same size should not recompute, got %d calls", n)
	}

	f.ai.Err = errors.New("ai down")
	apply([]models.Task{{ID: "1"}})
	if d.suggestions == nil || len(d.suggestions) != 0 {
		t.Errorf("failed suggestions should be empty, got %#v", d.suggestions)
	}
}

func TestSelectingSuggestionPrefillsForm(t *testing.T) {
	f := newFixture(t, true)
	h := newHarness(t)
	d := f.mounted(t, h)
	d.suggestions = []string{"Buy milk", "Call Bob"}

	d.update(key("tab"))
	d.update(key("l"))
	d.update(key("enter"))

	if d.form == nil {
		t.Fatal("form should be open")
	}
	if got := d.form.state(); got.Title != "Call Bob" || got.Description != "" {
		t.Errorf("unexpected form state %+v", got)
	}
}

func TestCreateTaskClosesFormAndRefetches(t *testing.T) {
	f := newFixture(t, true)
	h := newHarness(t)
	d := f.mounted(t, h)

	d.update(key("n"))
	d.form.title.SetValue("Write report")
	saved, ok := find[TaskSavedMsg](h.run(d.update(key("ctrl+s"))))
	if !ok || saved.Err != nil {
		t.Fatalf("expected successful save, got %+v", saved)
	}

	msgs := h.run(d.update(saved))
	if d.form != nil {
		t.Error("form should close after a successful create")
	}
	if _, ok := find[TasksLoadedMsg](msgs); !ok {
		t.Error("create should trigger a re-fetch")
	}
	if len(f.api.Created) != 1 || f.api.Created[0].Title != "Write report" || f.api.Created[0].Status != models.StatusPending {
		t.Errorf("unexpected create payloads %+v", f.api.Created)
	}
}

func TestCreateTaskFailureKeepsFormOpen(t *testing.T) {
	f := newFixture(t, true)
	f.api.CreateErr = &api.Error{Status: 400, Message: "Title too long"}
	h := newHarness(t)
	d := f.mounted(t, h)

	d.openForm(models.FormState{Open: true, Title: "x"})
	saved, _ := find[TaskSavedMsg](h.run(d.update(key("enter"))))
	msgs := h.run(d.update(saved))

	if d.form == nil || d.form.submitting {
		t.Error("form should stay open and editable after a failure")
	}
	if toast, ok := find[ToastMsg](msgs); !ok || toast.Text != "Title too long" {
		t.Errorf("expected server message toast, got %#v", msgs)
	}
	if _, ok := find[TasksLoadedMsg](msgs); ok {
		t.Error("failed create should not re-fetch")
	}
}

func TestToggleAndDelete(t *testing.T) {
	f := newFixture(t, true)
	f.api.AddTask("t1", "Buy milk")
	h := newHarness(t)
	d := f.mounted(t, h)

	saved, _ := find[TaskSavedMsg](h.run(d.update(key("x"))))
	if saved.Op != opToggle || saved.Err != nil {
		t.Fatalf("unexpected toggle result %+v", saved)
	}
	if got := f.api.Updated["t1"].Status; got != models.StatusCompleted {
		t.Errorf("expected completed status, got %q", got)
	}
	for _, msg := range h.run(d.update(saved)) {
		h.run(d.update(msg))
	}
	if !d.tasks[0].Done() {
		t.Error("list should show the task as completed after re-fetch")
	}

	saved, _ = find[TaskSavedMsg](h.run(d.update(key("d"))))
	if saved.Op != opDelete || len(f.api.Deleted) != 1 {
		t.Errorf("unexpected delete result %+v, deleted %v", saved, f.api.Deleted)
	}
}

func TestCopyTitleToClipboard(t *testing.T) {
	f := newFixture(t, true)
	var copied string
	f.deps.Copy = func(s string) error { copied = s; return nil }
	f.api.AddTask("t1", "Buy milk")
	h := newHarness(t)
	d := f.mounted(t, h)

	msgs := h.run(d.update(key("y")))
	clip, ok := find[ClipboardMsg](msgs)
	if !ok || clip.Err != nil {
		t.Fatalf("expected clipboard message, got %#v", msgs)
	}
	if copied != "Buy milk" {
		t.Errorf("unexpected clipboard contents %q", copied)
	}
}

func TestChatReplySuggestionsOpenForm(t *testing.T) {
	f := newFixture(t, true)
	f.ai.Reply = "Here you go.\nSuggested Task: Buy milk\nSuggested Task: Call Bob\n"
	h := newHarness(t)
	d := f.mounted(t, h)

	d.update(key("tab"))
	d.update(key("tab"))
	if d.focus != paneChat {
		t.Fatalf("expected chat focus, got %d", d.focus)
	}

	d.chat.input.SetValue("What should I do today?")
	reply, ok := find[ChatReplyMsg](h.run(d.update(key("enter"))))
	if !ok {
		t.Fatal("expected a chat reply")
	}
	d.update(reply)

	if len(f.ai.Prompts) != 1 || f.ai.Prompts[0] != "What should I do today?" {
		t.Errorf("unexpected prompts %v", f.ai.Prompts)
	}
	if strings.Join(d.chat.suggestions, "|") != "Buy milk|Call Bob" {
		t.Errorf("unexpected chat suggestions %v", d.chat.suggestions)
	}

	d.update(tea.KeyMsg{Type: tea.KeyDown})
	d.update(key("enter"))
	if d.form == nil || d.form.state().Title != "Call Bob" {
		t.Error("selecting a chat suggestion should prefill the form")
	}
}

func TestToastExpiry(t *testing.T) {
	f := newFixture(t, false)
	app := initialModel(f.deps)

	next, _ := app.Update(ToastMsg{Level: theme.LevelInfo, Text: "first"})
	app = next.(model)
	firstID := app.toasts.current.id
	next, _ = app.Update(ToastMsg{Level: theme.LevelError, Text: "second"})
	app = next.(model)

	next, _ = app.Update(ToastExpiredMsg{ID: firstID})
	app = next.(model)
	if app.toasts.current == nil || app.toasts.current.text != "second" {
		t.Fatal("an old expiry must not hide a newer toast")
	}

	next, _ = app.Update(ToastExpiredMsg{ID: app.toasts.current.id})
	app = next.(model)
	if app.toasts.current != nil {
		t.Error("toast should be hidden after expiry")
	}
}

func TestViews(t *testing.T) {
	f := newFixture(t, true)
	f.api.AddTask("t1", "Buy milk")
	h := newHarness(t)

	d := f.mounted(t, h)
	out := d.view()
	if !strings.Contains(out, "Buy milk") || !strings.Contains(out, "AI Suggestions") {
		t.Errorf("dashboard view missing content:\n%s", out)
	}

	m := newLogin(&f.deps)
	m.setSize(80, 24)
	if out := m.view(); !strings.Contains(out, "Email") || !strings.Contains(out, "Password") {
		t.Errorf("login view missing fields:\n%s", out)
	}
}
