package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/rtms/taskboard/pkg/models"
)

type fakeUser struct {
	id       string
	name     string
	password string
}

// FakeAPI is an httptest server speaking the task API, the push channel and
// the AI service.
type FakeAPI struct {
	*httptest.Server

	mu     sync.Mutex
	users  map[string]fakeUser // email -> user
	tokens map[string]string   // token -> user id
	tasks  map[string][]models.Task
	nextID int
	conns  []*websocket.Conn

	// OmitToken makes login succeed without a token in the payload.
	OmitToken bool
	// TasksStatus forces GET /tasks to fail with this status when non-zero.
	TasksStatus int
	// SuggestionText is returned as free text by the AI endpoint.
	SuggestionText string

	// TaskFetches counts GET /tasks calls.
	TaskFetches int
}

var upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

// NewFakeAPI starts a fake server. Close it when done.
func NewFakeAPI() *FakeAPI {
	f := &FakeAPI{
		users:  make(map[string]fakeUser),
		tokens: make(map[string]string),
		tasks:  make(map[string][]models.Task),
	}

	r := mux.NewRouter()
	r.HandleFunc("/auth/login", f.login).Methods(http.MethodPost)
	r.HandleFunc("/auth/register", f.register).Methods(http.MethodPost)
	r.HandleFunc("/tasks", f.authed(f.listTasks)).Methods(http.MethodGet)
	r.HandleFunc("/tasks", f.authed(f.createTask)).Methods(http.MethodPost)
	r.HandleFunc("/tasks/{id}", f.authed(f.updateTask)).Methods(http.MethodPut)
	r.HandleFunc("/tasks/{id}", f.authed(f.deleteTask)).Methods(http.MethodDelete)
	r.HandleFunc("/ws", f.websocket)
	r.HandleFunc("/ai/suggestions", f.suggestions).Methods(http.MethodPost)
	r.HandleFunc("/ai/chat", f.chat).Methods(http.MethodPost)

	f.Server = httptest.NewServer(r)
	return f
}

// WSURL returns the push channel endpoint.
func (f *FakeAPI) WSURL() string {
	return "ws" + strings.TrimPrefix(f.URL, "http") + "/ws"
}

// AIURL returns the AI service base URL.
func (f *FakeAPI) AIURL() string {
	return f.URL + "/ai"
}

// AddUser registers a user and returns its id.
func (f *FakeAPI) AddUser(email, password string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addUserLocked(email, "", password)
}

func (f *FakeAPI) addUserLocked(email, name, password string) string {
	f.nextID++
	id := fmt.Sprintf("user-%d", f.nextID)
	f.users[email] = fakeUser{id: id, name: name, password: password}
	return id
}

// IssueToken returns a token accepted for userID.
func (f *FakeAPI) IssueToken(userID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	token := fmt.Sprintf("token-%d", f.nextID)
	f.tokens[token] = userID
	return token
}

// AddTask stores a task for userID.
func (f *FakeAPI) AddTask(userID, title string) models.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addTaskLocked(userID, models.TaskInput{Title: title})
}

func (f *FakeAPI) addTaskLocked(userID string, in models.TaskInput) models.Task {
	f.nextID++
	status := in.Status
	if status == "" {
		status = models.StatusPending
	}
	now := time.Now().UTC().Truncate(time.Second)
	task := models.Task{
		ID:          fmt.Sprintf("task-%d", f.nextID),
		Title:       in.Title,
		Description: in.Description,
		Status:      status,
		UserID:      userID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	f.tasks[userID] = append(f.tasks[userID], task)
	return task
}

// Tasks returns a copy of userID's tasks.
func (f *FakeAPI) Tasks(userID string) []models.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Task(nil), f.tasks[userID]...)
}

// Fetches returns the number of GET /tasks calls so far.
func (f *FakeAPI) Fetches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.TaskFetches
}

// Connections returns the number of open push connections.
func (f *FakeAPI) Connections() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.conns)
}

// Broadcast sends event to every connected push client.
func (f *FakeAPI) Broadcast(event models.UpdateEvent) {
	f.mu.Lock()
	conns := append([]*websocket.Conn(nil), f.conns...)
	f.mu.Unlock()

	for _, c := range conns {
		c.WriteJSON(event)
	}
}

// BroadcastRaw sends a raw text frame to every connected push client.
func (f *FakeAPI) BroadcastRaw(data string) {
	f.mu.Lock()
	conns := append([]*websocket.Conn(nil), f.conns...)
	f.mu.Unlock()

	for _, c := range conns {
		c.WriteMessage(websocket.TextMessage, []byte(data))
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func (f *FakeAPI) login(w http.ResponseWriter, r *http.Request) {
	var creds models.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid body"})
		return
	}

	f.mu.Lock()
	user, ok := f.users[creds.Email]
	f.mu.Unlock()
	if !ok || user.password != creds.Password {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid email or password"})
		return
	}

	if f.OmitToken {
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]string{"userId": user.id}})
		return
	}

	token := f.IssueToken(user.id)
	writeJSON(w, http.StatusOK, map[string]any{"data": map[string]string{"token": token, "userId": user.id}})
}

func (f *FakeAPI) register(w http.ResponseWriter, r *http.Request) {
	var reg models.Registration
	if err := json.NewDecoder(r.Body).Decode(&reg); err != nil || reg.Email == "" || reg.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "email and password are required"})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.users[reg.Email]; exists {
		writeJSON(w, http.StatusConflict, map[string]string{"message": "User already exists"})
		return
	}
	id := f.addUserLocked(reg.Email, reg.Name, reg.Password)
	writeJSON(w, http.StatusCreated, map[string]string{"userId": id})
}

func (f *FakeAPI) authed(next func(http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		f.mu.Lock()
		userID, ok := f.tokens[token]
		f.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
			return
		}
		next(w, r, userID)
	}
}

func (f *FakeAPI) listTasks(w http.ResponseWriter, r *http.Request, userID string) {
	f.mu.Lock()
	f.TaskFetches++
	status := f.TasksStatus
	tasks := append([]models.Task{}, f.tasks[userID]...)
	f.mu.Unlock()

	if status != 0 {
		writeJSON(w, status, map[string]string{"message": "database unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (f *FakeAPI) createTask(w http.ResponseWriter, r *http.Request, userID string) {
	var in models.TaskInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || strings.TrimSpace(in.Title) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "title is required"})
		return
	}

	f.mu.Lock()
	task := f.addTaskLocked(userID, in)
	f.mu.Unlock()

	writeJSON(w, http.StatusCreated, task)
}

func (f *FakeAPI) updateTask(w http.ResponseWriter, r *http.Request, userID string) {
	id := mux.Vars(r)["id"]
	var in models.TaskInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid body"})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for i, task := range f.tasks[userID] {
		if task.ID != id {
			continue
		}
		if in.Title != "" {
			task.Title = in.Title
		}
		task.Description = in.Description
		if in.Status != "" {
			task.Status = in.Status
		}
		task.UpdatedAt = time.Now().UTC().Truncate(time.Second)
		f.tasks[userID][i] = task
		writeJSON(w, http.StatusOK, task)
		return
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "Task not found"})
}

func (f *FakeAPI) deleteTask(w http.ResponseWriter, r *http.Request, userID string) {
	id := mux.Vars(r)["id"]

	f.mu.Lock()
	defer f.mu.Unlock()
	tasks := f.tasks[userID]
	for i, task := range tasks {
		if task.ID == id {
			f.tasks[userID] = append(tasks[:i:i], tasks[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "Task not found"})
}

func (f *FakeAPI) websocket(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	_, ok := f.tokens[r.URL.Query().Get("token")]
	f.mu.Unlock()
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	f.mu.Lock()
	f.conns = append(f.conns, conn)
	f.mu.Unlock()

	// Drain until the client goes away so close frames are answered
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	f.mu.Lock()
	for i, c := range f.conns {
		if c == conn {
			f.conns = append(f.conns[:i], f.conns[i+1:]...)
			break
		}
	}
	f.mu.Unlock()
	conn.Close()
}

func (f *FakeAPI) suggestions(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	text := f.SuggestionText
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}

func (f *FakeAPI) chat(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Message string `json:"message"`
	}
	json.NewDecoder(r.Body).Decode(&body)
	writeJSON(w, http.StatusOK, map[string]string{"reply": "Suggested Task: " + body.Message})
}
