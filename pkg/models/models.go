package models

import "time"

// Session is the authenticated identity held by the client
type Session struct {
	Token  string
	UserID string
}

// Valid reports whether both halves of the session are present
func (s Session) Valid() bool {
	return s.Token != "" && s.UserID != ""
}

// Task is a task record as returned by the API
type Task struct {
	ID          string    `json:"_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      string    `json:"status,omitempty"`
	UserID      string    `json:"userId,omitempty"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt,omitempty"`
}

// Task statuses understood by the list actions
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
)

// Done reports whether the task is completed
func (t Task) Done() bool {
	return t.Status == StatusCompleted
}

// TaskInput is the payload for creating or updating a task
type TaskInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status,omitempty"`
}

// Credentials are submitted by the login form
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration is submitted by the sign up action
type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UpdateEventTaskUpdate is the push event type that triggers a re-fetch
const UpdateEventTaskUpdate = "TASK_UPDATE"

// UpdateEvent is a message received on the push channel
type UpdateEvent struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

// FormState is the transient state of the task creation dialog
type FormState struct {
	Open        bool
	Title       string
	Description string
}
