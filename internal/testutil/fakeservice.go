package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/rtms/taskboard/internal/api"
	"github.com/rtms/taskboard/pkg/models"
)

// FakeService is an in-memory implementation of api.Service.
type FakeService struct {
	mu     sync.Mutex
	tasks  []models.Task
	nextID int

	// LoginSession is returned by Login when LoginErr is nil.
	LoginSession models.Session

	// Error injection for testing
	LoginErr    error
	RegisterErr error
	TasksErr    error
	CreateErr   error
	UpdateErr   error
	DeleteErr   error

	// Call tracking
	TasksCalls    int
	Registrations []models.Registration
	Created       []models.TaskInput
	Updated       map[string]models.TaskInput
	Deleted       []string
	Tokens        []string
}

var _ api.Service = (*FakeService)(nil)

// NewFakeService creates an empty fake.
func NewFakeService() *FakeService {
	return &FakeService{Updated: make(map[string]models.TaskInput)}
}

// AddTask adds a task to the collection.
func (f *FakeService) AddTask(id, title string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = append(f.tasks, models.Task{ID: id, Title: title, Status: models.StatusPending})
}

// Calls returns how many times Tasks was called.
func (f *FakeService) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.TasksCalls
}

// Login implements api.Service.
func (f *FakeService) Login(ctx context.Context, creds models.Credentials) (models.Session, error) {
	if f.LoginErr != nil {
		return models.Session{}, f.LoginErr
	}
	return f.LoginSession, nil
}

// Register implements api.Service.
func (f *FakeService) Register(ctx context.Context, reg models.Registration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.RegisterErr != nil {
		return f.RegisterErr
	}
	f.Registrations = append(f.Registrations, reg)
	return nil
}

// Tasks implements api.Service.
func (f *FakeService) Tasks(ctx context.Context, token string) ([]models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.TasksCalls++
	f.Tokens = append(f.Tokens, token)
	if f.TasksErr != nil {
		return nil, f.TasksErr
	}
	return append([]models.Task{}, f.tasks...), nil
}

// CreateTask implements api.Service.
func (f *FakeService) CreateTask(ctx context.Context, token string, in models.TaskInput) (models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateErr != nil {
		return models.Task{}, f.CreateErr
	}
	f.nextID++
	task := models.Task{
		ID:          fmt.Sprintf("created-%d", f.nextID),
		Title:       in.Title,
		Description: in.Description,
		Status:      models.StatusPending,
	}
	f.tasks = append(f.tasks, task)
	f.Created = append(f.Created, in)
	return task, nil
}

// UpdateTask implements api.Service.
func (f *FakeService) UpdateTask(ctx context.Context, token, id string, in models.TaskInput) (models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.UpdateErr != nil {
		return models.Task{}, f.UpdateErr
	}
	f.Updated[id] = in
	for i, task := range f.tasks {
		if task.ID == id {
			task.Title = in.Title
			task.Description = in.Description
			task.Status = in.Status
			f.tasks[i] = task
			return task, nil
		}
	}
	return models.Task{}, &api.Error{Status: 404, Message: "Task not found"}
}

// DeleteTask implements api.Service.
func (f *FakeService) DeleteTask(ctx context.Context, token, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	f.Deleted = append(f.Deleted, id)
	for i, task := range f.tasks {
		if task.ID == id {
			f.tasks = append(f.tasks[:i:i], f.tasks[i+1:]...)
			break
		}
	}
	return nil
}

// FakeFeed records subscription and close calls.
type FakeFeed struct {
	mu         sync.Mutex
	handlers   map[int]func(models.UpdateEvent)
	nextID     int
	Tokens     []string
	ConnectErr error

	Subscribes   int
	Unsubscribes int
	Closes       int
}

// NewFakeFeed creates an unconnected fake feed.
func NewFakeFeed() *FakeFeed {
	return &FakeFeed{handlers: make(map[int]func(models.UpdateEvent))}
}

// Connect records the token.
func (f *FakeFeed) Connect(ctx context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Tokens = append(f.Tokens, token)
	return f.ConnectErr
}

// Subscribe registers fn. Every call of the returned function is counted.
func (f *FakeFeed) Subscribe(fn func(models.UpdateEvent)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.handlers[id] = fn
	f.Subscribes++
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.Unsubscribes++
		delete(f.handlers, id)
	}
}

// Close counts calls.
func (f *FakeFeed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closes++
	return nil
}

// Emit delivers event to every subscriber.
func (f *FakeFeed) Emit(event models.UpdateEvent) {
	f.mu.Lock()
	fns := make([]func(models.UpdateEvent), 0, len(f.handlers))
	for _, fn := range f.handlers {
		fns = append(fns, fn)
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn(event)
	}
}

// Counts returns subscribe, unsubscribe and close counts.
func (f *FakeFeed) Counts() (subscribes, unsubscribes, closes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Subscribes, f.Unsubscribes, f.Closes
}

// FakeSuggester returns canned suggestions and chat replies.
type FakeSuggester struct {
	mu          sync.Mutex
	Suggestions []string
	Reply       string
	Err         error
	Calls       int
	Prompts     []string
}

// Suggest implements suggest.Suggester.
func (f *FakeSuggester) Suggest(ctx context.Context, tasks []models.Task) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls++
	if f.Err != nil {
		return nil, f.Err
	}
	return append([]string(nil), f.Suggestions...), nil
}

// Chat implements suggest.Chatter.
func (f *FakeSuggester) Chat(ctx context.Context, message string, tasks []models.Task) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Prompts = append(f.Prompts, message)
	if f.Err != nil {
		return "", f.Err
	}
	return f.Reply, nil
}

// SuggestCalls returns how many times Suggest was called.
func (f *FakeSuggester) SuggestCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Calls
}
