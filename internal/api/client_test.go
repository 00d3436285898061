package api_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rtms/taskboard/internal/api"
	"github.com/rtms/taskboard/internal/testutil"
	"github.com/rtms/taskboard/pkg/models"
)

func TestLoginSuccess(t *testing.T) {
	fake := testutil.NewFakeAPI()
	defer fake.Close()
	userID := fake.AddUser("ada@example.com", "secret")

	c := api.New(fake.URL, nil)
	s, err := c.Login(context.Background(), models.Credentials{Email: "ada@example.com", Password: "secret"})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if s.Token == "" {
		t.Error("expected a token")
	}
	if s.UserID != userID {
		t.Errorf("expected user %q, got %q", userID, s.UserID)
	}
}

func TestLoginWithoutTokenIsAnError(t *testing.T) {
	fake := testutil.NewFakeAPI()
	defer fake.Close()
	fake.AddUser("ada@example.com", "secret")
	fake.OmitToken = true

	_, err := api.New(fake.URL, nil).Login(context.Background(), models.Credentials{Email: "ada@example.com", Password: "secret"})
	if !errors.Is(err, api.ErrNoToken) {
		t.Errorf("expected ErrNoToken, got %v", err)
	}
}

func TestLoginRejectedCarriesServerMessage(t *testing.T) {
	fake := testutil.NewFakeAPI()
	defer fake.Close()

	_, err := api.New(fake.URL, nil).Login(context.Background(), models.Credentials{Email: "nobody@example.com", Password: "x"})
	var apiErr *api.Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *api.Error, got %v", err)
	}
	if apiErr.Status != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", apiErr.Status)
	}
	if got := api.UserMessage(err, "fallback"); got != "Invalid email or password" {
		t.Errorf("unexpected user message %q", got)
	}
}

func TestLoginMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>oops</html>"))
	}))
	defer srv.Close()

	_, err := api.New(srv.URL, nil).Login(context.Background(), models.Credentials{Email: "a", Password: "b"})
	if err == nil {
		t.Fatal("expected error for malformed response")
	}
	if got := api.UserMessage(err, "fallback"); got != "fallback" {
		t.Errorf("malformed response should use fallback message, got %q", got)
	}
}

func TestLoginAcceptsTopLevelPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"token":"abc","userId":"u9"}`))
	}))
	defer srv.Close()

	s, err := api.New(srv.URL, nil).Login(context.Background(), models.Credentials{Email: "a", Password: "b"})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if s.Token != "abc" || s.UserID != "u9" {
		t.Errorf("unexpected session %+v", s)
	}
}

func TestTaskLifecycle(t *testing.T) {
	ctx := context.Background()
	fake := testutil.NewFakeAPI()
	defer fake.Close()
	userID := fake.AddUser("ada@example.com", "secret")
	token := fake.IssueToken(userID)
	c := api.New(fake.URL, nil)

	tasks, err := c.Tasks(ctx, token)
	if err != nil {
		t.Fatalf("Tasks failed: %v", err)
	}
	if tasks == nil || len(tasks) != 0 {
		t.Fatalf("expected empty non-nil collection, got %#v", tasks)
	}

	created, err := c.CreateTask(ctx, token, models.TaskInput{Title: "Buy milk", Description: "2 litres"})
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	if created.ID == "" || created.Title != "Buy milk" {
		t.Errorf("unexpected created task %+v", created)
	}

	updated, err := c.UpdateTask(ctx, token, created.ID, models.TaskInput{Title: created.Title, Status: models.StatusCompleted})
	if err != nil {
		t.Fatalf("UpdateTask failed: %v", err)
	}
	if !updated.Done() {
		t.Errorf("expected completed task, got status %q", updated.Status)
	}

	if err := c.DeleteTask(ctx, token, created.ID); err != nil {
		t.Fatalf("DeleteTask failed: %v", err)
	}
	tasks, _ = c.Tasks(ctx, token)
	if len(tasks) != 0 {
		t.Errorf("expected task to be deleted, got %d tasks", len(tasks))
	}
}

func TestTasksRequiresBearerToken(t *testing.T) {
	fake := testutil.NewFakeAPI()
	defer fake.Close()

	_, err := api.New(fake.URL, nil).Tasks(context.Background(), "bogus")
	var apiErr *api.Error
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		t.Errorf("expected 401 api error, got %v", err)
	}
}

func TestTasksEnvelopeAndNull(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"envelope", `{"data":[{"_id":"1","title":"a"},{"_id":"2","title":"b"}]}`, 2},
		{"null", `null`, 0},
		{"empty body", ``, 0},
		{"array", `[{"_id":"1","title":"a"}]`, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("Authorization") != "Bearer tok" {
					w.WriteHeader(http.StatusUnauthorized)
					return
				}
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			tasks, err := api.New(srv.URL, nil).Tasks(context.Background(), "tok")
			if err != nil {
				t.Fatalf("Tasks failed: %v", err)
			}
			if tasks == nil {
				t.Fatal("collection should never be nil")
			}
			if len(tasks) != tt.want {
				t.Errorf("expected %d tasks, got %d", tt.want, len(tasks))
			}
		})
	}
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	fake := testutil.NewFakeAPI()
	defer fake.Close()
	c := api.New(fake.URL, nil)

	reg := models.Registration{Name: "Ada", Email: "ada@example.com", Password: "secret"}
	if err := c.Register(ctx, reg); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := c.Register(ctx, reg); api.UserMessage(err, "") != "User already exists" {
		t.Errorf("expected conflict message, got %v", err)
	}

	if _, err := c.Login(ctx, models.Credentials{Email: reg.Email, Password: reg.Password}); err != nil {
		t.Errorf("registered user should be able to log in: %v", err)
	}
}
