// Package api is the HTTP client for the task REST API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/rtms/taskboard/pkg/models"
)

// Timeout is applied to every API call.
const Timeout = 10 * time.Second

// ErrNoToken is returned when a login response carries no token.
var ErrNoToken = errors.New("invalid response from server")

// Error is a non-2xx API response.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: status %d", e.Status)
	}
	return fmt.Sprintf("api: status %d: %s", e.Status, e.Message)
}

// UserMessage returns the server supplied message carried by err, or fallback.
func UserMessage(err error, fallback string) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

// Service is the subset of the API the client UI depends on.
type Service interface {
	Login(ctx context.Context, creds models.Credentials) (models.Session, error)
	Register(ctx context.Context, reg models.Registration) error
	Tasks(ctx context.Context, token string) ([]models.Task, error)
	CreateTask(ctx context.Context, token string, in models.TaskInput) (models.Task, error)
	UpdateTask(ctx context.Context, token, id string, in models.TaskInput) (models.Task, error)
	DeleteTask(ctx context.Context, token, id string) error
}

// Client talks to the task API.
type Client struct {
	baseURL string
	http    *http.Client
}

var _ Service = (*Client)(nil)

// New creates a client for baseURL. A nil httpClient uses http.DefaultClient.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

// authorized returns an HTTP client that sends token as a bearer credential.
func (c *Client) authorized(ctx context.Context, token string) *http.Client {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http)
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
	}))
}

type loginPayload struct {
	Token  string `json:"token"`
	UserID string `json:"userId"`
}

type loginResponse struct {
	Data *loginPayload `json:"data"`
	loginPayload
}

// Login exchanges credentials for a session. A response without a token is
// reported as ErrNoToken, the same as a rejected login.
func (c *Client) Login(ctx context.Context, creds models.Credentials) (models.Session, error) {
	var resp loginResponse
	if err := c.do(ctx, c.http, http.MethodPost, "/auth/login", creds, &resp); err != nil {
		return models.Session{}, err
	}

	payload := resp.loginPayload
	if resp.Data != nil {
		payload = *resp.Data
	}
	if payload.Token == "" {
		return models.Session{}, ErrNoToken
	}
	return models.Session{Token: payload.Token, UserID: payload.UserID}, nil
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, reg models.Registration) error {
	return c.do(ctx, c.http, http.MethodPost, "/auth/register", reg, nil)
}

// Tasks returns the full task collection for the token's user.
func (c *Client) Tasks(ctx context.Context, token string) ([]models.Task, error) {
	var raw json.RawMessage
	if err := c.do(ctx, c.authorized(ctx, token), http.MethodGet, "/tasks", nil, &raw); err != nil {
		return nil, err
	}
	tasks, err := decodeTasks(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode tasks: %w", err)
	}
	return tasks, nil
}

// decodeTasks accepts a bare array, a {data: [...]} envelope, or null.
func decodeTasks(raw json.RawMessage) ([]models.Task, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []models.Task{}, nil
	}

	var tasks []models.Task
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &tasks); err != nil {
			return nil, err
		}
	} else {
		var envelope struct {
			Data []models.Task `json:"data"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, err
		}
		tasks = envelope.Data
	}
	if tasks == nil {
		tasks = []models.Task{}
	}
	return tasks, nil
}

// CreateTask creates a task and returns the stored record.
func (c *Client) CreateTask(ctx context.Context, token string, in models.TaskInput) (models.Task, error) {
	var task models.Task
	if err := c.do(ctx, c.authorized(ctx, token), http.MethodPost, "/tasks", in, &task); err != nil {
		return models.Task{}, err
	}
	return task, nil
}

// UpdateTask replaces the editable fields of task id.
func (c *Client) UpdateTask(ctx context.Context, token, id string, in models.TaskInput) (models.Task, error) {
	var task models.Task
	path := "/tasks/" + url.PathEscape(id)
	if err := c.do(ctx, c.authorized(ctx, token), http.MethodPut, path, in, &task); err != nil {
		return models.Task{}, err
	}
	return task, nil
}

// DeleteTask removes task id.
func (c *Client) DeleteTask(ctx context.Context, token, id string) error {
	return c.do(ctx, c.authorized(ctx, token), http.MethodDelete, "/tasks/"+url.PathEscape(id), nil, nil)
}

func (c *Client) do(ctx context.Context, hc *http.Client, method, path string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{Status: resp.StatusCode, Message: errorMessage(data)}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("malformed response from %s: %w", path, err)
	}
	return nil
}

func errorMessage(data []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}
	if body.Message != "" {
		return body.Message
	}
	return body.Error
}
