// Package suggest asks the AI service for task ideas and chat replies.
package suggest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rtms/taskboard/pkg/models"
)

// Marker prefixes each suggestion in free-text model output.
const Marker = "Suggested Task:"

// Timeout bounds a single AI call; generation is slower than the task API.
const Timeout = 30 * time.Second

// Suggester returns candidate task titles for the current collection.
type Suggester interface {
	Suggest(ctx context.Context, tasks []models.Task) ([]string, error)
}

// Chatter answers a free-text prompt with the current tasks as context.
type Chatter interface {
	Chat(ctx context.Context, message string, tasks []models.Task) (string, error)
}

// Extract parses titles out of free-text output. Each segment after Marker
// contributes its first line, trimmed. Empty titles are dropped.
func Extract(text string) []string {
	segments := strings.Split(text, Marker)
	titles := make([]string, 0, len(segments))
	for _, segment := range segments[1:] {
		line, _, _ := strings.Cut(segment, "\n")
		if title := strings.TrimSpace(line); title != "" {
			titles = append(titles, title)
		}
	}
	return titles
}

// Client calls the AI service over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

var (
	_ Suggester = (*Client)(nil)
	_ Chatter   = (*Client)(nil)
)

// NewClient creates a client for baseURL. A nil httpClient uses http.DefaultClient.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

type suggestionsResponse struct {
	Suggestions []string `json:"suggestions"`
	Text        string   `json:"text"`
}

// Suggest prefers the structured suggestions list and falls back to
// extracting titles from text.
func (c *Client) Suggest(ctx context.Context, tasks []models.Task) ([]string, error) {
	var resp suggestionsResponse
	if err := c.post(ctx, "/suggestions", map[string]any{"tasks": tasks}, &resp); err != nil {
		return nil, err
	}

	if resp.Suggestions != nil {
		titles := make([]string, 0, len(resp.Suggestions))
		for _, s := range resp.Suggestions {
			if t := strings.TrimSpace(s); t != "" {
				titles = append(titles, t)
			}
		}
		return titles, nil
	}
	return Extract(resp.Text), nil
}

// Chat sends message and returns the assistant's reply.
func (c *Client) Chat(ctx context.Context, message string, tasks []models.Task) (string, error) {
	var resp struct {
		Reply string `json:"reply"`
	}
	if err := c.post(ctx, "/chat", map[string]any{"message": message, "tasks": tasks}, &resp); err != nil {
		return "", err
	}
	return resp.Reply, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ai service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("ai service: status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("malformed ai response: %w", err)
	}
	return nil
}
