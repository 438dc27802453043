// Package taskdecksdk is a minimal HTTP client for the Taskdeck API.
package taskdecksdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to a Taskdeck server. Set either BearerToken or APIKey.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults. baseURL includes the API
// base path, e.g. "http://127.0.0.1:8700/v1".
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// SubTask is a checklist item on a task.
type SubTask struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Tag       string `json:"tag"`
	Date      string `json:"date"`
	Completed bool   `json:"completed"`
	CreatedAt string `json:"created_at"`
}

// Activity is one entry in a task's activity log.
type Activity struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Text    string `json:"text"`
	ActorID string `json:"actor_id,omitempty"`
	TS      string `json:"ts"`
}

// Task is the API task model.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Stage       string     `json:"stage"`
	Priority    string     `json:"priority"`
	Assignees   []string   `json:"assignees"`
	SubTasks    []SubTask  `json:"sub_tasks"`
	Activities  []Activity `json:"activities"`
	IsTrashed   bool       `json:"is_trashed"`
	CreatedAt   string     `json:"created_at"`
	UpdatedAt   string     `json:"updated_at"`
}

// Stats is the dashboard aggregate.
type Stats struct {
	Total      int            `json:"total"`
	ByStage    map[string]int `json:"by_stage"`
	ByPriority map[string]int `json:"by_priority"`
	Recent     []Task         `json:"recent"`
	LastWeek   int            `json:"last_week"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// PaginatedTasks wraps list responses with cursors.
type PaginatedTasks struct {
	Items      []Task `json:"items"`
	NextCursor string `json:"next_cursor"`
}

// CreateTask creates a task.
func (c *Client) CreateTask(ctx context.Context, title string, assignees []string) (Task, error) {
	body := map[string]any{"title": title}
	if len(assignees) > 0 {
		body["assignees"] = assignees
	}
	var resp Task
	err := c.do(ctx, http.MethodPost, "tasks", body, &resp)
	return resp, err
}

// Task fetches one task by id.
func (c *Client) Task(ctx context.Context, id string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodGet, "tasks/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// Tasks returns one page of the task list.
func (c *Client) Tasks(ctx context.Context, limit int, cursor string) (PaginatedTasks, error) {
	endpoint := "tasks"
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp PaginatedTasks
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// ChangeStage moves a task to a workflow stage.
func (c *Client) ChangeStage(ctx context.Context, id, stage string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, "tasks/"+url.PathEscape(id)+"/stage", map[string]any{"stage": stage}, &resp)
	return resp, err
}

// CreateSubTask attaches a subtask to a task.
func (c *Client) CreateSubTask(ctx context.Context, taskID, title, tag, date string) (Task, error) {
	body := map[string]any{"title": title, "tag": tag, "date": date}
	var resp Task
	err := c.do(ctx, http.MethodPost, "tasks/"+url.PathEscape(taskID)+"/subtasks", body, &resp)
	return resp, err
}

// Duplicate copies a task under a fresh id.
func (c *Client) Duplicate(ctx context.Context, id string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, "tasks/"+url.PathEscape(id)+"/duplicate", nil, &resp)
	return resp, err
}

// PostActivity appends a progress report to a task's log.
func (c *Client) PostActivity(ctx context.Context, taskID, actType, text string) (Task, error) {
	body := map[string]any{"type": actType, "text": text}
	var resp Task
	err := c.do(ctx, http.MethodPost, "tasks/"+url.PathEscape(taskID)+"/activities", body, &resp)
	return resp, err
}

// Trash moves a task to the trash.
func (c *Client) Trash(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "tasks/trash", map[string]any{"action": "delete", "id": id}, nil)
}

// Restore brings a trashed task back.
func (c *Client) Restore(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "tasks/trash", map[string]any{"action": "restore", "id": id}, nil)
}

// Dashboard fetches the dashboard statistics.
func (c *Client) Dashboard(ctx context.Context) (Stats, error) {
	var resp Stats
	err := c.do(ctx, http.MethodGet, "dashboard", nil, &resp)
	return resp, err
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	u := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, u, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
