package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/benvon/kanban-assistant/internal/api"
	"github.com/benvon/kanban-assistant/internal/database"
	"github.com/benvon/kanban-assistant/internal/models"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

const (
	// DefaultBaseURL is used when no API URL is configured
	DefaultBaseURL = "http://localhost:8080"

	maxResponseBytes = 1 << 20
)

// Client talks to the kanban API with a bearer token. Task operations are
// scoped to the token's user by the server, so the userID arguments only
// satisfy the store interfaces.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// New creates a client for baseURL. A non-empty token is attached to every
// request by an oauth2 transport.
func New(baseURL, token string) *Client {
	httpClient := &http.Client{}
	if token = strings.TrimSpace(token); token != "" {
		tokenSource := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
		httpClient = oauth2.NewClient(context.Background(), tokenSource)
	}
	httpClient.Timeout = 2 * time.Minute

	return &Client{
		BaseURL:    baseURL,
		HTTPClient: httpClient,
	}
}

// StatusError is a non-success API answer
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	ErrorType  string
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api %s %s failed: status=%d %s: %s", e.Method, e.Path, e.StatusCode, e.ErrorType, e.Message)
}

// Unwrap lets callers match a 404 with database.ErrNotFound
func (e *StatusError) Unwrap() error {
	if e.StatusCode == http.StatusNotFound {
		return database.ErrNotFound
	}
	return nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

func (c *Client) newRequest(ctx context.Context, method, path string, reqBody any) (*http.Request, error) {
	base := strings.TrimRight(c.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}

	var body io.Reader
	if reqBody != nil {
		buf, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, base+path, body)
	if err != nil {
		return nil, err
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	hc := c.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	return hc.Do(req)
}

// doJSON sends a request to an enveloped endpoint and decodes data into out
func (c *Client) doJSON(ctx context.Context, method, path string, reqBody, out any) error {
	req, err := c.newRequest(ctx, method, path, reqBody)
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return fmt.Errorf("api %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var env envelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&env); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode}
		}
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !env.Success {
		return &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			ErrorType:  env.Error,
			Message:    env.Message,
		}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}

// Me returns the authenticated user
func (c *Client) Me(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// List returns the caller's tasks in board order
func (c *Client) List(ctx context.Context, _ uuid.UUID) ([]models.Task, error) {
	var out api.TaskListResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/tasks", nil, &out); err != nil {
		return nil, err
	}
	return out.Tasks, nil
}

// Board returns the server-side board summary
func (c *Client) Board(ctx context.Context) (*api.BoardResponse, error) {
	var out api.BoardResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/board", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Create inserts task and writes the stored row back into it
func (c *Client) Create(ctx context.Context, task *models.Task) error {
	req := api.CreateTaskRequest{
		Title:            task.Title,
		Description:      task.Description,
		Status:           task.Status,
		Priority:         task.Priority,
		Tags:             task.Tags,
		Position:         &task.Position,
		EstimatedMinutes: task.EstimatedMinutes,
	}
	if task.DueDate != nil {
		due := task.DueDate.Format("2006-01-02")
		req.DueDate = &due
	}
	return c.doJSON(ctx, http.MethodPost, "/api/v1/tasks", req, task)
}

// Update applies a sparse patch
func (c *Client) Update(ctx context.Context, _ uuid.UUID, id uuid.UUID, patch models.TaskPatch) (*models.Task, error) {
	var task models.Task
	if err := c.doJSON(ctx, http.MethodPatch, "/api/v1/tasks/"+id.String(), patchRequest(patch), &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// Move changes a task's column and position
func (c *Client) Move(ctx context.Context, id uuid.UUID, status models.TaskStatus, position *int) (*models.Task, error) {
	var task models.Task
	body := api.MoveTaskRequest{Status: status, Position: position}
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/tasks/"+id.String()+"/move", body, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// Delete removes a task
func (c *Client) Delete(ctx context.Context, _ uuid.UUID, id uuid.UUID) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/v1/tasks/"+id.String(), nil, nil)
}

var _ database.TaskStore = (*Client)(nil)
