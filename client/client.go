// Package client talks to the ranked daemon.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/GoCodeAlone/ranked/comms"
	"github.com/GoCodeAlone/ranked/server/api"
	"github.com/GoCodeAlone/ranked/task"
)

// DefaultServerURL is where the daemon listens out of the box.
const DefaultServerURL = "http://localhost:9090"

// ErrMissingResult is returned when a 200 reply carries no reorderedTasks.
var ErrMissingResult = errors.New("response has no reorderedTasks")

// APIError is a non-2xx reply from the daemon.
type APIError struct {
	StatusCode int
	Message    string
	Details    string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
	if e.Details != "" {
		msg += " (" + e.Details + ")"
	}
	return msg
}

// Client is an HTTP client for the daemon API.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a Client for baseURL. A nil httpClient means a client with a
// 60-second timeout.
func New(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultServerURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// ReorderTasks asks the daemon to add newTaskText to tasks and reorder the result.
func (c *Client) ReorderTasks(ctx context.Context, tasks task.List, newTaskText string) (task.List, error) {
	var res struct {
		ReorderedTasks *task.List `json:"reorderedTasks"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/reorder-tasks", api.ReorderRequest{Tasks: nonNil(tasks), NewTaskText: newTaskText}, &res); err != nil {
		return nil, err
	}
	if res.ReorderedTasks == nil {
		return nil, ErrMissingResult
	}
	return *res.ReorderedTasks, nil
}

// RerankTasks asks the daemon to reorder tasks without adding anything.
func (c *Client) RerankTasks(ctx context.Context, tasks task.List) (task.List, error) {
	var res struct {
		ReorderedTasks *task.List `json:"reorderedTasks"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/rerank-tasks", api.RerankRequest{Tasks: nonNil(tasks)}, &res); err != nil {
		return nil, err
	}
	if res.ReorderedTasks == nil {
		return nil, ErrMissingResult
	}
	return *res.ReorderedTasks, nil
}

// SuggestInsertion asks the daemon where the keyword heuristic would place t.
func (c *Client) SuggestInsertion(ctx context.Context, t task.Task, tasks task.List) (api.SuggestResult, error) {
	var res api.SuggestResult
	err := c.do(ctx, http.MethodPost, "/api/suggest-insertion", api.SuggestRequest{Task: t, Tasks: nonNil(tasks)}, &res)
	return res, err
}

// Reorders returns up to limit recent reorder outcomes, oldest first.
func (c *Client) Reorders(ctx context.Context, limit int) ([]comms.Outcome, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/reorders"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var res []comms.Outcome
	err := c.do(ctx, http.MethodGet, path, nil, &res)
	return res, err
}

// Status reports the daemon's health.
func (c *Client) Status(ctx context.Context) (api.StatusResponse, error) {
	var res api.StatusResponse
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &res)
	return res, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var e api.ErrorResponse
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			apiErr.Message, apiErr.Details = e.Error, e.Details
		} else {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func nonNil(l task.List) task.List {
	if l == nil {
		return task.List{}
	}
	return l
}
