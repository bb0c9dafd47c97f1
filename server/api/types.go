// Package api defines the REST API handlers and wire types for the ranked daemon.
package api

import (
	"context"
	"errors"

	"github.com/GoCodeAlone/ranked/task"
)

// ErrInvalidInput marks a request the daemon refuses with 400.
var ErrInvalidInput = errors.New("invalid input")

// Gateway is the interface the API uses to reach the model.
// Implemented by gateway.Gateway.
type Gateway interface {
	ProviderName() string
	RequestReorder(ctx context.Context, tasks task.List, newTaskText string) (string, error)
	RequestRerank(ctx context.Context, tasks task.List) (string, error)
}

// ReorderRequest is the body of POST /api/reorder-tasks.
type ReorderRequest struct {
	Tasks       task.List `json:"tasks"`
	NewTaskText string    `json:"newTaskText"`
}

// RerankRequest is the body of POST /api/rerank-tasks.
type RerankRequest struct {
	Tasks task.List `json:"tasks"`
}

// ReorderResult is the success body of both reorder endpoints.
type ReorderResult struct {
	ReorderedTasks task.List `json:"reorderedTasks"`
}

// SuggestRequest is the body of POST /api/suggest-insertion.
type SuggestRequest struct {
	Task  task.Task `json:"task"`
	Tasks task.List `json:"tasks"`
}

// SuggestResult is where the heuristic would place the task, and its score.
type SuggestResult struct {
	Index int `json:"index"`
	Score int `json:"score"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	Provider      string `json:"provider"`
	UptimeSeconds int64  `json:"uptimeSeconds"`
}
