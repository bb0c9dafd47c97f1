package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/GoCodeAlone/ranked/priority"
	"github.com/GoCodeAlone/ranked/reorder"
	"github.com/GoCodeAlone/ranked/task"
)

// ErrSuperseded is returned by a call that a newer call replaced before it finished.
// Its result must not be applied.
var ErrSuperseded = errors.New("superseded by a newer request")

// FallbackMode chooses where a task goes when the daemon cannot place it.
type FallbackMode string

const (
	FallbackAppend    FallbackMode = "append"    // add at the end
	FallbackHeuristic FallbackMode = "heuristic" // keyword priority placement
)

// ParseFallbackMode validates s.
func ParseFallbackMode(s string) (FallbackMode, error) {
	switch m := FallbackMode(strings.ToLower(s)); m {
	case FallbackAppend, FallbackHeuristic:
		return m, nil
	case "":
		return FallbackAppend, nil
	default:
		return "", fmt.Errorf("unknown fallback mode %q (want append or heuristic)", s)
	}
}

// Result is the list to show after adding a task.
type Result struct {
	Tasks    task.List
	Fallback bool  // placed locally
	Cause    error // why the daemon's answer was not used
}

// Reorderer adds tasks through the daemon, one request at a time. Starting a new
// call cancels the one in flight.
type Reorderer struct {
	client *Client
	engine *reorder.Engine
	mode   FallbackMode
	logger *slog.Logger

	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
}

// NewReorderer creates a Reorderer. engine mints the ids of locally placed tasks.
func NewReorderer(c *Client, engine *reorder.Engine, mode FallbackMode, logger *slog.Logger) *Reorderer {
	if engine == nil {
		engine = reorder.NewEngine()
	}
	if mode == "" {
		mode = FallbackAppend
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reorderer{client: c, engine: engine, mode: mode, logger: logger}
}

// AddTask returns tasks with a new task for text placed by the daemon. Any failure
// to get a usable answer places the task locally instead, so the task is never lost.
// A call replaced by a newer one returns ErrSuperseded; a canceled ctx returns its error.
func (r *Reorderer) AddTask(ctx context.Context, tasks task.List, text string) (Result, error) {
	if strings.TrimSpace(text) == "" {
		return Result{}, task.ErrEmptyText
	}
	callCtx, seq := r.begin(ctx)
	defer r.end(seq)

	out, err := r.client.ReorderTasks(callCtx, tasks, text)
	if r.superseded(seq) {
		return Result{}, ErrSuperseded
	}
	if ctx.Err() != nil {
		return Result{}, ctx.Err()
	}
	if err == nil {
		err = checkAdded(tasks, out, text)
	}
	if err != nil {
		r.logger.Warn("reorder failed, placing task locally",
			slog.Any("err", err), slog.String("mode", string(r.mode)))
		return Result{Tasks: r.placeLocally(tasks, text), Fallback: true, Cause: err}, nil
	}
	return Result{Tasks: out}, nil
}

// Rerank asks the daemon for a fresh ordering of tasks. On failure tasks are returned
// unchanged along with the cause.
func (r *Reorderer) Rerank(ctx context.Context, tasks task.List) (Result, error) {
	callCtx, seq := r.begin(ctx)
	defer r.end(seq)

	out, err := r.client.RerankTasks(callCtx, tasks)
	if r.superseded(seq) {
		return Result{}, ErrSuperseded
	}
	if ctx.Err() != nil {
		return Result{}, ctx.Err()
	}
	if err == nil && len(out) != len(tasks) {
		err = fmt.Errorf("rerank returned %d tasks, want %d", len(out), len(tasks))
	}
	if err == nil {
		err = checkResult(tasks, out)
	}
	if err != nil {
		r.logger.Warn("rerank failed, keeping order", slog.Any("err", err))
		return Result{Tasks: tasks.Clone(), Fallback: true, Cause: err}, nil
	}
	return Result{Tasks: out}, nil
}

func (r *Reorderer) begin(ctx context.Context) (context.Context, uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
	}
	r.seq++
	callCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	return callCtx, r.seq
}

func (r *Reorderer) end(seq uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seq == seq && r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}

func (r *Reorderer) superseded(seq uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seq != seq
}

func (r *Reorderer) placeLocally(tasks task.List, text string) task.List {
	if r.mode == FallbackHeuristic {
		t := r.engine.NewTask(text)
		return tasks.Insert(priority.SuggestInsertionPoint(t, tasks), t)
	}
	out, _ := r.engine.Fallback(tasks, text, nil)
	return out
}

// checkResult rejects answers that lost one of the submitted tasks or broke the
// list invariants.
func checkResult(sent, got task.List) error {
	if err := got.Validate(); err != nil {
		return fmt.Errorf("invalid reordered list: %w", err)
	}
	for _, t := range sent {
		if got.Index(t.ID) < 0 {
			return fmt.Errorf("reordered list lost task %s", t.ID)
		}
	}
	return nil
}

// checkAdded is checkResult plus exactly one new task carrying text.
func checkAdded(sent, got task.List, text string) error {
	if err := checkResult(sent, got); err != nil {
		return err
	}
	if len(got) != len(sent)+1 {
		return fmt.Errorf("reordered list has %d tasks, want %d", len(got), len(sent)+1)
	}
	for _, t := range got {
		if sent.Index(t.ID) >= 0 {
			continue
		}
		if strings.TrimSpace(t.Text) != strings.TrimSpace(text) {
			return fmt.Errorf("reordered list added %q, want %q", t.Text, text)
		}
	}
	return nil
}
