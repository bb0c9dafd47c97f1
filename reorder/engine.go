// Package reorder reconciles a model's suggested ordering with the canonical task list.
//
// The model answer is untrusted text. Whatever it contains, the result always holds
// every original task exactly once, plus exactly one new task when one is being added.
package reorder

import (
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/GoCodeAlone/ranked/task"
)

// IDGenerator mints ids for synthesized tasks.
type IDGenerator interface {
	NewID() string
}

// Clock supplies creation timestamps for synthesized tasks.
type Clock interface {
	Now() time.Time
}

// UUIDGenerator issues random v4 UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID() string { return uuid.NewString() }

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// IDFunc adapts a function to IDGenerator.
type IDFunc func() string

func (f IDFunc) NewID() string { return f() }

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// Report describes how a reconciliation went.
type Report struct {
	Fallback       bool     `json:"fallback"`
	ParseError     string   `json:"parseError,omitempty"`
	Unrecognized   []string `json:"unrecognized,omitempty"`
	Omitted        []string `json:"omitted,omitempty"` // ids appended by the completeness sweep
	NewTaskMatched bool     `json:"newTaskMatched"`
	NewTaskID      string   `json:"newTaskId,omitempty"`
}

// Engine rebuilds task lists from model answers.
type Engine struct {
	ids    IDGenerator
	clock  Clock
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithIDGenerator overrides the id source for synthesized tasks.
func WithIDGenerator(g IDGenerator) Option { return func(e *Engine) { e.ids = g } }

// WithClock overrides the timestamp source for synthesized tasks.
func WithClock(c Clock) Option { return func(e *Engine) { e.clock = c } }

// WithLogger sets the logger used for discarded tokens and swept tasks.
func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

// NewEngine returns an Engine using random UUIDs and the system clock unless overridden.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{ids: UUIDGenerator{}, clock: SystemClock{}, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewTask synthesizes a fresh, incomplete task for text.
func (e *Engine) NewTask(text string) task.Task {
	return task.New(e.ids.NewID(), text, e.clock.Now())
}

// Reconcile merges the ordering in llmRawText with original and adds one new task
// for newTaskText. It never fails: an uninterpretable answer yields original with the
// new task appended.
func (e *Engine) Reconcile(original task.List, newTaskText, llmRawText string) (task.List, Report) {
	reply := ParseReply(llmRawText)
	if reply.Malformed() {
		e.logger.Warn("unparsable model reply, appending new task",
			slog.Any("err", reply.Err), slog.String("reply", llmRawText))
		return e.Fallback(original, newTaskText, reply.Err)
	}
	return e.apply(original, reply.Tokens, newTaskText, true)
}

// Reorder applies the ordering in llmRawText to original without adding anything.
// An uninterpretable answer leaves the list as it was.
func (e *Engine) Reorder(original task.List, llmRawText string) (task.List, Report) {
	reply := ParseReply(llmRawText)
	if reply.Malformed() {
		e.logger.Warn("unparsable model reply, keeping order",
			slog.Any("err", reply.Err), slog.String("reply", llmRawText))
		return original.Clone(), Report{Fallback: true, ParseError: reply.Err.Error()}
	}
	return e.apply(original, reply.Tokens, "", false)
}

// Fallback appends a new task for newTaskText to original. cause, when non-nil, is
// recorded in the report.
func (e *Engine) Fallback(original task.List, newTaskText string, cause error) (task.List, Report) {
	t := e.NewTask(newTaskText)
	r := Report{Fallback: true, NewTaskID: t.ID}
	if cause != nil {
		r.ParseError = cause.Error()
	}
	return original.Append(t), r
}

func (e *Engine) apply(original task.List, tokens []string, newTaskText string, withNew bool) (task.List, Report) {
	var (
		report  Report
		out     = make(task.List, 0, len(original)+1)
		emitted = make([]bool, len(original))
		byKey   = make(map[string][]int, len(original))
		byID    = make(map[string]int, len(original))
		newKey  = Normalize(newTaskText)
		newDone = !withNew
	)
	for i, t := range original {
		k := Normalize(t.Text)
		byKey[k] = append(byKey[k], i)
		byID[strings.ToLower(t.ID)] = i
	}

	emit := func(i int) {
		emitted[i] = true
		out = append(out, original[i])
	}
	// next pops the first not-yet-emitted original filed under key.
	next := func(key string) (int, bool) {
		queue := byKey[key]
		for len(queue) > 0 {
			i := queue[0]
			queue = queue[1:]
			if !emitted[i] {
				byKey[key] = queue
				return i, true
			}
		}
		delete(byKey, key)
		return 0, false
	}

	for _, tok := range tokens {
		text, annotated := stripAnnotation(tok)
		if i, ok := byID[annotated]; ok && annotated != "" && !emitted[i] {
			emit(i)
			continue
		}
		key := Normalize(text)
		if key == "" {
			report.Unrecognized = append(report.Unrecognized, tok)
			continue
		}
		if i, ok := next(key); ok {
			emit(i)
			continue
		}
		if !newDone && key == newKey {
			t := e.NewTask(newTaskText)
			out = append(out, t)
			newDone = true
			report.NewTaskMatched = true
			report.NewTaskID = t.ID
			continue
		}
		report.Unrecognized = append(report.Unrecognized, tok)
	}
	for _, tok := range report.Unrecognized {
		e.logger.Warn("discarding unrecognized reply item", slog.String("item", tok))
	}

	for i, t := range original {
		if emitted[i] {
			continue
		}
		e.logger.Warn("task missing from model reply, appending",
			slog.String("id", t.ID), slog.String("text", t.Text))
		report.Omitted = append(report.Omitted, t.ID)
		out = append(out, t)
	}

	if !newDone {
		e.logger.Warn("new task missing from model reply, appending", slog.String("text", newTaskText))
		t := e.NewTask(newTaskText)
		out = append(out, t)
		report.NewTaskID = t.ID
	}
	return out, report
}
