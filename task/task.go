// Package task defines the to-do model, list edit operations, and snapshot persistence.
package task

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound    = errors.New("task not found")
	ErrDuplicateID = errors.New("duplicate task id")
	ErrEmptyText   = errors.New("task text is empty")
)

// Task is a single to-do item.
type Task struct {
	ID            string  `json:"id"`
	Text          string  `json:"text"`
	Completed     bool    `json:"completed"`
	PriorityScore float64 `json:"priorityScore"`
	CreatedAt     int64   `json:"createdAt"` // unix milliseconds
}

// New returns an incomplete task with a zero priority score, created at now.
func New(id, text string, now time.Time) Task {
	return Task{
		ID:        id,
		Text:      text,
		CreatedAt: now.UnixMilli(),
	}
}

// List is an ordered task sequence. Position encodes priority.
type List []Task

// Validate reports the first invariant violation in l.
func (l List) Validate() error {
	seen := make(map[string]struct{}, len(l))
	for i, t := range l {
		if strings.TrimSpace(t.Text) == "" {
			return fmt.Errorf("task %d (%s): %w", i, t.ID, ErrEmptyText)
		}
		if _, dup := seen[t.ID]; dup {
			return fmt.Errorf("task %d: %w: %s", i, ErrDuplicateID, t.ID)
		}
		seen[t.ID] = struct{}{}
	}
	return nil
}

// IDs returns the task ids in list order.
func (l List) IDs() []string {
	ids := make([]string, len(l))
	for i, t := range l {
		ids[i] = t.ID
	}
	return ids
}

// Index returns the position of id, or -1.
func (l List) Index(id string) int {
	for i, t := range l {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// Clone returns a copy that shares no backing array with l.
func (l List) Clone() List {
	out := make(List, len(l))
	copy(out, l)
	return out
}

// Append returns l with t added at the end.
func (l List) Append(t Task) List {
	out := make(List, 0, len(l)+1)
	out = append(out, l...)
	return append(out, t)
}

// Insert returns l with t placed at index. Out-of-range indexes are clamped.
func (l List) Insert(index int, t Task) List {
	index = clamp(index, len(l))
	out := make(List, 0, len(l)+1)
	out = append(out, l[:index]...)
	out = append(out, t)
	return append(out, l[index:]...)
}

// Toggle flips the completion flag of the task with the given id.
func (l List) Toggle(id string) (List, error) {
	i := l.Index(id)
	if i < 0 {
		return nil, fmt.Errorf("toggle %s: %w", id, ErrNotFound)
	}
	out := l.Clone()
	out[i].Completed = !out[i].Completed
	return out, nil
}

// Edit replaces the text of the task with the given id.
func (l List) Edit(id, text string) (List, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("edit %s: %w", id, ErrEmptyText)
	}
	i := l.Index(id)
	if i < 0 {
		return nil, fmt.Errorf("edit %s: %w", id, ErrNotFound)
	}
	out := l.Clone()
	out[i].Text = text
	return out, nil
}

// Remove deletes the task with the given id.
func (l List) Remove(id string) (List, error) {
	i := l.Index(id)
	if i < 0 {
		return nil, fmt.Errorf("remove %s: %w", id, ErrNotFound)
	}
	out := make(List, 0, len(l)-1)
	out = append(out, l[:i]...)
	return append(out, l[i+1:]...), nil
}

// Move relocates the task with the given id to index, as a manual drag would.
func (l List) Move(id string, index int) (List, error) {
	i := l.Index(id)
	if i < 0 {
		return nil, fmt.Errorf("move %s: %w", id, ErrNotFound)
	}
	t := l[i]
	rest, _ := l.Remove(id)
	return rest.Insert(index, t), nil
}

func clamp(i, n int) int {
	if i < 0 {
		return 0
	}
	if i > n {
		return n
	}
	return i
}

// Store persists a task list as a single snapshot.
type Store interface {
	// Load returns the saved list. A missing or unreadable snapshot yields an empty list.
	Load() (List, error)

	// Save replaces the saved snapshot with tasks.
	Save(tasks List) error
}
