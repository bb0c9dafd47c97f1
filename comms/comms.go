// Package comms carries reorder outcomes from the API to whoever wants to watch them.
package comms

import (
	"context"
	"time"

	"github.com/GoCodeAlone/ranked/reorder"
)

// Kind identifies which operation produced an outcome.
type Kind string

const (
	KindReorder Kind = "reorder" // a task was added and the list reordered
	KindRerank  Kind = "rerank"  // an existing list was reordered
	KindAll     Kind = ""        // subscribe to or query every kind
)

// Outcome is the record of one reconciliation.
type Outcome struct {
	ID            string         `json:"id"`
	Kind          Kind           `json:"kind"`
	Provider      string         `json:"provider"`
	TaskCount     int            `json:"taskCount"`
	NewTaskText   string         `json:"newTaskText,omitempty"`
	Report        reorder.Report `json:"report"`
	UpstreamError string         `json:"upstreamError,omitempty"`
	ElapsedMS     int64          `json:"elapsedMs"`
	Timestamp     time.Time      `json:"timestamp"`
}

// Handler processes a published outcome.
type Handler func(ctx context.Context, o *Outcome) error

// Bus fans outcomes out to subscribers and remembers the recent ones.
type Bus interface {
	// Publish records o and delivers it to subscribers of its kind and of KindAll.
	Publish(ctx context.Context, o *Outcome) error

	// Subscribe registers a handler for the given kind.
	// Returns an unsubscribe function.
	Subscribe(kind Kind, handler Handler) (unsubscribe func())

	// History returns up to limit recent outcomes of kind, oldest first.
	History(kind Kind, limit int) ([]*Outcome, error)
}
