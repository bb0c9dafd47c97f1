// Package events streams reorder outcomes to connected clients over Server-Sent Events.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GoCodeAlone/ranked/comms"
)

// DefaultKeepAlive is how often an idle stream gets a comment line so proxies
// keep it open.
const DefaultKeepAlive = 25 * time.Second

// Event is one message on the stream. Type doubles as the SSE event name.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type frame struct {
	seq  uint64
	name string
	data []byte
}

type subscriber struct {
	frames chan frame
}

// Hub fans events out to every open stream. A subscriber that falls behind
// misses events rather than stalling the publisher.
type Hub struct {
	logger    *slog.Logger
	keepAlive time.Duration
	seq       atomic.Uint64

	mu   sync.RWMutex
	subs map[*subscriber]struct{}

	done      chan struct{}
	closeOnce sync.Once
}

// Option configures a Hub.
type Option func(*Hub)

// WithKeepAlive sets the idle keepalive interval. Zero disables it.
func WithKeepAlive(d time.Duration) Option { return func(h *Hub) { h.keepAlive = d } }

// NewHub creates a Hub ready to accept connections.
func NewHub(logger *slog.Logger, opts ...Option) *Hub {
	h := &Hub{
		logger:    logger,
		keepAlive: DefaultKeepAlive,
		subs:      make(map[*subscriber]struct{}),
		done:      make(chan struct{}),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Broadcast queues ev for every open stream and returns its sequence number.
func (h *Hub) Broadcast(ev Event) uint64 {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("encode event", slog.String("type", ev.Type), slog.Any("err", err))
		return 0
	}
	f := frame{seq: h.seq.Add(1), name: ev.Type, data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	dropped := 0
	for s := range h.subs {
		select {
		case s.frames <- f:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		h.logger.Debug("event dropped for slow subscribers",
			slog.Uint64("seq", f.seq), slog.Int("subscribers", dropped))
	}
	return f.seq
}

// OnOutcome is a comms.Handler that forwards every outcome as an "outcome" event.
func (h *Hub) OnOutcome(_ context.Context, o *comms.Outcome) error {
	h.Broadcast(Event{Type: "outcome", Payload: o})
	return nil
}

// Clients reports the number of open streams.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close ends every open stream and refuses new ones.
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

func (h *Hub) join() *subscriber {
	s := &subscriber{frames: make(chan frame, 64)}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	return s
}

func (h *Hub) leave(s *subscriber) {
	h.mu.Lock()
	delete(h.subs, s)
	h.mu.Unlock()
}

// ServeSSE streams events until the client goes away or the hub closes.
func (h *Hub) ServeSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	select {
	case <-h.done:
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	default:
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	s := h.join()
	defer h.leave(s)

	fmt.Fprint(w, "event: connected\ndata: {\"type\":\"connected\"}\n\n") //nolint:errcheck
	flusher.Flush()

	var tick <-chan time.Time
	if h.keepAlive > 0 {
		t := time.NewTicker(h.keepAlive)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-h.done:
			return
		case <-tick:
			fmt.Fprint(w, ": keepalive\n\n") //nolint:errcheck
			flusher.Flush()
		case f := <-s.frames:
			// json.Marshal output holds no raw newlines, so one data line suffices.
			fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", f.seq, f.name, f.data) //nolint:errcheck
			flusher.Flush()
		}
	}
}
