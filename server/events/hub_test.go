package events

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/GoCodeAlone/ranked/comms"
)

func newHub() *Hub {
	return NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// readEvent returns the payload of the next "data:" line.
func readEvent(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		if strings.HasPrefix(line, "data: ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "data: "))
		}
	}
}

func waitForClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("clients = %d, want %d", h.Clients(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHub_StreamsOutcomes(t *testing.T) {
	h := newHub()
	ts := httptest.NewServer(http.HandlerFunc(h.ServeSSE))
	defer ts.Close()

	resp, err := http.Get(ts.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
	r := bufio.NewReader(resp.Body)
	if got := readEvent(t, r); got != `{"type":"connected"}` {
		t.Fatalf("first event = %s", got)
	}
	waitForClients(t, h, 1)

	bus := comms.NewInMemoryBus(10)
	bus.Subscribe(comms.KindAll, h.OnOutcome)
	if err := bus.Publish(context.Background(), &comms.Outcome{ID: "o-1", Kind: comms.KindReorder, TaskCount: 4}); err != nil {
		t.Fatal(err)
	}

	var ev struct {
		Type    string        `json:"type"`
		Payload comms.Outcome `json:"payload"`
	}
	if err := json.Unmarshal([]byte(readEvent(t, r)), &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Type != "outcome" || ev.Payload.ID != "o-1" || ev.Payload.TaskCount != 4 {
		t.Errorf("event = %+v", ev)
	}
}

func TestHub_CloseEndsStreams(t *testing.T) {
	h := newHub()
	ts := httptest.NewServer(http.HandlerFunc(h.ServeSSE))
	defer ts.Close()

	resp, err := http.Get(ts.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	readEvent(t, bufio.NewReader(resp.Body))
	waitForClients(t, h, 1)

	h.Close()
	waitForClients(t, h, 0)

	resp2, err := http.Get(ts.URL)
	if err != nil {
		t.Fatal(err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("after Close: status %d, want 503", resp2.StatusCode)
	}
}

func TestHub_FramesCarryIDAndName(t *testing.T) {
	h := newHub()
	ts := httptest.NewServer(http.HandlerFunc(h.ServeSSE))
	defer ts.Close()

	resp, err := http.Get(ts.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	r := bufio.NewReader(resp.Body)
	readEvent(t, r)
	waitForClients(t, h, 1)

	seq := h.Broadcast(Event{Type: "outcome", Payload: map[string]int{"taskCount": 2}})

	var lines []string
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		if line == "" && len(lines) == 0 {
			continue
		}
		if line == "" {
			break
		}
		lines = append(lines, line)
	}
	want := []string{
		fmt.Sprintf("id: %d", seq),
		"event: outcome",
		`data: {"type":"outcome","payload":{"taskCount":2}}`,
	}
	if strings.Join(lines, "|") != strings.Join(want, "|") {
		t.Errorf("frame = %q, want %q", lines, want)
	}
}

func TestHub_KeepAlive(t *testing.T) {
	h := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)), WithKeepAlive(10*time.Millisecond))
	ts := httptest.NewServer(http.HandlerFunc(h.ServeSSE))
	defer ts.Close()

	resp, err := http.Get(ts.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	r := bufio.NewReader(resp.Body)
	readEvent(t, r)

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		if line == ": keepalive\n" {
			return
		}
	}
}

func TestHub_BroadcastWithoutClients(t *testing.T) {
	h := newHub()
	first := h.Broadcast(Event{Type: "outcome"})
	second := h.Broadcast(Event{Type: "outcome"})
	if second != first+1 {
		t.Errorf("seq %d then %d", first, second)
	}
	if h.Clients() != 0 {
		t.Error("unexpected clients")
	}
}
