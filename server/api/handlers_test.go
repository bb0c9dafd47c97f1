package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/GoCodeAlone/ranked/comms"
	"github.com/GoCodeAlone/ranked/gateway"
	"github.com/GoCodeAlone/ranked/reorder"
	"github.com/GoCodeAlone/ranked/server/api"
	"github.com/GoCodeAlone/ranked/task"
)

// --- Test doubles ---

type fakeGateway struct {
	mu     sync.Mutex
	reply  string
	err    error
	prompt []task.List
	texts  []string
}

func (g *fakeGateway) ProviderName() string { return "fake" }

func (g *fakeGateway) RequestReorder(_ context.Context, tasks task.List, newTaskText string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompt = append(g.prompt, tasks)
	g.texts = append(g.texts, newTaskText)
	return g.reply, g.err
}

func (g *fakeGateway) RequestRerank(_ context.Context, tasks task.List) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompt = append(g.prompt, tasks)
	return g.reply, g.err
}

func (g *fakeGateway) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompt)
}

// --- Test helpers ---

var fixedNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newHandlers(t *testing.T, gw *fakeGateway) (*api.Handlers, *http.ServeMux) {
	t.Helper()
	n := 0
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mux := http.NewServeMux()
	h := &api.Handlers{
		Engine: reorder.NewEngine(
			reorder.WithIDGenerator(reorder.IDFunc(func() string { n++; return fmt.Sprintf("new-%d", n) })),
			reorder.WithClock(reorder.ClockFunc(func() time.Time { return fixedNow })),
			reorder.WithLogger(logger),
		),
		Gateway: gw,
		Bus:     comms.NewInMemoryBus(10),
		Logger:  logger,
		Version: "test",
		StartAt: time.Now(),
	}
	h.RegisterRoutes(mux)
	return h, mux
}

func post(t *testing.T, mux http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func decodeResult(t *testing.T, rr *httptest.ResponseRecorder) task.List {
	t.Helper()
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var res api.ReorderResult
	if err := json.NewDecoder(rr.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return res.ReorderedTasks
}

const threeTasks = `[
	{"id":"t1","text":"Buy milk","completed":false,"priorityScore":0,"createdAt":1},
	{"id":"t2","text":"Pay rent","completed":false,"priorityScore":0,"createdAt":2},
	{"id":"t3","text":"Email Bob","completed":true,"priorityScore":0,"createdAt":3}
]`

// --- Tests ---

func TestReorderTasks_ConcreteScenario(t *testing.T) {
	gw := &fakeGateway{reply: "```json\n[\"Pay rent\",\"Call the bank\",\"Email Bob\",\"Buy milk\"]\n```"}
	_, mux := newHandlers(t, gw)

	rr := post(t, mux, "/api/reorder-tasks", `{"tasks":`+threeTasks+`,"newTaskText":"Call the bank"}`)
	got := decodeResult(t, rr)

	want := []string{"t2", "new-1", "t3", "t1"}
	if strings.Join(got.IDs(), ",") != strings.Join(want, ",") {
		t.Fatalf("ids = %v, want %v", got.IDs(), want)
	}
	nt := got[1]
	if nt.Text != "Call the bank" || nt.Completed || nt.PriorityScore != 0 || nt.CreatedAt != fixedNow.UnixMilli() {
		t.Errorf("new task = %+v", nt)
	}
	if !got[2].Completed {
		t.Error("existing task fields not preserved")
	}
	if gw.texts[0] != "Call the bank" || len(gw.prompt[0]) != 3 {
		t.Errorf("gateway received %v %q", gw.prompt[0].IDs(), gw.texts[0])
	}
}

func TestReorderTasks_UnparsableReply(t *testing.T) {
	_, mux := newHandlers(t, &fakeGateway{reply: "Sure! Here is the list."})

	got := decodeResult(t, post(t, mux, "/api/reorder-tasks", `{"tasks":`+threeTasks+`,"newTaskText":"X"}`))
	if strings.Join(got.IDs(), ",") != "t1,t2,t3,new-1" || got[3].Text != "X" {
		t.Errorf("got %v", got.IDs())
	}
}

func TestReorderTasks_EmptyList(t *testing.T) {
	_, mux := newHandlers(t, &fakeGateway{reply: `["Only task"]`})

	got := decodeResult(t, post(t, mux, "/api/reorder-tasks", `{"tasks":[],"newTaskText":"Only task"}`))
	if len(got) != 1 || got[0].Text != "Only task" {
		t.Errorf("got %+v", got)
	}
}

func TestReorderTasks_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{"tasks":`},
		{"missing tasks", `{"newTaskText":"x"}`},
		{"tasks not a list", `{"tasks":"nope","newTaskText":"x"}`},
		{"newTaskText not a string", `{"tasks":[],"newTaskText":5}`},
		{"missing newTaskText", `{"tasks":[]}`},
		{"task without id", `{"tasks":[{"text":"a"}],"newTaskText":"x"}`},
		{"task with numeric text", `{"tasks":[{"id":"a","text":1}],"newTaskText":"x"}`},
		{"duplicate ids", `{"tasks":[{"id":"a","text":"a"},{"id":"a","text":"b"}],"newTaskText":"x"}`},
		{"empty task text", `{"tasks":[{"id":"a","text":"  "}],"newTaskText":"x"}`},
		{"blank newTaskText", `{"tasks":[],"newTaskText":"   "}`},
		{"fractional createdAt", `{"tasks":[{"id":"a","text":"a","createdAt":1.5}],"newTaskText":"x"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &fakeGateway{reply: "[]"}
			_, mux := newHandlers(t, gw)
			rr := post(t, mux, "/api/reorder-tasks", tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
			}
			var resp api.ErrorResponse
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if !strings.HasPrefix(resp.Error, api.ErrInvalidInput.Error()) {
				t.Errorf("error = %q", resp.Error)
			}
			if gw.calls() != 0 {
				t.Error("gateway called for an invalid request")
			}
		})
	}
}

func TestReorderTasks_UpstreamFailure(t *testing.T) {
	cause := fmt.Errorf("%w: fake: connection refused", gateway.ErrUpstreamUnreachable)
	_, mux := newHandlers(t, &fakeGateway{err: cause})

	rr := post(t, mux, "/api/reorder-tasks", `{"tasks":`+threeTasks+`,"newTaskText":"X"}`)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	var resp api.ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error == "" || !strings.Contains(resp.Details, "connection refused") {
		t.Errorf("resp = %+v", resp)
	}
}

func TestReorderTasks_UpstreamFailureWithFallback(t *testing.T) {
	h, mux := newHandlers(t, &fakeGateway{err: errors.New("timeout")})
	h.FallbackOnUpstreamError = true

	got := decodeResult(t, post(t, mux, "/api/reorder-tasks", `{"tasks":`+threeTasks+`,"newTaskText":"X"}`))
	if strings.Join(got.IDs(), ",") != "t1,t2,t3,new-1" {
		t.Errorf("got %v", got.IDs())
	}

	hist, err := h.Bus.History(comms.KindReorder, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(hist) != 1 {
		t.Fatalf("history = %d outcomes, want 1", len(hist))
	}
	o := hist[0]
	if o.UpstreamError == "" || !strings.Contains(o.UpstreamError, "timeout") {
		t.Errorf("UpstreamError = %q", o.UpstreamError)
	}
	if !o.Report.Fallback || o.Report.ParseError != "" {
		t.Errorf("report = %+v, want fallback without a parse error", o.Report)
	}
}

func TestRerankTasks(t *testing.T) {
	_, mux := newHandlers(t, &fakeGateway{reply: `["Email Bob","Buy milk","Pay rent"]`})

	got := decodeResult(t, post(t, mux, "/api/rerank-tasks", `{"tasks":`+threeTasks+`}`))
	if strings.Join(got.IDs(), ",") != "t3,t1,t2" {
		t.Errorf("got %v", got.IDs())
	}
}

func TestRerankTasks_ShortListSkipsGateway(t *testing.T) {
	gw := &fakeGateway{reply: "[]"}
	_, mux := newHandlers(t, gw)

	got := decodeResult(t, post(t, mux, "/api/rerank-tasks", `{"tasks":[]}`))
	if got == nil || len(got) != 0 {
		t.Errorf("got %v, want empty list", got)
	}
	if gw.calls() != 0 {
		t.Error("gateway called for an empty list")
	}
}

func TestRerankTasks_UpstreamFailure(t *testing.T) {
	h, mux := newHandlers(t, &fakeGateway{err: errors.New("down")})

	if rr := post(t, mux, "/api/rerank-tasks", `{"tasks":`+threeTasks+`}`); rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}

	h.FallbackOnUpstreamError = true
	got := decodeResult(t, post(t, mux, "/api/rerank-tasks", `{"tasks":`+threeTasks+`}`))
	if strings.Join(got.IDs(), ",") != "t1,t2,t3" {
		t.Errorf("got %v, want unchanged order", got.IDs())
	}
}

func TestSuggestInsertion(t *testing.T) {
	_, mux := newHandlers(t, &fakeGateway{})

	body := `{"task":{"text":"Urgent: file taxes"},"tasks":[
		{"id":"a","text":"Schedule meeting"},
		{"id":"b","text":"Read a book"}
	]}`
	rr := post(t, mux, "/api/suggest-insertion", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var res api.SuggestResult
	if err := json.NewDecoder(rr.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Index != 0 || res.Score != 3 {
		t.Errorf("got %+v, want index 0 score 3", res)
	}

	if rr := post(t, mux, "/api/suggest-insertion", `{"tasks":[]}`); rr.Code != http.StatusBadRequest {
		t.Errorf("missing task: expected 400, got %d", rr.Code)
	}
}

func TestListReorders(t *testing.T) {
	_, mux := newHandlers(t, &fakeGateway{reply: `["nonsense"]`})

	for i := 0; i < 3; i++ {
		post(t, mux, "/api/reorder-tasks", `{"tasks":`+threeTasks+`,"newTaskText":"X"}`)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/reorders?limit=2", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var outcomes []comms.Outcome
	if err := json.NewDecoder(rr.Body).Decode(&outcomes); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(outcomes))
	}
	o := outcomes[1]
	if o.Kind != comms.KindReorder || o.Provider != "fake" || o.TaskCount != 3 {
		t.Errorf("outcome = %+v", o)
	}
	if len(o.Report.Unrecognized) != 1 || len(o.Report.Omitted) != 3 {
		t.Errorf("report = %+v", o.Report)
	}
}

func TestListReorders_Empty(t *testing.T) {
	_, mux := newHandlers(t, &fakeGateway{})
	req := httptest.NewRequest(http.MethodGet, "/api/reorders", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Errorf("body = %q, want empty array", rr.Body.String())
	}
}

func TestStatusEndpoint(t *testing.T) {
	_, mux := newHandlers(t, &fakeGateway{})
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp api.StatusResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" || resp.Provider != "fake" || resp.Version != "test" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestVersionEndpoint(t *testing.T) {
	_, mux := newHandlers(t, &fakeGateway{})
	req := httptest.NewRequest(http.MethodGet, "/api/version", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["version"] != "test" {
		t.Errorf("version = %q", resp["version"])
	}
}

func TestReorderTasks_WrongMethod(t *testing.T) {
	_, mux := newHandlers(t, &fakeGateway{})
	req := httptest.NewRequest(http.MethodGet, "/api/reorder-tasks", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rr.Code)
	}
}
