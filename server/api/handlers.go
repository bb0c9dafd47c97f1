package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/GoCodeAlone/ranked/comms"
	"github.com/GoCodeAlone/ranked/priority"
	"github.com/GoCodeAlone/ranked/reorder"
	"github.com/GoCodeAlone/ranked/task"
)

// Handlers bundles all REST API handler dependencies.
type Handlers struct {
	Engine  *reorder.Engine
	Gateway Gateway
	Bus     comms.Bus
	Logger  *slog.Logger
	Version string
	StartAt time.Time

	// FallbackOnUpstreamError answers a gateway failure with the appended list
	// instead of a 500.
	FallbackOnUpstreamError bool
}

// RegisterRoutes registers all API routes on the given mux.
func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/reorder-tasks", h.reorderTasks)
	mux.HandleFunc("POST /api/rerank-tasks", h.rerankTasks)
	mux.HandleFunc("POST /api/suggest-insertion", h.suggestInsertion)

	mux.HandleFunc("GET /api/reorders", h.listReorders)

	mux.HandleFunc("GET /api/status", h.status)
	mux.HandleFunc("GET /api/version", h.version)
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// --- Reorder handlers ---

func (h *Handlers) reorderTasks(w http.ResponseWriter, r *http.Request) {
	var req ReorderRequest
	if err := decodeRequest(w, r, reorderSchema, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Tasks.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %v", ErrInvalidInput, err).Error())
		return
	}
	if strings.TrimSpace(req.NewTaskText) == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: newTaskText is blank", ErrInvalidInput).Error())
		return
	}

	start := time.Now()
	outcome := &comms.Outcome{
		Kind:        comms.KindReorder,
		TaskCount:   len(req.Tasks),
		NewTaskText: req.NewTaskText,
	}
	raw, err := h.Gateway.RequestReorder(r.Context(), req.Tasks, req.NewTaskText)
	if err != nil {
		h.Logger.Error("reorder request failed", slog.Any("err", err), slog.Int("tasks", len(req.Tasks)))
		outcome.UpstreamError = err.Error()
		if !h.FallbackOnUpstreamError {
			h.publish(r, outcome, start)
			writeJSON(w, http.StatusInternalServerError, ErrorResponse{
				Error:   "Failed to reorder tasks",
				Details: err.Error(),
			})
			return
		}
		var out task.List
		out, outcome.Report = h.Engine.Fallback(req.Tasks, req.NewTaskText, nil)
		h.publish(r, outcome, start)
		writeJSON(w, http.StatusOK, ReorderResult{ReorderedTasks: out})
		return
	}

	var out task.List
	out, outcome.Report = h.Engine.Reconcile(req.Tasks, req.NewTaskText, raw)
	h.publish(r, outcome, start)
	writeJSON(w, http.StatusOK, ReorderResult{ReorderedTasks: out})
}

func (h *Handlers) rerankTasks(w http.ResponseWriter, r *http.Request) {
	var req RerankRequest
	if err := decodeRequest(w, r, rerankSchema, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Tasks.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %v", ErrInvalidInput, err).Error())
		return
	}
	if len(req.Tasks) < 2 {
		writeJSON(w, http.StatusOK, ReorderResult{ReorderedTasks: nonNil(req.Tasks)})
		return
	}

	start := time.Now()
	outcome := &comms.Outcome{Kind: comms.KindRerank, TaskCount: len(req.Tasks)}
	raw, err := h.Gateway.RequestRerank(r.Context(), req.Tasks)
	if err != nil {
		h.Logger.Error("rerank request failed", slog.Any("err", err), slog.Int("tasks", len(req.Tasks)))
		outcome.UpstreamError = err.Error()
		outcome.Report = reorder.Report{Fallback: true}
		h.publish(r, outcome, start)
		if !h.FallbackOnUpstreamError {
			writeJSON(w, http.StatusInternalServerError, ErrorResponse{
				Error:   "Failed to rerank tasks",
				Details: err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, ReorderResult{ReorderedTasks: req.Tasks})
		return
	}

	var out task.List
	out, outcome.Report = h.Engine.Reorder(req.Tasks, raw)
	h.publish(r, outcome, start)
	writeJSON(w, http.StatusOK, ReorderResult{ReorderedTasks: out})
}

func (h *Handlers) suggestInsertion(w http.ResponseWriter, r *http.Request) {
	var req SuggestRequest
	if err := decodeRequest(w, r, suggestSchema, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, SuggestResult{
		Index: priority.SuggestInsertionPoint(req.Task, req.Tasks),
		Score: priority.ScoreText(req.Task.Text),
	})
}

// publish stamps o and hands it to the bus. Bus failures are logged only.
func (h *Handlers) publish(r *http.Request, o *comms.Outcome, start time.Time) {
	o.ID = uuid.NewString()
	o.Provider = h.Gateway.ProviderName()
	o.ElapsedMS = time.Since(start).Milliseconds()
	o.Timestamp = time.Now().UTC()

	h.Logger.Info("reorder outcome",
		slog.String("kind", string(o.Kind)),
		slog.Int("tasks", o.TaskCount),
		slog.Bool("fallback", o.Report.Fallback),
		slog.Int("unrecognized", len(o.Report.Unrecognized)),
		slog.Int("omitted", len(o.Report.Omitted)),
		slog.Int64("elapsed_ms", o.ElapsedMS),
	)
	if h.Bus == nil {
		return
	}
	if err := h.Bus.Publish(r.Context(), o); err != nil {
		h.Logger.Warn("publish outcome", slog.Any("err", err))
	}
}

// --- Outcome history ---

func (h *Handlers) listReorders(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil {
			limit = n
		}
	}
	kind := comms.Kind(r.URL.Query().Get("kind"))

	var outcomes []*comms.Outcome
	if h.Bus != nil {
		var err error
		outcomes, err = h.Bus.History(kind, limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	if outcomes == nil {
		outcomes = []*comms.Outcome{}
	}
	writeJSON(w, http.StatusOK, outcomes)
}

// --- Status / version ---

func (h *Handlers) status(w http.ResponseWriter, _ *http.Request) {
	resp := StatusResponse{
		Status:   "ok",
		Version:  h.Version,
		Provider: h.Gateway.ProviderName(),
	}
	if !h.StartAt.IsZero() {
		resp.UptimeSeconds = int64(time.Since(h.StartAt).Seconds())
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) version(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version": h.Version,
	})
}

func nonNil(l task.List) task.List {
	if l == nil {
		return task.List{}
	}
	return l
}
