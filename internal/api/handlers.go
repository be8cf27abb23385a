package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/triage-ai/palisade/services/tool_router/internal/engine"
	"github.com/triage-ai/palisade/services/tool_router/internal/storage"
	"github.com/triage-ai/palisade/services/tool_router/internal/tool"
)

// --- Suggestions ---

func (d *Dependencies) handleSuggest(w http.ResponseWriter, r *http.Request) {
	var req SuggestReq
	if err := readJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid request body: " + err.Error()})
		return
	}

	start := time.Now()
	resp, err := d.Router.Suggest(r.Context(), engine.SuggestRequest{
		Input:        req.Input,
		Conversation: req.Conversation,
		Preferences:  req.Preferences,
	})
	if err != nil {
		d.Logger.Warn("suggest failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, ErrorResp{Detail: err.Error()})
		return
	}

	out := SuggestResp{
		RequestID:   resp.RequestID,
		Intent:      resp.Intent,
		Analysis:    resp.Analysis,
		Suggestions: make([]SuggestionResp, 0, len(resp.Suggestions)),
		LatencyMs:   latencyMs(time.Since(start)),
	}
	for _, s := range resp.Suggestions {
		sr := SuggestionResp{
			ToolID:     s.ToolID,
			Reason:     s.Reason,
			Confidence: s.Confidence,
			Priority:   s.Priority,
		}
		if s.Tool != nil {
			sr.ToolID = s.Tool.ID
			sr.ToolName = s.Tool.Name
			sr.Category = s.Tool.Category
		}
		out.Suggestions = append(out.Suggestions, sr)
	}
	writeJSON(w, http.StatusOK, out)
}

// --- Tools ---

func (d *Dependencies) toolResp(t *tool.Tool) ToolResp {
	m, _ := d.Router.Metrics(t.ID)
	return ToolResp{Descriptor: t.Describe(), Metrics: m}
}

func (d *Dependencies) handleListTools(w http.ResponseWriter, _ *http.Request) {
	tools := d.Router.Tools()
	out := ToolListResp{Tools: make([]ToolResp, 0, len(tools)), Total: len(tools)}
	for _, t := range tools {
		out.Tools = append(out.Tools, d.toolResp(t))
	}
	writeJSON(w, http.StatusOK, out)
}

func (d *Dependencies) handleGetTool(w http.ResponseWriter, r *http.Request) {
	t, ok := d.Router.Lookup(r.PathValue("tool_id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, ErrorResp{Detail: "Tool not found"})
		return
	}
	writeJSON(w, http.StatusOK, d.toolResp(t))
}

func (d *Dependencies) handleUnregister(w http.ResponseWriter, r *http.Request) {
	if !d.Router.Unregister(r.PathValue("tool_id")) {
		writeJSON(w, http.StatusNotFound, ErrorResp{Detail: "Tool not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (d *Dependencies) handleExecute(w http.ResponseWriter, r *http.Request) {
	toolID := r.PathValue("tool_id")
	if _, ok := d.Router.Lookup(toolID); !ok {
		writeJSON(w, http.StatusNotFound, ErrorResp{Detail: "Tool not found"})
		return
	}

	var req ExecuteReq
	if err := readJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid request body: " + err.Error()})
		return
	}

	ctx := r.Context()
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	exec, err := d.Router.Execute(ctx, toolID, req.params(), req.Conversation)
	if err != nil {
		writeError(w, err)
		return
	}

	res := exec.Result
	writeJSON(w, http.StatusOK, ExecuteResp{
		InvocationID: exec.InvocationID,
		ToolID:       exec.ToolID,
		Strategy:     exec.Strategy,
		Success:      res.Success,
		Output:       res.Output,
		Confidence:   res.Confidence,
		Metadata:     res.Metadata,
		LatencyMs:    latencyMs(exec.Elapsed),
	})
}

// writeError maps a router error onto an HTTP status by its kind.
func writeError(w http.ResponseWriter, err error) {
	kind := tool.KindOf(err)
	status := http.StatusInternalServerError
	switch {
	case errors.Is(kind, tool.ErrToolNotAvailable),
		errors.Is(kind, tool.ErrPerformanceThresholdNotMet):
		status = http.StatusServiceUnavailable
	case errors.Is(kind, tool.ErrContextNotSuitable):
		status = http.StatusUnprocessableEntity
	case errors.Is(kind, tool.ErrInvalidParameters):
		status = http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}

	resp := ErrorResp{Detail: err.Error()}
	if kind != nil {
		resp.Kind = kind.Error()
	}
	writeJSON(w, status, resp)
}

// --- Analytics ---

func (d *Dependencies) handleAnalytics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, d.Router.Analytics())
}

func (d *Dependencies) handleExport(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, d.Router.Export())
}

func (d *Dependencies) handleReset(w http.ResponseWriter, _ *http.Request) {
	d.Router.Reset()
	w.WriteHeader(http.StatusNoContent)
}

// --- Snapshots ---

func (d *Dependencies) handleCreateSnapshot(w http.ResponseWriter, r *http.Request) {
	if d.Archive == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResp{Detail: "Snapshot archive not configured"})
		return
	}

	export := d.Router.Export()
	id, err := d.Archive.Save(r.Context(), export)
	if err != nil {
		d.Logger.Error("snapshot save failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to save snapshot"})
		return
	}
	writeJSON(w, http.StatusCreated, SnapshotResp{ID: id, TakenAt: export.ExportedAt})
}

func (d *Dependencies) handleLatestSnapshot(w http.ResponseWriter, r *http.Request) {
	if d.Archive == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResp{Detail: "Snapshot archive not configured"})
		return
	}

	snap, err := d.Archive.Latest(r.Context())
	if errors.Is(err, storage.ErrNoSnapshot) {
		writeJSON(w, http.StatusNotFound, ErrorResp{Detail: "No snapshot stored"})
		return
	}
	if err != nil {
		d.Logger.Error("snapshot load failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to load snapshot"})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
