// Package api exposes the tool router over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/triage-ai/palisade/services/tool_router/internal/auth"
	"github.com/triage-ai/palisade/services/tool_router/internal/engine"
	"github.com/triage-ai/palisade/services/tool_router/internal/storage"
)

// Dependencies holds shared state injected into all HTTP handlers.
type Dependencies struct {
	Router   *engine.Router
	Auth     auth.Authenticator       // nil disables authentication
	Archive  *storage.SnapshotArchive // nil if Postgres unavailable
	Gatherer prometheus.Gatherer      // nil hides /metrics
	Metrics  prometheus.Registerer    // nil skips HTTP metrics
	Logger   *zap.Logger
	Timeout  time.Duration // per-request execution timeout, 0 for none
}

// NewRouter builds the HTTP mux with all routes wired up.
func NewRouter(deps *Dependencies) http.Handler {
	mux := http.NewServeMux()

	// Routing
	mux.HandleFunc("POST /v1/suggestions", deps.authMiddleware(auth.RoleViewer, deps.handleSuggest))
	mux.HandleFunc("GET /v1/tools", deps.authMiddleware(auth.RoleViewer, deps.handleListTools))
	mux.HandleFunc("GET /v1/tools/{tool_id}", deps.authMiddleware(auth.RoleViewer, deps.handleGetTool))
	mux.HandleFunc("POST /v1/tools/{tool_id}/execute", deps.authMiddleware(auth.RoleOperator, deps.handleExecute))
	mux.HandleFunc("DELETE /v1/tools/{tool_id}", deps.authMiddleware(auth.RoleAdmin, deps.handleUnregister))

	// Analytics & persistence
	mux.HandleFunc("GET /v1/analytics", deps.authMiddleware(auth.RoleViewer, deps.handleAnalytics))
	mux.HandleFunc("GET /v1/export", deps.authMiddleware(auth.RoleViewer, deps.handleExport))
	mux.HandleFunc("POST /v1/reset", deps.authMiddleware(auth.RoleAdmin, deps.handleReset))
	mux.HandleFunc("POST /v1/snapshots", deps.authMiddleware(auth.RoleAdmin, deps.handleCreateSnapshot))
	mux.HandleFunc("GET /v1/snapshots/latest", deps.authMiddleware(auth.RoleViewer, deps.handleLatestSnapshot))

	// Health check
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if deps.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	var h http.Handler = requestLogging(mux, deps.Logger)
	if deps.Metrics != nil {
		h = requestMetrics(h, deps.Metrics)
	}
	return corsMiddleware(h)
}
