package api

import (
	"time"

	"github.com/triage-ai/palisade/services/tool_router/internal/analysis"
	"github.com/triage-ai/palisade/services/tool_router/internal/performance"
	"github.com/triage-ai/palisade/services/tool_router/internal/tool"
)

// --- POST /v1/suggestions ---

// SuggestReq is the JSON body for POST /v1/suggestions.
type SuggestReq struct {
	Input        string                   `json:"input"`
	Conversation tool.ConversationContext `json:"conversation"`
	Preferences  *tool.Preferences        `json:"preferences,omitempty"`
}

// SuggestionResp is one ranked suggestion. ToolID is empty for the
// fallback suggestion.
type SuggestionResp struct {
	ToolID     string        `json:"tool_id,omitempty"`
	ToolName   string        `json:"tool_name,omitempty"`
	Category   tool.Category `json:"category,omitempty"`
	Reason     string        `json:"reason"`
	Confidence float64       `json:"confidence"`
	Priority   tool.Priority `json:"priority"`
}

// SuggestResp is the response of POST /v1/suggestions.
type SuggestResp struct {
	RequestID   string                   `json:"request_id"`
	Intent      analysis.Intent          `json:"intent"`
	Analysis    analysis.ContextAnalysis `json:"analysis"`
	Suggestions []SuggestionResp         `json:"suggestions"`
	LatencyMs   float64                  `json:"latency_ms"`
}

// --- POST /v1/tools/{tool_id}/execute ---

// ExecuteReq is the JSON body for POST /v1/tools/{tool_id}/execute.
type ExecuteReq struct {
	Input                string                   `json:"input"`
	Values               map[string]any           `json:"values,omitempty"`
	RequiresHighAccuracy bool                     `json:"requires_high_accuracy,omitempty"`
	AllowParallel        bool                     `json:"allow_parallel,omitempty"`
	PreferCascading      bool                     `json:"prefer_cascading,omitempty"`
	Conversation         tool.ConversationContext `json:"conversation"`
}

func (r ExecuteReq) params() tool.Parameters {
	return tool.Parameters{
		Input:                r.Input,
		Values:               r.Values,
		RequiresHighAccuracy: r.RequiresHighAccuracy,
		AllowParallel:        r.AllowParallel,
		PreferCascading:      r.PreferCascading,
	}
}

// ExecuteResp is the response of a completed execution.
type ExecuteResp struct {
	InvocationID string        `json:"invocation_id"`
	ToolID       string        `json:"tool_id"`
	Strategy     tool.Strategy `json:"strategy"`
	Success      bool          `json:"success"`
	Output       string        `json:"output"`
	Confidence   float64       `json:"confidence"`
	Metadata     tool.Metadata `json:"metadata,omitempty"`
	LatencyMs    float64       `json:"latency_ms"`
}

// --- GET /v1/tools ---

// ToolResp is a registered tool with its current performance record.
type ToolResp struct {
	tool.Descriptor
	Metrics performance.Metrics `json:"metrics"`
}

// ToolListResp is the response of GET /v1/tools.
type ToolListResp struct {
	Tools []ToolResp `json:"tools"`
	Total int        `json:"total"`
}

// --- Snapshots ---

// SnapshotResp is the response of POST /v1/snapshots.
type SnapshotResp struct {
	ID      string    `json:"id"`
	TakenAt time.Time `json:"taken_at"`
}

// ErrorResp is a standard error response body.
type ErrorResp struct {
	Detail string `json:"detail"`
	Kind   string `json:"kind,omitempty"`
}

func latencyMs(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
