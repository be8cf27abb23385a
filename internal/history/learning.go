package history

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/triage-ai/palisade/services/tool_router/internal/analysis"
	"github.com/triage-ai/palisade/services/tool_router/internal/tool"
)

// ContextRecord captures one suggestion request and what was offered.
type ContextRecord struct {
	ID             string                   `json:"id"`
	Timestamp      time.Time                `json:"timestamp"`
	InputDigest    string                   `json:"input_digest"`
	Workspace      tool.WorkspaceType       `json:"workspace_type"`
	Analysis       analysis.ContextAnalysis `json:"analysis"`
	Intent         analysis.Intent          `json:"intent"`
	SuggestedTools []string                 `json:"suggested_tools"`
}

// ExecutionRecord captures the outcome of one invocation that passed the
// validation gate.
type ExecutionRecord struct {
	InvocationID string        `json:"invocation_id"`
	Timestamp    time.Time     `json:"timestamp"`
	ToolID       string        `json:"tool_id"`
	Strategy     tool.Strategy `json:"strategy"`
	Elapsed      time.Duration `json:"elapsed"`
	Success      bool          `json:"success"`
	Confidence   float64       `json:"confidence"`
	Error        string        `json:"error,omitempty"`
}

// NewContextRecord builds a learning record for a suggestion request.
func NewContextRecord(input string, conv tool.ConversationContext, ca analysis.ContextAnalysis, intent analysis.Intent, suggestions []tool.Suggestion, at time.Time) ContextRecord {
	ids := make([]string, 0, len(suggestions))
	for _, s := range suggestions {
		if s.ToolID != "" {
			ids = append(ids, s.ToolID)
		}
	}
	return ContextRecord{
		ID:             uuid.New().String(),
		Timestamp:      at,
		InputDigest:    Digest(input),
		Workspace:      conv.Workspace.Normalize(),
		Analysis:       ca,
		Intent:         intent,
		SuggestedTools: ids,
	}
}

// LearningStore is an unbounded append-only log of context and execution
// records. It is only read for export.
type LearningStore struct {
	mu         sync.RWMutex
	contexts   []ContextRecord
	executions []ExecutionRecord
}

// NewLearningStore creates an empty store.
func NewLearningStore() *LearningStore {
	return &LearningStore{}
}

func (s *LearningStore) RecordContext(rec ContextRecord) {
	s.mu.Lock()
	s.contexts = append(s.contexts, rec)
	s.mu.Unlock()
}

func (s *LearningStore) RecordExecution(rec ExecutionRecord) {
	s.mu.Lock()
	s.executions = append(s.executions, rec)
	s.mu.Unlock()
}

// Contexts returns a copy of the context records in insertion order.
func (s *LearningStore) Contexts() []ContextRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ContextRecord(nil), s.contexts...)
}

// Executions returns a copy of the execution records in insertion order.
func (s *LearningStore) Executions() []ExecutionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ExecutionRecord(nil), s.executions...)
}

// Reset drops every record.
func (s *LearningStore) Reset() {
	s.mu.Lock()
	s.contexts = nil
	s.executions = nil
	s.mu.Unlock()
}
