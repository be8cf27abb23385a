package tool

import "time"

// ContextSnapshot is the part of a request kept in the usage log.
type ContextSnapshot struct {
	Input        string        `json:"input"`
	InputDigest  string        `json:"input_digest"`
	Workspace    WorkspaceType `json:"workspace_type"`
	MessageCount int           `json:"message_count"`
}

// UsageRecord logs one invocation start. Records are never modified.
type UsageRecord struct {
	InvocationID string           `json:"invocation_id"`
	ToolID       string           `json:"tool_id"`
	ToolName     string           `json:"tool_name"`
	Context      ContextSnapshot  `json:"context"`
	Timestamp    time.Time        `json:"timestamp"`
	Temporal     *TemporalContext `json:"temporal,omitempty"`
}

// ToolContext is built fresh for every suggestion request.
type ToolContext struct {
	Input          string
	Conversation   ConversationContext
	Temporal       *TemporalContext
	Preferences    *Preferences
	AvailableTools []*Tool
	System         SystemMetrics
	RecentUsage    []UsageRecord
}
