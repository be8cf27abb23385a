package storage

import "time"

// EventWriter is the interface for writing router events.
// Write() must NEVER block the caller.
type EventWriter interface {
	Write(event *RouterEvent)
	Close()
}

// RouterEvent is one router state transition to be persisted. Raw input is
// never stored; InputDigest identifies it.
type RouterEvent struct {
	EventID           string
	EventType         string // "tool_registered", "execution_completed", ...
	Timestamp         time.Time
	ToolID            string
	InvocationID      string
	InputDigest       string
	Workspace         string
	Strategy          string
	Success           bool
	LatencyMs         float32
	Confidence        float32
	Error             string
	Intent            string
	SuggestedTools    []string
	TotalExecutions   uint64
	SuccessRate       float32
	AvailabilityScore float32
}
