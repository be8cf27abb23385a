package storage

import (
	"github.com/triage-ai/palisade/services/tool_router/internal/engine"
)

// Observer returns a router observer that forwards every event to w.
func Observer(w EventWriter) engine.Observer {
	return engine.ObserverFunc(func(e engine.Event) {
		w.Write(FromEngineEvent(e))
	})
}

// FromEngineEvent flattens a router event into its persisted form.
func FromEngineEvent(e engine.Event) *RouterEvent {
	ev := &RouterEvent{
		EventID:        e.ID,
		EventType:      string(e.Type),
		Timestamp:      e.Timestamp,
		ToolID:         e.ToolID,
		InvocationID:   e.InvocationID,
		InputDigest:    e.InputDigest,
		Workspace:      string(e.Workspace),
		Strategy:       string(e.Strategy),
		Success:        e.Success,
		LatencyMs:      float32(e.Elapsed.Microseconds()) / 1000,
		Confidence:     float32(e.Confidence),
		Error:          e.Error,
		Intent:         e.Intent,
		SuggestedTools: e.SuggestedTools,
	}
	if e.Type == engine.EventExecutionCompleted {
		ev.TotalExecutions = uint64(e.Metrics.TotalExecutions)
		ev.SuccessRate = float32(e.Metrics.SuccessRate)
		ev.AvailabilityScore = float32(e.Metrics.AvailabilityScore)
	}
	return ev
}
