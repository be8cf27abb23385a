package engine

import (
	"sync"
	"time"

	"github.com/triage-ai/palisade/services/tool_router/internal/performance"
	"github.com/triage-ai/palisade/services/tool_router/internal/tool"
)

// EventType names a router state transition.
type EventType string

const (
	EventToolRegistered       EventType = "tool_registered"
	EventToolUnregistered     EventType = "tool_unregistered"
	EventSuggestionsGenerated EventType = "suggestions_generated"
	EventExecutionCompleted   EventType = "execution_completed"
	EventStateReset           EventType = "state_reset"
)

// Event describes one completed state transition. Events are values; an
// observer may keep them without copying.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	ToolID       string             `json:"tool_id,omitempty"`
	InvocationID string             `json:"invocation_id,omitempty"`
	InputDigest  string             `json:"input_digest,omitempty"`
	Workspace    tool.WorkspaceType `json:"workspace_type,omitempty"`

	// execution_completed
	Strategy   tool.Strategy       `json:"strategy,omitempty"`
	Success    bool                `json:"success"`
	Elapsed    time.Duration       `json:"elapsed,omitempty"`
	Confidence float64             `json:"confidence,omitempty"`
	Error      string              `json:"error,omitempty"`
	Metrics    performance.Metrics `json:"metrics"`

	// suggestions_generated
	Intent         string   `json:"intent,omitempty"`
	SuggestedTools []string `json:"suggested_tools,omitempty"`
}

// Observer is notified after every state transition. Notify runs on the
// goroutine that caused the transition and must not block.
type Observer interface {
	Notify(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Notify(e Event) { f(e) }

type subscription struct {
	id int
	o  Observer
}

// observerList notifies subscribers in subscription order.
type observerList struct {
	mu     sync.RWMutex
	nextID int
	subs   []subscription
}

func (l *observerList) add(o Observer) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := l.nextID
	l.nextID++
	l.subs = append(l.subs, subscription{id: id, o: o})
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		for i, s := range l.subs {
			if s.id == id {
				l.subs = append(l.subs[:i:i], l.subs[i+1:]...)
				return
			}
		}
	}
}

func (l *observerList) notify(e Event) {
	l.mu.RLock()
	subs := l.subs
	l.mu.RUnlock()
	for _, s := range subs {
		s.o.Notify(e)
	}
}
