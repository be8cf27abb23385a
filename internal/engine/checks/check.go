// Package checks holds the validation gate run before any execution
// strategy. Checks run in order and the first one that triggers decides
// the reported error kind.
package checks

import (
	"context"

	"github.com/triage-ai/palisade/services/tool_router/internal/config"
	"github.com/triage-ai/palisade/services/tool_router/internal/performance"
	"github.com/triage-ai/palisade/services/tool_router/internal/tool"
)

// Check is the interface every gate check must implement.
// Implementations must not invoke the tool handler's Execute.
type Check interface {
	// Name returns the check's unique identifier.
	Name() string

	// Kind returns the sentinel error reported when the check triggers.
	Kind() error

	// Evaluate runs the check against the request.
	Evaluate(ctx context.Context, req *Request) (*Result, error)
}

// Request contains everything a check may look at.
type Request struct {
	ToolID       string
	Tool         *tool.Tool // nil for unregistered ids
	Params       tool.Parameters
	Conversation tool.ConversationContext
	Metrics      performance.Metrics
	Scoring      config.Scoring
}

// Result is the outcome of a single check.
type Result struct {
	Triggered bool
	Details   string
}

func pass() *Result {
	return &Result{Triggered: false}
}

func fail(details string) *Result {
	return &Result{Triggered: true, Details: details}
}
