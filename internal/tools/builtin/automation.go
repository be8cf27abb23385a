package builtin

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/triage-ai/palisade/services/tool_router/internal/tool"
	"github.com/triage-ai/palisade/services/tool_router/internal/validation"
)

const TaskAutomatorID = "task-automator"

var (
	stepSeparator   = regexp.MustCompile(`(?i)\n+|;\s*|,?\s+\bthen\b\s+|,?\s+\band then\b\s+`)
	schedulePattern = regexp.MustCompile(`(?i)\b(every\s+(?:day|week|month|hour|morning|evening|monday|tuesday|wednesday|thursday|friday|saturday|sunday)|daily|weekly|monthly|hourly|at\s+\d{1,2}(?::\d{2})?\s*(?:am|pm)?)\b`)
)

// TaskAutomator turns a request into an ordered plan of steps and detects
// any recurring schedule.
type TaskAutomator struct {
	schemaParams
}

// NewTaskAutomator returns the task automator tool.
func NewTaskAutomator(v *validation.SchemaValidator) *tool.Tool {
	h := &TaskAutomator{schemaParams{
		key: TaskAutomatorID,
		schema: inputSchema(map[string]any{
			"dry_run": map[string]any{"type": "boolean"},
		}),
		validator: v,
	}}
	return &tool.Tool{
		ID:              TaskAutomatorID,
		Name:            "Task Automator",
		Description:     "Breaks a request into scheduled, ordered steps",
		Category:        tool.CategoryAutomation,
		Capabilities:    []tool.Capability{tool.CapabilitySchedule, tool.CapabilityTransform},
		RequiredContext: []tool.Requirement{tool.RequireTextInput},
		Complexity:      tool.ComplexityLow,
		Handler:         h,
	}
}

func (a *TaskAutomator) Execute(ctx context.Context, p tool.Parameters, _ tool.ConversationContext) (*tool.ExecutionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	schedule := schedulePattern.FindString(p.Input)

	var steps []string
	for _, s := range stepSeparator.Split(p.Input, -1) {
		s = strings.TrimSpace(schedulePattern.ReplaceAllString(s, ""))
		s = strings.Trim(s, " ,.")
		if s != "" {
			steps = append(steps, s)
		}
	}

	var b strings.Builder
	for i, s := range steps {
		fmt.Fprintf(&b, "%d. %s\n", i+1, s)
	}
	if schedule != "" {
		fmt.Fprintf(&b, "schedule: %s\n", strings.ToLower(schedule))
	}

	dryRun, _ := p.Values["dry_run"].(bool)
	confidence := 0.5
	if len(steps) > 1 {
		confidence = 0.75
	}
	return &tool.ExecutionResult{
		Success:    len(steps) > 0,
		Output:     strings.TrimSuffix(b.String(), "\n"),
		Confidence: confidence,
		Metadata: tool.Metadata{
			"steps":     tool.Int(len(steps)),
			"scheduled": tool.Bool(schedule != ""),
			"dry_run":   tool.Bool(dryRun),
		},
	}, nil
}
