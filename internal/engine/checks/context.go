package checks

import (
	"context"
	"fmt"
	"strings"

	"github.com/triage-ai/palisade/services/tool_router/internal/tool"
)

// ContextCheck verifies that every required context condition holds for
// the supplied conversation.
type ContextCheck struct{}

func NewContextCheck() *ContextCheck {
	return &ContextCheck{}
}

func (c *ContextCheck) Name() string {
	return "context"
}

func (c *ContextCheck) Kind() error {
	return tool.ErrContextNotSuitable
}

func (c *ContextCheck) Evaluate(_ context.Context, req *Request) (*Result, error) {
	if req.Tool == nil || len(req.Tool.RequiredContext) == 0 {
		return pass(), nil
	}

	missing := tool.Unsatisfied(req.Tool.RequiredContext, req.Conversation, req.Params.Input)
	if len(missing) > 0 {
		names := make([]string, len(missing))
		for i, r := range missing {
			names[i] = string(r)
		}
		return fail(fmt.Sprintf("missing required context: %s", strings.Join(names, ", "))), nil
	}
	return pass(), nil
}
