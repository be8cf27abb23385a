package checks

import (
	"context"

	"github.com/triage-ai/palisade/services/tool_router/internal/tool"
)

// ParametersCheck asks the tool's handler to validate the parameters.
type ParametersCheck struct{}

func NewParametersCheck() *ParametersCheck {
	return &ParametersCheck{}
}

func (c *ParametersCheck) Name() string {
	return "parameters"
}

func (c *ParametersCheck) Kind() error {
	return tool.ErrInvalidParameters
}

func (c *ParametersCheck) Evaluate(_ context.Context, req *Request) (*Result, error) {
	if req.Tool == nil || req.Tool.Handler == nil {
		return pass(), nil
	}
	if !req.Tool.Handler.ValidateParameters(req.Params) {
		return fail("handler rejected parameters"), nil
	}
	return pass(), nil
}
