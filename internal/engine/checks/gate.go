package checks

import (
	"context"

	"go.uber.org/zap"

	"github.com/triage-ai/palisade/services/tool_router/internal/tool"
)

// Gate runs checks sequentially; order defines which failure is reported.
type Gate struct {
	checks []Check
	logger *zap.Logger
}

// NewGate creates a gate. A nil checks slice uses Default().
func NewGate(checks []Check, logger *zap.Logger) *Gate {
	if checks == nil {
		checks = Default()
	}
	return &Gate{checks: checks, logger: logger}
}

// Default returns the standard gate: availability, required context,
// parameters, performance admission.
func Default() []Check {
	return []Check{
		NewAvailabilityCheck(),
		NewContextCheck(),
		NewParametersCheck(),
		NewPerformanceCheck(),
	}
}

// Evaluate returns nil when every check passes, otherwise a *tool.Error
// whose kind is the first triggered check's Kind.
func (g *Gate) Evaluate(ctx context.Context, req *Request) error {
	for _, c := range g.checks {
		res, err := c.Evaluate(ctx, req)
		if err != nil {
			g.logger.Warn("gate check error",
				zap.String("check", c.Name()),
				zap.String("tool_id", req.ToolID),
				zap.Error(err),
			)
			return tool.NewError(c.Kind(), req.ToolID, c.Name()+" check failed", err)
		}
		if res != nil && res.Triggered {
			g.logger.Debug("gate rejected execution",
				zap.String("check", c.Name()),
				zap.String("tool_id", req.ToolID),
				zap.String("details", res.Details),
			)
			return tool.NewError(c.Kind(), req.ToolID, res.Details, nil)
		}
	}
	return nil
}
