package checks

import (
	"context"
	"fmt"

	"github.com/triage-ai/palisade/services/tool_router/internal/performance"
	"github.com/triage-ai/palisade/services/tool_router/internal/tool"
)

// PerformanceCheck applies the admission threshold. Tools without history
// always pass.
type PerformanceCheck struct{}

func NewPerformanceCheck() *PerformanceCheck {
	return &PerformanceCheck{}
}

func (c *PerformanceCheck) Name() string {
	return "performance"
}

func (c *PerformanceCheck) Kind() error {
	return tool.ErrPerformanceThresholdNotMet
}

func (c *PerformanceCheck) Evaluate(_ context.Context, req *Request) (*Result, error) {
	if performance.Admits(req.Metrics, req.Scoring) {
		return pass(), nil
	}
	m := req.Metrics
	return fail(fmt.Sprintf("success rate %.2f over %d executions with average %s does not meet the admission threshold",
		m.SuccessRate, m.TotalExecutions, m.AverageExecutionTime)), nil
}
