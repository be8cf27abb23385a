package checks

import (
	"context"
	"fmt"

	"github.com/triage-ai/palisade/services/tool_router/internal/tool"
)

// AvailabilityCheck rejects unregistered tools and tools whose availability
// score fell below the configured minimum.
type AvailabilityCheck struct{}

func NewAvailabilityCheck() *AvailabilityCheck {
	return &AvailabilityCheck{}
}

func (c *AvailabilityCheck) Name() string {
	return "availability"
}

func (c *AvailabilityCheck) Kind() error {
	return tool.ErrToolNotAvailable
}

func (c *AvailabilityCheck) Evaluate(_ context.Context, req *Request) (*Result, error) {
	if req.Tool == nil {
		return fail("tool is not registered"), nil
	}
	if req.Metrics.AvailabilityScore < req.Scoring.MinAvailability {
		return fail(fmt.Sprintf("availability score %.2f is below minimum %.2f",
			req.Metrics.AvailabilityScore, req.Scoring.MinAvailability)), nil
	}
	return pass(), nil
}
