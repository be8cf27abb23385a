package tool

import "fmt"

// Priority orders suggestions; higher values rank first.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// MarshalText encodes the priority by name.
func (p Priority) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Suggestion is a ranked candidate tool. Tool is nil when nothing in the
// registry fits the request.
type Suggestion struct {
	Tool       *Tool    `json:"-"`
	ToolID     string   `json:"tool_id,omitempty"`
	Reason     string   `json:"reason"`
	Confidence float64  `json:"confidence"`
	Priority   Priority `json:"priority"`
}
