package tool

import (
	"fmt"
	"strings"
	"time"
)

// ConversationContext is supplied by the conversation layer and is never
// mutated by the router.
type ConversationContext struct {
	RecentMessages   []string          `json:"recent_messages,omitempty"`
	Workspace        WorkspaceType     `json:"workspace_type"`
	UserPreferences  map[string]string `json:"user_preferences,omitempty"`
	Attachments      []string          `json:"attachments,omitempty"`
	NetworkAvailable bool              `json:"network_available"`
}

// TemporalContext describes when a request happens.
type TemporalContext struct {
	Hour           int    `json:"hour"`
	TimeOfDay      string `json:"time_of_day"`
	CircadianPhase string `json:"circadian_phase"`
}

// TemporalSource supplies the temporal context for a request.
type TemporalSource interface {
	Current() *TemporalContext
}

// ClockTemporalSource derives temporal context from the wall clock.
type ClockTemporalSource struct {
	Now func() time.Time
}

// Current implements TemporalSource.
func (s ClockTemporalSource) Current() *TemporalContext {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	return TemporalAt(now())
}

// TemporalAt buckets a timestamp into time-of-day and circadian phase.
func TemporalAt(t time.Time) *TemporalContext {
	h := t.Hour()
	tc := &TemporalContext{Hour: h}
	switch {
	case h >= 5 && h < 12:
		tc.TimeOfDay = "morning"
	case h >= 12 && h < 17:
		tc.TimeOfDay = "afternoon"
	case h >= 17 && h < 22:
		tc.TimeOfDay = "evening"
	default:
		tc.TimeOfDay = "night"
	}
	switch {
	case h >= 6 && h < 10:
		tc.CircadianPhase = "rising"
	case h >= 10 && h < 14:
		tc.CircadianPhase = "peak"
	case h >= 14 && h < 18:
		tc.CircadianPhase = "plateau"
	case h >= 18 && h < 23:
		tc.CircadianPhase = "winding-down"
	default:
		tc.CircadianPhase = "rest"
	}
	return tc
}

// SystemMetrics is a point-in-time sample of host load.
type SystemMetrics struct {
	CPUUtilization float64 `json:"cpu_utilization"` // 0.0 – 1.0
	MemoryBytes    uint64  `json:"memory_bytes"`
}

// Preferences narrows suggestions for one user.
type Preferences struct {
	DisabledTools []string `json:"disabled_tools,omitempty"`
}

// Disabled reports whether the user turned the tool off.
func (p *Preferences) Disabled(id string) bool {
	if p == nil {
		return false
	}
	for _, d := range p.DisabledTools {
		if d == id {
			return true
		}
	}
	return false
}

// Requirement is a context condition a tool either needs or prefers.
type Requirement string

const (
	RequireTextInput         Requirement = "text-input"
	RequireCodeContent       Requirement = "code-content"
	RequireFileAttachment    Requirement = "file-attachment"
	RequireNetworkAccess     Requirement = "network-access"
	RequireRecentMessages    Requirement = "recent-messages"
	RequireCodeWorkspace     Requirement = "code-workspace"
	RequireResearchWorkspace Requirement = "research-workspace"
	RequireCreativeWorkspace Requirement = "creative-workspace"
)

// ParseRequirement converts a config string into a Requirement.
func ParseRequirement(s string) (Requirement, error) {
	switch r := Requirement(s); r {
	case RequireTextInput, RequireCodeContent, RequireFileAttachment, RequireNetworkAccess,
		RequireRecentMessages, RequireCodeWorkspace, RequireResearchWorkspace, RequireCreativeWorkspace:
		return r, nil
	}
	return "", fmt.Errorf("unknown context requirement %q", s)
}

var codeMarkers = []string{"```", "func ", "def ", "class ", "=>", "();", "#include", "import ", "package "}

// Satisfied evaluates the requirement against the conversation and input.
func (r Requirement) Satisfied(conv ConversationContext, input string) bool {
	switch r {
	case RequireTextInput:
		return strings.TrimSpace(input) != ""
	case RequireCodeContent:
		if conv.Workspace == WorkspaceCode {
			return true
		}
		for _, m := range codeMarkers {
			if strings.Contains(input, m) {
				return true
			}
		}
		return false
	case RequireFileAttachment:
		return len(conv.Attachments) > 0
	case RequireNetworkAccess:
		return conv.NetworkAvailable
	case RequireRecentMessages:
		return len(conv.RecentMessages) > 0
	case RequireCodeWorkspace:
		return conv.Workspace == WorkspaceCode
	case RequireResearchWorkspace:
		return conv.Workspace == WorkspaceResearch
	case RequireCreativeWorkspace:
		return conv.Workspace == WorkspaceCreative
	default:
		return false
	}
}

// Unsatisfied returns the requirements that do not hold, in order.
func Unsatisfied(reqs []Requirement, conv ConversationContext, input string) []Requirement {
	var missing []Requirement
	for _, r := range reqs {
		if !r.Satisfied(conv, input) {
			missing = append(missing, r)
		}
	}
	return missing
}
