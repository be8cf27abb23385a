// Package tool defines the descriptors, handler contracts and value types
// shared by the registry, the recommendation engine and the execution router.
package tool

import "fmt"

// Category is the functional family a tool belongs to.
type Category string

const (
	CategoryTextProcessing Category = "text-processing"
	CategoryCodeProcessing Category = "code-processing"
	CategoryResearch       Category = "research"
	CategoryFileProcessing Category = "file-processing"
	CategoryCreative       Category = "creative"
	CategoryAnalysis       Category = "analysis"
	CategoryAutomation     Category = "automation"
)

// Categories lists every category in declaration order.
var Categories = []Category{
	CategoryTextProcessing,
	CategoryCodeProcessing,
	CategoryResearch,
	CategoryFileProcessing,
	CategoryCreative,
	CategoryAnalysis,
	CategoryAutomation,
}

// ParseCategory converts a config string into a Category.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown tool category %q", s)
}

// Complexity is a coarse three-level tier used for both tools and inputs.
type Complexity int

const (
	ComplexityLow Complexity = iota
	ComplexityMedium
	ComplexityHigh
)

func (c Complexity) String() string {
	switch c {
	case ComplexityLow:
		return "low"
	case ComplexityMedium:
		return "medium"
	case ComplexityHigh:
		return "high"
	default:
		return fmt.Sprintf("complexity(%d)", int(c))
	}
}

// MarshalText encodes the tier by name.
func (c Complexity) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText decodes a tier name.
func (c *Complexity) UnmarshalText(b []byte) error {
	v, err := ParseComplexity(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// ParseComplexity converts "low", "medium" or "high".
func ParseComplexity(s string) (Complexity, error) {
	switch s {
	case "low":
		return ComplexityLow, nil
	case "medium":
		return ComplexityMedium, nil
	case "high":
		return ComplexityHigh, nil
	}
	return 0, fmt.Errorf("unknown complexity %q", s)
}

// Distance returns how many tiers apart two complexities are.
func (c Complexity) Distance(other Complexity) int {
	d := int(c) - int(other)
	if d < 0 {
		return -d
	}
	return d
}

// Capability names something a tool can do. Scoring looks for a few
// well-known capabilities; any other string is carried through untouched.
type Capability string

const (
	CapabilityAnalysis  Capability = "analysis"
	CapabilitySearch    Capability = "search"
	CapabilitySummarize Capability = "summarize"
	CapabilityGenerate  Capability = "generate"
	CapabilityTransform Capability = "transform"
	CapabilityExtract   Capability = "extract"
	CapabilitySchedule  Capability = "schedule"
)

// WorkspaceType is the kind of workspace the conversation happens in.
type WorkspaceType string

const (
	WorkspaceGeneral  WorkspaceType = "general"
	WorkspaceCode     WorkspaceType = "code"
	WorkspaceResearch WorkspaceType = "research"
	WorkspaceCreative WorkspaceType = "creative"
)

// Normalize maps the empty workspace to general.
func (w WorkspaceType) Normalize() WorkspaceType {
	if w == "" {
		return WorkspaceGeneral
	}
	return w
}
