package tool

import (
	"context"
	"maps"
	"slices"
)

// Tool describes a registered capability. The registry stores its own copy,
// so a descriptor is effectively immutable once registered.
type Tool struct {
	ID                string
	Name              string
	Description       string
	Category          Category
	Capabilities      []Capability
	RequiredContext   []Requirement
	OptimalContext    []Requirement
	Complexity        Complexity
	IsParallelizable  bool
	SupportsCascading bool

	Handler   Handler
	Ensemble  EnsembleValidator // optional
	Parallel  ParallelHandler   // optional
	Cascading CascadingHandler  // optional
}

// HasCapability reports whether the tool declares c.
func (t *Tool) HasCapability(c Capability) bool {
	return slices.Contains(t.Capabilities, c)
}

// Clone returns a copy whose slices are not shared with t.
func (t *Tool) Clone() *Tool {
	c := *t
	c.Capabilities = slices.Clone(t.Capabilities)
	c.RequiredContext = slices.Clone(t.RequiredContext)
	c.OptimalContext = slices.Clone(t.OptimalContext)
	return &c
}

// Descriptor is the serialisable part of a Tool.
type Descriptor struct {
	ID                string        `json:"id"`
	Name              string        `json:"name"`
	Description       string        `json:"description,omitempty"`
	Category          Category      `json:"category"`
	Capabilities      []Capability  `json:"capabilities,omitempty"`
	RequiredContext   []Requirement `json:"required_context,omitempty"`
	OptimalContext    []Requirement `json:"optimal_context,omitempty"`
	Complexity        Complexity    `json:"complexity"`
	IsParallelizable  bool          `json:"is_parallelizable"`
	SupportsCascading bool          `json:"supports_cascading"`
	HasEnsemble       bool          `json:"has_ensemble"`
	HasParallel       bool          `json:"has_parallel"`
	HasCascading      bool          `json:"has_cascading"`
}

// Describe returns the descriptor of t.
func (t *Tool) Describe() Descriptor {
	return Descriptor{
		ID:                t.ID,
		Name:              t.Name,
		Description:       t.Description,
		Category:          t.Category,
		Capabilities:      slices.Clone(t.Capabilities),
		RequiredContext:   slices.Clone(t.RequiredContext),
		OptimalContext:    slices.Clone(t.OptimalContext),
		Complexity:        t.Complexity,
		IsParallelizable:  t.IsParallelizable,
		SupportsCascading: t.SupportsCascading,
		HasEnsemble:       t.Ensemble != nil,
		HasParallel:       t.Parallel != nil,
		HasCascading:      t.Cascading != nil,
	}
}

// Parameters are the arguments of one invocation plus the strategy flags.
type Parameters struct {
	Input                string         `json:"input,omitempty"`
	Values               map[string]any `json:"values,omitempty"`
	RequiresHighAccuracy bool           `json:"requires_high_accuracy,omitempty"`
	AllowParallel        bool           `json:"allow_parallel,omitempty"`
	PreferCascading      bool           `json:"prefer_cascading,omitempty"`
}

// With returns a copy of p with key set to v.
func (p Parameters) With(key string, v any) Parameters {
	out := p
	out.Values = maps.Clone(p.Values)
	if out.Values == nil {
		out.Values = make(map[string]any, 1)
	}
	out.Values[key] = v
	return out
}

// WithValues returns a copy of p with every entry of vals set.
func (p Parameters) WithValues(vals map[string]any) Parameters {
	out := p
	out.Values = maps.Clone(p.Values)
	if out.Values == nil {
		out.Values = make(map[string]any, len(vals))
	}
	maps.Copy(out.Values, vals)
	return out
}

// String returns Values[key] when it is a string.
func (p Parameters) String(key string) string {
	s, _ := p.Values[key].(string)
	return s
}

// Handler executes a tool. Implementations must respect ctx cancellation.
type Handler interface {
	// Execute runs the tool once.
	Execute(ctx context.Context, params Parameters, conv ConversationContext) (*ExecutionResult, error)

	// ValidateParameters reports whether params are acceptable.
	ValidateParameters(params Parameters) bool

	// Initialize prepares the handler. It must be idempotent; the registry
	// calls it in the background on every registration.
	Initialize(ctx context.Context) error
}

// Validation is what an ensemble validator reports about a primary result.
type Validation struct {
	Confidence float64
	Metadata   Metadata
}

// EnsembleValidator cross-checks a primary result.
type EnsembleValidator interface {
	Validate(ctx context.Context, primary *ExecutionResult, params Parameters, conv ConversationContext) (Validation, error)
}

// ParallelHandler splits one invocation into independent units and merges
// their results. CombineResults receives results in split order.
type ParallelHandler interface {
	SplitParameters(params Parameters) []Parameters
	CombineResults(results []*ExecutionResult) *ExecutionResult
}

// Stage is one step of a cascading execution.
type Stage struct {
	Name   string         `json:"name"`
	Values map[string]any `json:"values,omitempty"`
}

// CascadingHandler drives a staged execution. The first stage runs with
// the caller's parameters plus its own Values; PrepareNextStage builds the
// parameters of every later stage.
type CascadingHandler interface {
	Stages() []Stage
	CombineStageResult(combined *ExecutionResult, stage Stage, result *ExecutionResult) *ExecutionResult
	PrepareNextStage(result *ExecutionResult, current Parameters, next Stage) Parameters
	ShouldStopEarly(result *ExecutionResult, stage Stage) bool
}

// Strategy is the execution shape chosen for one invocation.
type Strategy string

const (
	StrategyDirect    Strategy = "direct"
	StrategyEnsemble  Strategy = "ensemble"
	StrategyParallel  Strategy = "parallel"
	StrategyCascading Strategy = "cascading"
)
