package engine

import "github.com/triage-ai/palisade/services/tool_router/internal/tool"

// SelectStrategy picks the execution shape for t. It depends only on the
// tool's complexity and flags and the parameter flags.
func SelectStrategy(t *tool.Tool, p tool.Parameters) tool.Strategy {
	switch {
	case t.Complexity == tool.ComplexityHigh && p.RequiresHighAccuracy:
		return tool.StrategyEnsemble
	case t.IsParallelizable && p.AllowParallel:
		return tool.StrategyParallel
	case t.SupportsCascading && p.PreferCascading:
		return tool.StrategyCascading
	default:
		return tool.StrategyDirect
	}
}
