// Package recommend scores available tools against an analysed request and
// returns a short, prioritised suggestion list.
package recommend

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/triage-ai/palisade/services/tool_router/internal/analysis"
	"github.com/triage-ai/palisade/services/tool_router/internal/config"
	"github.com/triage-ai/palisade/services/tool_router/internal/performance"
	"github.com/triage-ai/palisade/services/tool_router/internal/tool"
)

// Engine turns (intent, analysis, tools, metrics) into suggestions.
type Engine struct {
	scoring config.Scoring
}

// New creates an engine using the given constants.
func New(scoring config.Scoring) *Engine {
	return &Engine{scoring: scoring}
}

// Generate ranks the available tools. The result holds at most
// MaxSuggestions entries sorted by priority, then confidence, then id.
// When no tool survives, a single low-priority suggestion without a tool
// explains why.
func (e *Engine) Generate(
	intent analysis.Intent,
	ca analysis.ContextAnalysis,
	available []*tool.Tool,
	perf map[string]performance.Metrics,
	prefs *tool.Preferences,
) []tool.Suggestion {
	var out []tool.Suggestion
	for _, t := range available {
		if prefs.Disabled(t.ID) {
			continue
		}
		if !Relevant(t.Category, intent, ca.Domain) {
			continue
		}
		score, factors := e.score(t, ca, perf[t.ID])
		out = append(out, tool.Suggestion{
			Tool:       t,
			ToolID:     t.ID,
			Reason:     reason(t, intent, ca, factors),
			Confidence: score,
			Priority:   e.priority(score, ca.Urgency),
		})
	}

	if len(out) == 0 {
		return []tool.Suggestion{{
			Reason:   fmt.Sprintf("no available tool matches a %s request in the %s domain", intent, ca.Domain),
			Priority: tool.PriorityLow,
		}}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		return a.ToolID < b.ToolID
	})

	if len(out) > e.scoring.MaxSuggestions {
		out = out[:e.scoring.MaxSuggestions]
	}
	return out
}

// Score returns the clipped recommendation score of t for ca.
func (e *Engine) Score(t *tool.Tool, ca analysis.ContextAnalysis, m performance.Metrics) float64 {
	score, _ := e.score(t, ca, m)
	return score
}

func (e *Engine) score(t *tool.Tool, ca analysis.ContextAnalysis, m performance.Metrics) (float64, []string) {
	s := e.scoring
	score := s.RecommendationBase
	var factors []string

	if m.HasHistory() {
		score += m.OverallScore * s.PerformanceWeight
		factors = append(factors, fmt.Sprintf("%.0f%% success rate", m.SuccessRate*100))
	}

	switch t.Complexity.Distance(ca.Complexity) {
	case 0:
		score += s.ComplexityMatchBonus
		factors = append(factors, "matches "+ca.Complexity.String()+" complexity")
	case 1:
		score += s.ComplexityAdjacentBonus
	}

	if ca.Resources.ComputeIntensive && t.HasCapability(tool.CapabilityAnalysis) {
		score += s.ResourceCapabilityBonus
		factors = append(factors, "handles heavy analysis")
	}
	if ca.Resources.NetworkAccess && t.HasCapability(tool.CapabilitySearch) {
		score += s.ResourceCapabilityBonus
		factors = append(factors, "can search the web")
	}

	return clip(score), factors
}

func (e *Engine) priority(score float64, urgency analysis.Urgency) tool.Priority {
	s := e.scoring
	switch {
	case score >= s.CriticalScore && urgency == analysis.UrgencyHigh:
		return tool.PriorityCritical
	case score >= s.HighScore && urgency == analysis.UrgencyHigh,
		score >= s.CriticalScore && urgency == analysis.UrgencyMedium:
		return tool.PriorityHigh
	case score >= s.MediumScore:
		return tool.PriorityMedium
	default:
		return tool.PriorityLow
	}
}

func reason(t *tool.Tool, intent analysis.Intent, ca analysis.ContextAnalysis, factors []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s fits %s requests in the %s domain", t.Name, intent, ca.Domain)
	if len(factors) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(factors, ", "))
		b.WriteString(")")
	}
	return b.String()
}

// clip bounds v to [0,1] and rounds away float noise so sums such as
// 0.5+0.2+0.1 land exactly on the priority thresholds.
func clip(v float64) float64 {
	v = math.Round(v*1e9) / 1e9
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
