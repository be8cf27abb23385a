package history

import (
	"fmt"
	"sort"
	"strings"

	"github.com/triage-ai/palisade/services/tool_router/internal/config"
	"github.com/triage-ai/palisade/services/tool_router/internal/performance"
	"github.com/triage-ai/palisade/services/tool_router/internal/tool"
)

// PatternKind says what a usage pattern groups by.
type PatternKind string

const (
	PatternHourly    PatternKind = "hourly"
	PatternWorkspace PatternKind = "workspace"
)

// Pattern is a tool that dominates one hour of the day or one workspace.
type Pattern struct {
	Kind        PatternKind `json:"kind"`
	Key         string      `json:"key"`
	ToolID      string      `json:"tool_id"`
	Count       int         `json:"count"`
	Description string      `json:"description"`
}

// MinePatterns groups records by hour of day and by workspace and reports
// every tool used more than the configured minimum within a group. Output
// is ordered by kind, key, count descending, then tool id.
func MinePatterns(records []tool.UsageRecord, s config.Scoring) []Pattern {
	byHour := make(map[string]map[string]int)
	byWorkspace := make(map[string]map[string]int)
	for _, r := range records {
		bump(byHour, fmt.Sprintf("%02d", hourOf(r)), r.ToolID)
		bump(byWorkspace, string(r.Context.Workspace.Normalize()), r.ToolID)
	}

	var out []Pattern
	out = appendPatterns(out, PatternHourly, byHour, s.HourPatternMin, "%s is used often around %s:00")
	out = appendPatterns(out, PatternWorkspace, byWorkspace, s.WorkspacePatternMin, "%s is used often in the %s workspace")
	return out
}

func hourOf(r tool.UsageRecord) int {
	if r.Temporal != nil {
		return r.Temporal.Hour
	}
	return r.Timestamp.Hour()
}

func bump(groups map[string]map[string]int, key, toolID string) {
	g, ok := groups[key]
	if !ok {
		g = make(map[string]int)
		groups[key] = g
	}
	g[toolID]++
}

func appendPatterns(out []Pattern, kind PatternKind, groups map[string]map[string]int, min int, format string) []Pattern {
	start := len(out)
	for key, counts := range groups {
		for id, n := range counts {
			if n > min {
				out = append(out, Pattern{
					Kind:        kind,
					Key:         key,
					ToolID:      id,
					Count:       n,
					Description: fmt.Sprintf(format, id, key),
				})
			}
		}
	}
	group := out[start:]
	sort.Slice(group, func(i, j int) bool {
		a, b := group[i], group[j]
		if a.Key != b.Key {
			return a.Key < b.Key
		}
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.ToolID < b.ToolID
	})
	return out
}

// RecommendationKind classifies an optimisation hint.
type RecommendationKind string

const (
	RecommendPerformance RecommendationKind = "performance"
	RecommendEfficiency  RecommendationKind = "efficiency"
	RecommendUnused      RecommendationKind = "unused_tools"
)

// Recommendation is an optimisation hint for operators.
type Recommendation struct {
	Kind    RecommendationKind `json:"kind"`
	ToolIDs []string           `json:"tool_ids"`
	Message string             `json:"message"`
}

// Optimizations derives hints from the metrics snapshot and the recent
// usage log. registered lists the tool ids currently in the registry.
func Optimizations(metrics map[string]performance.Metrics, records []tool.UsageRecord, registered []string, s config.Scoring) []Recommendation {
	ids := make([]string, 0, len(metrics))
	for id := range metrics {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []Recommendation
	for _, id := range ids {
		m := metrics[id]
		if m.TotalExecutions > s.LowSuccessMinExecutions && m.SuccessRate < s.LowSuccessRate {
			out = append(out, Recommendation{
				Kind:    RecommendPerformance,
				ToolIDs: []string{id},
				Message: fmt.Sprintf("%s succeeds in only %.0f%% of %d executions", id, m.SuccessRate*100, m.TotalExecutions),
			})
		}
		if m.HasHistory() && m.AverageExecutionTime > s.SlowAverageExecutionTime {
			out = append(out, Recommendation{
				Kind:    RecommendEfficiency,
				ToolIDs: []string{id},
				Message: fmt.Sprintf("%s averages %s per execution", id, m.AverageExecutionTime.Round(1e6)),
			})
		}
	}

	window := records
	if len(window) > s.UnusedWindow {
		window = window[len(window)-s.UnusedWindow:]
	}
	used := make(map[string]bool, len(window))
	for _, r := range window {
		used[r.ToolID] = true
	}
	var unused []string
	for _, id := range registered {
		if !used[id] {
			unused = append(unused, id)
		}
	}
	sort.Strings(unused)
	if len(unused) > s.UnusedToolsThreshold {
		out = append(out, Recommendation{
			Kind:    RecommendUnused,
			ToolIDs: unused,
			Message: fmt.Sprintf("%d tools were not used in the last %d invocations: %s",
				len(unused), s.UnusedWindow, strings.Join(unused, ", ")),
		})
	}
	return out
}
