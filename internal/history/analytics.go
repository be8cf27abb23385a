package history

import (
	"sort"
	"time"

	"github.com/triage-ai/palisade/services/tool_router/internal/config"
	"github.com/triage-ai/palisade/services/tool_router/internal/performance"
	"github.com/triage-ai/palisade/services/tool_router/internal/tool"
)

// ToolUsage is an invocation count for one tool.
type ToolUsage struct {
	ToolID string `json:"tool_id"`
	Count  int    `json:"count"`
}

// ToolAnalytics is the aggregate usage and performance summary.
type ToolAnalytics struct {
	GeneratedAt          time.Time                      `json:"generated_at"`
	RegisteredTools      int                            `json:"registered_tools"`
	UsageRecords         int                            `json:"usage_records"`
	TotalExecutions      int                            `json:"total_executions"`
	SuccessRate          float64                        `json:"success_rate"`
	AverageExecutionTime time.Duration                  `json:"average_execution_time"`
	MostUsed             []ToolUsage                    `json:"most_used"`
	Performance          map[string]performance.Metrics `json:"performance"`
	Patterns             []Pattern                      `json:"patterns"`
	Optimizations        []Recommendation               `json:"optimizations"`
}

// BuildAnalytics summarises the given snapshot.
func BuildAnalytics(registered []*tool.Tool, metrics map[string]performance.Metrics, records []tool.UsageRecord, s config.Scoring, at time.Time) ToolAnalytics {
	a := ToolAnalytics{
		GeneratedAt:     at,
		RegisteredTools: len(registered),
		UsageRecords:    len(records),
		Performance:     metrics,
	}

	var successes int
	var elapsed time.Duration
	for _, m := range metrics {
		a.TotalExecutions += m.TotalExecutions
		successes += m.SuccessfulExecutions
		elapsed += m.TotalExecutionTime
	}
	if a.TotalExecutions > 0 {
		a.SuccessRate = float64(successes) / float64(a.TotalExecutions)
		a.AverageExecutionTime = elapsed / time.Duration(a.TotalExecutions)
	}

	counts := make(map[string]int)
	for _, r := range records {
		counts[r.ToolID]++
	}
	for id, n := range counts {
		a.MostUsed = append(a.MostUsed, ToolUsage{ToolID: id, Count: n})
	}
	sort.Slice(a.MostUsed, func(i, j int) bool {
		if a.MostUsed[i].Count != a.MostUsed[j].Count {
			return a.MostUsed[i].Count > a.MostUsed[j].Count
		}
		return a.MostUsed[i].ToolID < a.MostUsed[j].ToolID
	})

	ids := make([]string, len(registered))
	for i, t := range registered {
		ids[i] = t.ID
	}
	a.Patterns = MinePatterns(records, s)
	a.Optimizations = Optimizations(metrics, records, ids, s)
	return a
}

// ToolDataExport is a full snapshot for external persistence.
type ToolDataExport struct {
	ExportedAt       time.Time                      `json:"exported_at"`
	Tools            []tool.Descriptor              `json:"tools"`
	UsageHistory     []tool.UsageRecord             `json:"usage_history"`
	Metrics          map[string]performance.Metrics `json:"performance_metrics"`
	ContextRecords   []ContextRecord                `json:"context_records"`
	ExecutionRecords []ExecutionRecord              `json:"execution_records"`
}

// BuildExport assembles an export from snapshots taken by the caller.
func BuildExport(registered []*tool.Tool, metrics map[string]performance.Metrics, records []tool.UsageRecord, learning *LearningStore, at time.Time) ToolDataExport {
	tools := make([]tool.Descriptor, len(registered))
	for i, t := range registered {
		tools[i] = t.Describe()
	}
	if records == nil {
		records = []tool.UsageRecord{}
	}
	return ToolDataExport{
		ExportedAt:       at,
		Tools:            tools,
		UsageHistory:     records,
		Metrics:          metrics,
		ContextRecords:   learning.Contexts(),
		ExecutionRecords: learning.Executions(),
	}
}
