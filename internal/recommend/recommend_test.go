package recommend

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/triage-ai/palisade/services/tool_router/internal/analysis"
	"github.com/triage-ai/palisade/services/tool_router/internal/config"
	"github.com/triage-ai/palisade/services/tool_router/internal/performance"
	"github.com/triage-ai/palisade/services/tool_router/internal/tool"
)

func mkTool(id string, cat tool.Category, c tool.Complexity, caps ...tool.Capability) *tool.Tool {
	return &tool.Tool{ID: id, Name: id, Category: cat, Complexity: c, Capabilities: caps}
}

func TestRelevant(t *testing.T) {
	tests := []struct {
		cat    tool.Category
		intent analysis.Intent
		domain analysis.Domain
		want   bool
	}{
		{tool.CategoryCodeProcessing, analysis.IntentProblemSolving, analysis.DomainProgramming, true},
		{tool.CategoryCodeProcessing, analysis.IntentProblemSolving, analysis.DomainGeneral, false},
		{tool.CategoryCodeProcessing, analysis.IntentInformation, analysis.DomainProgramming, false},
		{tool.CategoryResearch, analysis.IntentInformation, analysis.DomainCreative, true},
		{tool.CategoryResearch, analysis.IntentAnalysis, analysis.DomainResearch, true},
		{tool.CategoryResearch, analysis.IntentCreation, analysis.DomainResearch, false},
		{tool.CategoryCreative, analysis.IntentCreation, analysis.DomainCreative, true},
		{tool.CategoryCreative, analysis.IntentCreation, analysis.DomainProgramming, false},
		{tool.CategoryAnalysis, analysis.IntentOptimization, analysis.DomainGeneral, true},
		{tool.CategoryFileProcessing, analysis.IntentAssistance, analysis.DomainGeneral, true},
		{tool.CategoryAutomation, analysis.IntentProblemSolving, analysis.DomainCreative, false},
		{tool.CategoryTextProcessing, analysis.IntentAssistance, analysis.DomainGeneral, true},
		// file-processing claims (assistance, creative)
		{tool.CategoryTextProcessing, analysis.IntentAssistance, analysis.DomainCreative, false},
		// research owns information requests
		{tool.CategoryTextProcessing, analysis.IntentInformation, analysis.DomainGeneral, false},
		// (creation, research) is unclaimed
		{tool.CategoryTextProcessing, analysis.IntentCreation, analysis.DomainResearch, true},
	}
	for _, tt := range tests {
		name := fmt.Sprintf("%s/%s/%s", tt.cat, tt.intent, tt.domain)
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, Relevant(tt.cat, tt.intent, tt.domain))
		})
	}
}

func TestScore(t *testing.T) {
	e := New(config.DefaultScoring())
	ca := analysis.ContextAnalysis{
		Complexity: tool.ComplexityMedium,
		Resources:  analysis.Resources{ComputeIntensive: true, NetworkAccess: true},
	}

	plain := mkTool("plain", tool.CategoryAnalysis, tool.ComplexityHigh)
	assert.InDelta(t, 0.6, e.Score(plain, ca, performance.NewMetrics()), 1e-9)

	full := mkTool("full", tool.CategoryAnalysis, tool.ComplexityMedium, tool.CapabilityAnalysis, tool.CapabilitySearch)
	assert.InDelta(t, 0.9, e.Score(full, ca, performance.NewMetrics()), 1e-9)

	proven := performance.Metrics{TotalExecutions: 100, SuccessRate: 1, OverallScore: 1}
	assert.Equal(t, 1.0, e.Score(full, ca, proven), "score is clipped to 1")

	far := mkTool("far", tool.CategoryAnalysis, tool.ComplexityLow)
	assert.InDelta(t, 0.5, e.Score(far, analysis.ContextAnalysis{Complexity: tool.ComplexityHigh}, performance.NewMetrics()), 1e-9)
}

func TestPriority(t *testing.T) {
	e := New(config.DefaultScoring())
	tests := []struct {
		score   float64
		urgency analysis.Urgency
		want    tool.Priority
	}{
		{0.8, analysis.UrgencyHigh, tool.PriorityCritical},
		{0.7, analysis.UrgencyHigh, tool.PriorityHigh},
		{0.8, analysis.UrgencyMedium, tool.PriorityHigh},
		{0.75, analysis.UrgencyMedium, tool.PriorityMedium},
		{0.9, analysis.UrgencyLow, tool.PriorityMedium},
		{0.6, analysis.UrgencyLow, tool.PriorityMedium},
		{0.59, analysis.UrgencyHigh, tool.PriorityLow},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, e.priority(tt.score, tt.urgency), "score=%v urgency=%s", tt.score, tt.urgency)
	}
}

func TestGenerate_SortedAndTruncated(t *testing.T) {
	e := New(config.DefaultScoring())
	ca := analysis.ContextAnalysis{Complexity: tool.ComplexityLow, Domain: analysis.DomainGeneral, Urgency: analysis.UrgencyHigh}

	var tools []*tool.Tool
	complexities := []tool.Complexity{tool.ComplexityHigh, tool.ComplexityMedium, tool.ComplexityLow}
	for i := 0; i < 8; i++ {
		tools = append(tools, mkTool(fmt.Sprintf("analysis-%d", i), tool.CategoryAnalysis, complexities[i%3]))
	}
	perf := map[string]performance.Metrics{
		"analysis-5": {TotalExecutions: 50, SuccessRate: 1, OverallScore: 1},
	}

	got := e.Generate(analysis.IntentAnalysis, ca, tools, perf, nil)
	require.Len(t, got, 5)
	for i := 1; i < len(got); i++ {
		prev, cur := got[i-1], got[i]
		if prev.Priority == cur.Priority {
			if prev.Confidence == cur.Confidence {
				assert.Less(t, prev.ToolID, cur.ToolID)
			} else {
				assert.Greater(t, prev.Confidence, cur.Confidence)
			}
		} else {
			assert.Greater(t, prev.Priority, cur.Priority)
		}
	}
	// 0.5 + 0.3 + 0.2 with high urgency
	assert.Equal(t, "analysis-5", got[0].ToolID)
	assert.Equal(t, tool.PriorityCritical, got[0].Priority)
	assert.Contains(t, got[0].Reason, "100% success rate")
}

func TestGenerate_SkipsDisabledAndIrrelevant(t *testing.T) {
	e := New(config.DefaultScoring())
	tools := []*tool.Tool{
		mkTool("code", tool.CategoryCodeProcessing, tool.ComplexityLow),
		mkTool("poet", tool.CategoryCreative, tool.ComplexityLow),
		mkTool("auto", tool.CategoryAutomation, tool.ComplexityLow),
	}
	ca := analysis.ContextAnalysis{Domain: analysis.DomainProgramming}
	prefs := &tool.Preferences{DisabledTools: []string{"auto"}}

	got := e.Generate(analysis.IntentProblemSolving, ca, tools, nil, prefs)
	require.Len(t, got, 1)
	assert.Equal(t, "code", got[0].ToolID)
	assert.Same(t, tools[0], got[0].Tool)
}

func TestGenerate_EmptyFallback(t *testing.T) {
	e := New(config.DefaultScoring())
	got := e.Generate(analysis.IntentCreation, analysis.ContextAnalysis{Domain: analysis.DomainProgramming}, nil, nil, nil)
	require.Len(t, got, 1)
	assert.Nil(t, got[0].Tool)
	assert.Empty(t, got[0].ToolID)
	assert.Equal(t, tool.PriorityLow, got[0].Priority)
	assert.Contains(t, got[0].Reason, "creation")
}

func TestGenerate_DebugScenario(t *testing.T) {
	e := New(config.DefaultScoring())
	input := "please debug this function"
	ca := analysis.Analyze(input)
	intent := analysis.Predict(input)
	require.Equal(t, analysis.DomainProgramming, ca.Domain)
	require.Equal(t, analysis.IntentProblemSolving, intent)

	reviewer := mkTool("code-reviewer", tool.CategoryCodeProcessing, tool.ComplexityMedium, tool.CapabilityAnalysis)
	got := e.Generate(intent, ca, []*tool.Tool{reviewer}, map[string]performance.Metrics{
		"code-reviewer": {TotalExecutions: 3, SuccessfulExecutions: 3, SuccessRate: 1, AverageExecutionTime: time.Second, OverallScore: 0.68},
	}, nil)
	require.NotEmpty(t, got)
	assert.Equal(t, "code-reviewer", got[0].ToolID)
	assert.GreaterOrEqual(t, got[0].Priority, tool.PriorityMedium)
}
